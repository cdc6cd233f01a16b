package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrInvalidPublicID = errors.New("invalid public id")

// IDCodec turns numeric row ids into opaque, tamper-evident URL tokens.
type IDCodec struct {
	aead cipher.AEAD
}

func NewIDCodec(key string) (*IDCodec, error) {
	k := []byte(key)
	if len(k) != 16 && len(k) != 24 && len(k) != 32 {
		return nil, fmt.Errorf("invalid key length: %d (must be 16/24/32)", len(k))
	}

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &IDCodec{aead: aead}, nil
}

func (c *IDCodec) Encode(id uint) (string, error) {
	plaintext := make([]byte, 8)
	binary.BigEndian.PutUint64(plaintext, uint64(id))

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read random nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *IDCodec) Decode(enc string) (uint, error) {
	if enc == "" {
		return 0, ErrInvalidPublicID
	}

	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPublicID, err)
	}

	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return 0, fmt.Errorf("%w: too short", ErrInvalidPublicID)
	}

	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil || len(plaintext) != 8 {
		return 0, ErrInvalidPublicID
	}
	return uint(binary.BigEndian.Uint64(plaintext)), nil
}
