// Package storage is the blob store for uploaded images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrEmptyFile        = errors.New("empty file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidKey       = errors.New("invalid object key")
	ErrNotFound         = errors.New("object not found")
)

// File is an upload as received from a form field.
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

type Object struct {
	Key     string
	URL     string
	ModTime time.Time
}

type Store interface {
	// Put writes r under key and returns the public URL.
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a public URL produced by Put back to its key.
	KeyFromURL(url string) (string, bool)
	List(ctx context.Context) ([]Object, error)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ObjectKey builds "<dir>/<owner>/<kind>-<unixnano><ext>", the owner-scoped,
// timestamp-disambiguated naming used for every upload.
func ObjectKey(dir string, owner uuid.UUID, kind, filename string, now time.Time) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !imageExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
	return fmt.Sprintf("%s/%s/%s-%d%s", dir, owner, kind, now.UnixNano(), ext), nil
}

// PutImage validates f and stores it, returning the URL and key.
func PutImage(ctx context.Context, s Store, dir string, owner uuid.UUID, kind string, f *File) (url, key string, err error) {
	if f.Size <= 0 {
		return "", "", ErrEmptyFile
	}
	if f.Size > MaxImageSize {
		return "", "", ErrFileTooLarge
	}

	key, err = ObjectKey(dir, owner, kind, f.Name, time.Now())
	if err != nil {
		return "", "", err
	}

	url, err = s.Put(ctx, key, f.Reader)
	if err != nil {
		return "", "", fmt.Errorf("put %s: %w", key, err)
	}
	return url, key, nil
}

// IsClientError reports whether err came from a bad upload rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedImage) || errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrFileTooLarge)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
