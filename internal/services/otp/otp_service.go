// Package otp issues and verifies the 6-digit codes used for email
// verification and password reset.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "reset_password"
)

func (p Purpose) Valid() bool {
	return p == PurposeVerifyEmail || p == PurposeResetPassword
}

const (
	CodeTTL     = 10 * time.Minute
	MaxAttempts = 5
	resendGap   = time.Minute
)

var (
	ErrInvalidPurpose = errors.New("unknown otp purpose")
	ErrCodeExpired    = errors.New("code expired or not requested")
	ErrCodeMismatch   = errors.New("code does not match")
	ErrTooManyTries   = errors.New("too many attempts, request a new code")
	ErrResendTooSoon  = errors.New("code was sent recently, try again later")
)

type Service struct {
	RDB    *redis.Client
	Mailer Mailer

	now func() time.Time
	gen func() (string, error)
}

func NewService(rdb *redis.Client, mailer Mailer) *Service {
	return &Service{RDB: rdb, Mailer: mailer, now: time.Now, gen: randomCode}
}

// countAttempt bumps the attempt counter only while the code still exists,
// so a code that expires mid-verify is not recreated without a TTL.
// Returns -1 when the code is gone.
var countAttempt = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

func codeKey(p Purpose, email string) string     { return "otp:" + string(p) + ":" + email }
func cooldownKey(p Purpose, email string) string { return "otp-cooldown:" + string(p) + ":" + email }

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Send issues a fresh code for email, replacing any previous one, and mails it.
func (s *Service) Send(ctx context.Context, purpose Purpose, email string) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	email = strings.ToLower(strings.TrimSpace(email))

	ok, err := s.RDB.SetNX(ctx, cooldownKey(purpose, email), 1, resendGap).Result()
	if err != nil {
		return fmt.Errorf("otp cooldown: %w", err)
	}
	if !ok {
		return ErrResendTooSoon
	}

	code, err := s.gen()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	key := codeKey(purpose, email)
	pipe := s.RDB.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "hash", hashCode(code), "attempts", 0)
	pipe.Expire(ctx, key, CodeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	subject, body := message(purpose, code)
	if err := s.Mailer.Send(ctx, email, subject, body); err != nil {
		s.RDB.Del(context.WithoutCancel(ctx), key, cooldownKey(purpose, email))
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// Verify consumes the code on success. Each mismatch counts as an attempt;
// the code is burned on the MaxAttempts-th failure.
func (s *Service) Verify(ctx context.Context, purpose Purpose, email, code string) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	email = strings.ToLower(strings.TrimSpace(email))
	key := codeKey(purpose, email)

	stored, err := s.RDB.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if len(stored) == 0 || stored["hash"] == "" {
		return ErrCodeExpired
	}
	if n, _ := strconv.Atoi(stored["attempts"]); n >= MaxAttempts {
		s.RDB.Del(ctx, key)
		return ErrTooManyTries
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(strings.TrimSpace(code))), []byte(stored["hash"])) == 1 {
		// only the caller that deletes the key wins a concurrent verify
		n, err := s.RDB.Del(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("consume otp: %w", err)
		}
		if n == 0 {
			return ErrCodeExpired
		}
		return nil
	}

	attempts, err := countAttempt.Run(ctx, s.RDB, []string{key}).Int64()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts < 0 {
		return ErrCodeExpired
	}
	if attempts >= MaxAttempts {
		s.RDB.Del(ctx, key)
		zap.L().Info("otp burned after failed attempts", zap.String("purpose", string(purpose)))
		return ErrTooManyTries
	}
	return ErrCodeMismatch
}

// Remaining reports how many attempts are left for the current code.
func (s *Service) Remaining(ctx context.Context, purpose Purpose, email string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	raw, err := s.RDB.HGet(ctx, codeKey(purpose, email), "attempts").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(raw)
	if n >= MaxAttempts {
		return 0, nil
	}
	return MaxAttempts - n, nil
}

func message(p Purpose, code string) (subject, body string) {
	switch p {
	case PurposeResetPassword:
		subject = "Your saan password reset code"
	default:
		subject = "Verify your saan email"
	}
	body = fmt.Sprintf("<p>Your code is <b>%s</b>.</p><p>It expires in %d minutes.</p>", code, int(CodeTTL.Minutes()))
	return subject, body
}
