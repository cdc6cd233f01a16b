// Package session carries the authenticated caller through handlers and
// services as an explicit value.
package session

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/utils"
)

// LocalsKey is the fiber Locals key the session is stored under.
const LocalsKey = "session"

var ErrNoSession = errors.New("no authenticated session")

type Session struct {
	UserID uuid.UUID
	Email  string
	Role   models.Role
}

func (s Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}

func FromClaims(c *utils.Claims) (Session, error) {
	uid, err := uuid.Parse(strings.TrimSpace(c.UserID))
	if err != nil || uid == uuid.Nil {
		return Session{}, ErrNoSession
	}
	return Session{
		UserID: uid,
		Email:  strings.ToLower(strings.TrimSpace(c.Email)),
		Role:   models.Role(strings.ToLower(strings.TrimSpace(c.Role))),
	}, nil
}

func Attach(c *fiber.Ctx, s Session) {
	c.Locals(LocalsKey, s)
}

// From returns the session attached by middleware.AttachSession, or the
// zero Session when the request is anonymous.
func From(c *fiber.Ctx) Session {
	s, _ := c.Locals(LocalsKey).(Session)
	return s
}
