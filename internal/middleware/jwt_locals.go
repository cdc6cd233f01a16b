package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/utils"
)

// AttachSession converts verified claims into a session.Session.
func AttachSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok || claims == nil {
			return fiber.ErrUnauthorized
		}

		s, err := session.FromClaims(claims)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		session.Attach(c, s)
		return c.Next()
	}
}
