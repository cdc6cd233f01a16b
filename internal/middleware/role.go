package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
)

// RoleSelectionPath is where clients send users who have not picked a role.
const RoleSelectionPath = "/roleAuth"

func RequireRoles(allowed ...models.Role) fiber.Handler {
	allowedSet := map[models.Role]bool{}
	for _, r := range allowed {
		allowedSet[r] = true
	}

	return func(c *fiber.Ctx) error {
		s := session.From(c)
		if !s.Authenticated() {
			return fiber.ErrUnauthorized
		}

		if s.Role == models.RoleUnset {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":  false,
				"message":  "role not selected",
				"redirect": RoleSelectionPath,
			})
		}

		if !allowedSet[s.Role] {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: insufficient role")
		}

		return c.Next()
	}
}
