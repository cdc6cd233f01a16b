package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/profile"
	"github.com/saan-app/saan_be/internal/session"
)

type ProfileHandler struct {
	Profiles *profile.ProfileService
	Cookies  SessionCookies
}

func NewProfileHandler(profiles *profile.ProfileService, cookies SessionCookies) *ProfileHandler {
	return &ProfileHandler{Profiles: profiles, Cookies: cookies}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	s := session.From(c)
	p, err := h.Profiles.Get(c.UserContext(), s.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

type registerRoleReq struct {
	Role        string `json:"role" form:"role"`
	FullName    string `json:"full_name" form:"full_name"`
	Phone       string `json:"phone" form:"phone"`
	Province    string `json:"province" form:"province"`
	District    string `json:"district" form:"district"`
	Subdistrict string `json:"subdistrict" form:"subdistrict"`
}

// RegisterRole records the role once and re-issues the session cookie so
// role-gated routes open without a new login.
func (h *ProfileHandler) RegisterRole(c *fiber.Ctx) error {
	var req registerRoleReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	avatar, closeAvatar, err := formImage(c, "avatar")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid avatar upload")
	}
	defer closeAvatar()

	s := session.From(c)
	p, err := h.Profiles.RegisterRole(c.UserContext(), s, profile.RoleInput{
		Role:        models.Role(req.Role),
		FullName:    req.FullName,
		Phone:       req.Phone,
		Province:    req.Province,
		District:    req.District,
		Subdistrict: req.Subdistrict,
	}, avatar)
	if err != nil {
		return serviceError(c, err)
	}

	if err := h.Cookies.Issue(c, s.UserID, s.Email, p.Role); err != nil {
		return fail500(c, "failed to refresh token", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "role registered",
		"data":    p,
	})
}
