package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/db"
	"github.com/saan-app/saan_be/internal/middleware"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/otp"
	"github.com/saan-app/saan_be/internal/services/profile"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/utils"
)

// SessionCookies signs the JWT and writes it as the session cookie.
type SessionCookies struct {
	JWTSecret  string
	ExpiresMin int
	Secure     bool
}

func (s SessionCookies) Issue(c *fiber.Ctx, userID uuid.UUID, email string, role models.Role) error {
	token, err := utils.SignJWT(s.JWTSecret, userID.String(), email, string(role), s.ExpiresMin)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
		MaxAge:   s.ExpiresMin * 60,
	})
	return nil
}

func (s SessionCookies) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
	})
}

type AuthHandler struct {
	DB      *gorm.DB
	Cookies SessionCookies
	OTP     *otp.Service
}

func NewAuthHandler(db *gorm.DB, cookies SessionCookies, otpSvc *otp.Service) *AuthHandler {
	return &AuthHandler{DB: db, Cookies: cookies, OTP: otpSvc}
}

type RegisterReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(u models.User, p *models.Profile) fiber.Map {
	out := fiber.Map{
		"id":                u.ID,
		"email":             u.Email,
		"email_verified_at": u.EmailVerifiedAt,
		"role":              models.RoleUnset,
	}
	if p != nil {
		out["role"] = p.Role
		out["full_name"] = p.FullName
		out["avatar_url"] = p.AvatarURL
	}
	return out
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	name := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := utils.FieldErrors{}
	if name == "" {
		errs.Add("full_name", "full name is required")
	}
	if email == "" {
		errs.Add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "email is not valid")
	}
	if password == "" {
		errs.Add("password", "password is required")
	} else if len(password) < 6 {
		errs.Add("password", "password must be at least 6 characters")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return fail500(c, "failed to process password", err)
	}

	u := models.User{
		Email:    email,
		Password: pw,
		IsActive: true,
	}
	var p *models.Profile
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		p, err = profile.CreateForUser(tx, u.ID, name)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			errs.Add("email", "email is already registered")
			return validationFail(c, errs)
		}
		return fail500(c, "failed to register", err)
	}

	if err := h.Cookies.Issue(c, u.ID, u.Email, models.RoleUnset); err != nil {
		return fail500(c, "failed to create token", err)
	}

	if h.OTP != nil {
		if err := h.OTP.Send(c.UserContext(), otp.PurposeVerifyEmail, u.Email); err != nil {
			zap.L().Warn("send verification code", zap.Stringer("user_id", u.ID), zap.Error(err))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"message":  "registered",
		"redirect": middleware.RoleSelectionPath,
		"data":     fiber.Map{"user": userJSON(u, p)},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := utils.FieldErrors{}
	if email == "" {
		errs.Add("email", "email is required")
	}
	if password == "" {
		errs.Add("password", "password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	err := h.DB.WithContext(c.UserContext()).
		Preload("Profile").
		Where("email = ?", email).
		First(&u).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fail500(c, "internal server error", err)
		}
		return fail(c, fiber.StatusUnauthorized, "wrong email or password")
	}

	if !u.IsActive {
		return fail(c, fiber.StatusForbidden, "account is inactive")
	}
	if !utils.CheckPassword(u.Password, password) {
		return fail(c, fiber.StatusUnauthorized, "wrong email or password")
	}

	role := models.RoleUnset
	if u.Profile != nil {
		role = u.Profile.Role
	}
	if err := h.Cookies.Issue(c, u.ID, u.Email, role); err != nil {
		return fail500(c, "failed to create token", err)
	}

	resp := fiber.Map{
		"success": true,
		"message": "logged in",
		"data":    fiber.Map{"user": userJSON(u, u.Profile)},
	}
	if role == models.RoleUnset {
		resp["redirect"] = middleware.RoleSelectionPath
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.Cookies.Clear(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "logged out",
	})
}

// Me reads the role from the profile, not the token, so it reflects a
// registration made on another device.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	s := session.From(c)

	var u models.User
	if err := h.DB.WithContext(c.UserContext()).Preload("Profile").First(&u, "id = ?", s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, fiber.StatusUnauthorized, "user not found")
		}
		return fail500(c, "internal server error", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    userJSON(u, u.Profile),
	})
}

type sendOTPReq struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// SendOTP always reports success for unknown emails so it cannot be used
// to probe for accounts.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	purpose := otp.Purpose(strings.TrimSpace(req.Purpose))

	errs := utils.FieldErrors{}
	if email == "" {
		errs.Add("email", "email is required")
	}
	if !purpose.Valid() {
		errs.Add("purpose", "purpose must be verify_email or reset_password")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	err := h.DB.WithContext(c.UserContext()).Select("id", "email", "email_verified_at").Where("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(fiber.Map{"success": true, "message": "code sent"})
	case err != nil:
		return fail500(c, "internal server error", err)
	}

	if purpose == otp.PurposeVerifyEmail && u.EmailVerifiedAt != nil {
		return c.JSON(fiber.Map{"success": true, "message": "email already verified"})
	}

	if err := h.OTP.Send(c.UserContext(), purpose, email); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "code sent"})
}

type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.OTP.Verify(c.UserContext(), otp.PurposeVerifyEmail, email, req.Code); err != nil {
		return h.otpFail(c, otp.PurposeVerifyEmail, email, err)
	}

	now := time.Now()
	res := h.DB.WithContext(c.UserContext()).
		Model(&models.User{}).
		Where("email = ? AND email_verified_at IS NULL", email).
		Update("email_verified_at", now)
	if res.Error != nil {
		return fail500(c, "failed to verify email", res.Error)
	}

	return c.JSON(fiber.Map{"success": true, "message": "email verified"})
}

type resetPasswordReq struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if len(password) < 6 {
		errs := utils.FieldErrors{}
		errs.Add("password", "password must be at least 6 characters")
		return validationFail(c, errs)
	}

	if err := h.OTP.Verify(c.UserContext(), otp.PurposeResetPassword, email, req.Code); err != nil {
		return h.otpFail(c, otp.PurposeResetPassword, email, err)
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return fail500(c, "failed to process password", err)
	}
	res := h.DB.WithContext(c.UserContext()).
		Model(&models.User{}).
		Where("email = ?", email).
		Update("password", pw)
	if res.Error != nil {
		return fail500(c, "failed to reset password", res.Error)
	}

	h.Cookies.Clear(c)
	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

func (h *AuthHandler) otpFail(c *fiber.Ctx, purpose otp.Purpose, email string, err error) error {
	if !errors.Is(err, otp.ErrCodeMismatch) {
		return serviceError(c, err)
	}
	left, rerr := h.OTP.Remaining(c.UserContext(), purpose, email)
	if rerr != nil {
		zap.L().Warn("read otp attempts", zap.Error(rerr))
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":            false,
		"message":            err.Error(),
		"attempts_remaining": left,
	})
}
