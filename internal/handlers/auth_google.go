package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/db"
	"github.com/saan-app/saan_be/internal/middleware"
	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/services/profile"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	DB              *gorm.DB
	Cookies         SessionCookies
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	st := randomState(32)

	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", next, 10*60)

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) loginError(c *fiber.Ctx, msg string) error {
	return c.Redirect(h.FrontendBaseURL+"/auth/login?err="+url.QueryEscape(msg), http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return fail(c, fiber.StatusBadRequest, "missing code or state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" || !strings.HasPrefix(next, "/") {
		next = "/"
	}
	if stCookie == "" || stCookie != state {
		return fail(c, fiber.StatusBadRequest, "invalid state")
	}

	ctx := c.UserContext()
	tok, err := h.oauthCfg().Exchange(ctx, code)
	if err != nil {
		zap.L().Warn("google code exchange", zap.Error(err))
		return h.loginError(c, "google sign-in failed")
	}

	resp, err := h.oauthCfg().Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		zap.L().Warn("google userinfo", zap.Error(err))
		return h.loginError(c, "google sign-in failed")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return h.loginError(c, "google sign-in failed")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	if email == "" {
		return h.loginError(c, "google account has no email")
	}

	u, err := h.findOrCreate(c, email, gu)
	if err != nil {
		return fail500(c, "failed to create account", err)
	}
	if !u.IsActive {
		return h.loginError(c, "account is inactive")
	}

	role := models.RoleUnset
	if u.Profile != nil {
		role = u.Profile.Role
	}
	if err := h.Cookies.Issue(c, u.ID, u.Email, role); err != nil {
		return fail500(c, "failed to create token", err)
	}

	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)

	if role == models.RoleUnset {
		next = middleware.RoleSelectionPath
	}
	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}

// findOrCreate upserts the user by email. New Google users have no
// password and get an empty profile.
func (h *GoogleOAuthHandler) findOrCreate(c *fiber.Ctx, email string, gu googleUserInfo) (*models.User, error) {
	tx := h.DB.WithContext(c.UserContext())

	var u models.User
	err := tx.Preload("Profile").Where("email = ?", email).First(&u).Error
	if err == nil {
		if gu.VerifiedEmail && u.EmailVerifiedAt == nil {
			now := time.Now()
			u.EmailVerifiedAt = &now
			_ = tx.Model(&u).Update("email_verified_at", now).Error
		}
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = models.User{Email: email, IsActive: true}
	if gu.VerifiedEmail {
		now := time.Now()
		u.EmailVerifiedAt = &now
	}
	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		p, err := profile.CreateForUser(tx, u.ID, gu.Name)
		if err != nil {
			return err
		}
		if gu.Picture != "" {
			p.AvatarURL = gu.Picture
			if err := tx.Model(p).Update("avatar_url", gu.Picture).Error; err != nil {
				return err
			}
		}
		u.Profile = p
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			// created concurrently by a parallel callback
			if err := tx.Preload("Profile").Where("email = ?", email).First(&u).Error; err == nil {
				return &u, nil
			}
		}
		return nil, err
	}
	return &u, nil
}
