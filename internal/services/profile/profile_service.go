package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

var (
	ErrUnauthenticated = errors.New("login required")
	ErrProfileNotFound = errors.New("profile not found")
	ErrRoleAlreadySet  = errors.New("role already registered")
	ErrInvalidRole     = errors.New("role must be volunteer or broker")
)

type ProfileService struct {
	DB    *gorm.DB
	Store storage.Store
}

func NewProfileService(db *gorm.DB, store storage.Store) *ProfileService {
	return &ProfileService{DB: db, Store: store}
}

// CreateForUser inserts the empty profile that accompanies a new user. It
// runs on tx so sign-up writes both rows or neither.
func CreateForUser(tx *gorm.DB, userID uuid.UUID, fullName string) (*models.Profile, error) {
	p := models.Profile{
		ID:       userID,
		Role:     models.RoleUnset,
		FullName: strings.TrimSpace(fullName),
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

type RoleInput struct {
	Role        models.Role
	FullName    string
	Phone       string
	Province    string
	District    string
	Subdistrict string
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phone
}

func (in RoleInput) validate() error {
	fe := utils.FieldErrors{}
	if !in.Role.Valid() {
		fe.Add("role", ErrInvalidRole.Error())
	}
	if p := normalizePhone(in.Phone); p != "" {
		for _, ch := range strings.TrimPrefix(p, "+") {
			if ch < '0' || ch > '9' {
				fe.Add("phone", "phone may contain digits only")
				break
			}
		}
	}
	if strings.TrimSpace(in.Province) == "" {
		fe.Add("province", "province is required")
	}
	if strings.TrimSpace(in.District) == "" {
		fe.Add("district", "district is required")
	}
	return fe.Err()
}

// RegisterRole sets the caller's role and locality. It succeeds once per
// profile; afterwards ErrRoleAlreadySet is returned.
func (s *ProfileService) RegisterRole(ctx context.Context, sess session.Session, in RoleInput, avatar *storage.File) (*models.Profile, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	in.Role = models.Role(strings.ToLower(strings.TrimSpace(string(in.Role))))
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if current.Role != models.RoleUnset {
		return nil, ErrRoleAlreadySet
	}

	up := storage.NewBatch(s.Store)
	avatarURL, err := up.PutImage(ctx, "profiles", sess.UserID, "avatar", avatar)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"role":        in.Role,
		"phone":       normalizePhone(in.Phone),
		"province":    strings.TrimSpace(in.Province),
		"district":    strings.TrimSpace(in.District),
		"subdistrict": strings.TrimSpace(in.Subdistrict),
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		updates["full_name"] = name
	}
	if avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND (role = ? OR role IS NULL)", sess.UserID, models.RoleUnset).
		Updates(updates)
	if res.Error != nil {
		up.Rollback(ctx)
		return nil, fmt.Errorf("register role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost a race with another registration
		up.Rollback(ctx)
		return nil, ErrRoleAlreadySet
	}
	return s.Get(ctx, sess.UserID)
}
