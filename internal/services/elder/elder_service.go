package elder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/models"
	"github.com/saan-app/saan_be/internal/session"
	"github.com/saan-app/saan_be/internal/storage"
	"github.com/saan-app/saan_be/internal/utils"
)

var (
	ErrUnauthenticated = errors.New("login required")
	ErrElderNotFound   = errors.New("elder not found")
	ErrCardNotFound    = errors.New("elder card not found")
)

// Upload directories inside the blob store.
const (
	dirElders = "elders"
	dirCards  = "elder-cards"
)

type ElderService struct {
	DB    *gorm.DB
	Store storage.Store
}

func NewElderService(db *gorm.DB, store storage.Store) *ElderService {
	return &ElderService{DB: db, Store: store}
}

type ElderInput struct {
	FirstName   string
	LastName    string
	Age         *int
	Phone       string
	Province    string
	District    string
	Subdistrict string
}

func (in ElderInput) validate() error {
	fe := utils.FieldErrors{}
	if strings.TrimSpace(in.FirstName) == "" {
		fe.Add("first_name", "first name is required")
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		fe.Add("age", "age must be between 0 and 150")
	}
	return fe.Err()
}

func (s *ElderService) CreateElder(ctx context.Context, sess session.Session, in ElderInput, avatar *storage.File) (*models.Elder, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	up := storage.NewBatch(s.Store)
	avatarURL, err := up.PutImage(ctx, dirElders, sess.UserID, "avatar", avatar)
	if err != nil {
		return nil, err
	}

	e := models.Elder{
		VolunteerID: sess.UserID,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Age:         in.Age,
		Phone:       strings.TrimSpace(in.Phone),
		Province:    strings.TrimSpace(in.Province),
		District:    strings.TrimSpace(in.District),
		Subdistrict: strings.TrimSpace(in.Subdistrict),
		AvatarURL:   avatarURL,
	}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		up.Rollback(ctx)
		return nil, fmt.Errorf("create elder: %w", err)
	}
	return &e, nil
}

// ListElders returns the elders owned by the caller, newest first.
func (s *ElderService) ListElders(ctx context.Context, sess session.Session) ([]models.Elder, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var out []models.Elder
	err := s.DB.WithContext(ctx).
		Where("volunteer_id = ?", sess.UserID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *ElderService) GetElder(ctx context.Context, sess session.Session, id uuid.UUID) (*models.Elder, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var e models.Elder
	if err := s.DB.WithContext(ctx).First(&e, "id = ? AND volunteer_id = ?", id, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrElderNotFound
		}
		return nil, err
	}
	return &e, nil
}

// CardInput is an ElderCard before its images are stored.
type CardInput struct {
	Card         models.ElderCard
	Avatar       *storage.File
	ProductImage *storage.File
}

// CreateCard stores the card images and inserts the row. If the insert
// fails every image stored by this call is deleted again.
func (s *ElderService) CreateCard(ctx context.Context, sess session.Session, in CardInput) (*models.ElderCard, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	card := in.Card
	card.ID = uuid.Nil
	card.VolunteerID = sess.UserID
	if err := card.Validate(); err != nil {
		return nil, err
	}
	if in.ProductImage != nil && card.TaskType() != models.TaskPackProduct {
		return nil, fmt.Errorf("%w: product_image is only allowed on pack_product cards", models.ErrInvalidCard)
	}

	up := storage.NewBatch(s.Store)
	avatarURL, err := up.PutImage(ctx, dirCards, sess.UserID, "avatar", in.Avatar)
	if err != nil {
		return nil, err
	}
	if avatarURL != "" {
		card.AvatarURL = avatarURL
	}

	if pack, ok := card.Details.(models.PackProduct); ok && in.ProductImage != nil {
		imgURL, err := up.PutImage(ctx, dirCards, sess.UserID, "product", in.ProductImage)
		if err != nil {
			up.Rollback(ctx)
			return nil, err
		}
		pack.ImageURL = imgURL
		card.Details = pack
	}

	row := card.Row()
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		up.Rollback(ctx)
		zap.L().Error("create elder card", zap.Error(err))
		return nil, fmt.Errorf("create elder card: %w", err)
	}

	created, err := row.Card()
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *ElderService) GetCard(ctx context.Context, id uuid.UUID) (*models.ElderCard, error) {
	var row models.ElderCardRow
	if err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	card, err := row.Card()
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCards returns the caller's well-formed cards, newest first.
func (s *ElderService) ListCards(ctx context.Context, sess session.Session) ([]models.ElderCard, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var rows []models.ElderCardRow
	if err := s.DB.WithContext(ctx).
		Where("volunteer_id = ?", sess.UserID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list elder cards: %w", err)
	}
	out := make([]models.ElderCard, 0, len(rows))
	for _, r := range rows {
		card, err := r.Card()
		if err != nil {
			zap.L().Warn("skip malformed elder card", zap.Error(err))
			continue
		}
		out = append(out, card)
	}
	return out, nil
}
