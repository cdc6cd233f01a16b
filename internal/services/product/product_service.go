package product

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
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
	ErrProductNotFound = errors.New("product not found")
)

const uploadDir = "products"

type ProductService struct {
	DB    *gorm.DB
	Store storage.Store
}

func NewProductService(db *gorm.DB, store storage.Store) *ProductService {
	return &ProductService{DB: db, Store: store}
}

// Input is a product form as submitted. Price is the raw form value.
type Input struct {
	Name        string
	Description string
	Price       string
}

// ParsePrice coerces a form value: "" is no price, anything else must be
// a finite number >= 0.
func ParsePrice(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errors.New("price must be a number")
	}
	if v < 0 {
		return nil, errors.New("price must be >= 0")
	}
	return &v, nil
}

func (in Input) parse() (name, desc string, price *float64, err error) {
	fe := utils.FieldErrors{}
	name = strings.TrimSpace(in.Name)
	if name == "" {
		fe.Add("name", "name is required")
	} else if len([]rune(name)) > 150 {
		fe.Add("name", "name must be at most 150 characters")
	}
	price, perr := ParsePrice(in.Price)
	if perr != nil {
		fe.Add("price", perr.Error())
	}
	return name, strings.TrimSpace(in.Description), price, fe.Err()
}

// ownedElder loads an elder managed by the caller.
func (s *ProductService) ownedElder(ctx context.Context, sess session.Session, elderID uuid.UUID) (*models.Elder, error) {
	var e models.Elder
	if err := s.DB.WithContext(ctx).First(&e, "id = ? AND volunteer_id = ?", elderID, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrElderNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *ProductService) Create(ctx context.Context, sess session.Session, elderID uuid.UUID, in Input, image *storage.File) (*models.Product, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	name, desc, price, err := in.parse()
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedElder(ctx, sess, elderID); err != nil {
		return nil, err
	}

	up := storage.NewBatch(s.Store)
	imageURL, err := up.PutImage(ctx, uploadDir, sess.UserID, "image", image)
	if err != nil {
		return nil, err
	}

	p := models.Product{
		ElderID:     elderID,
		VolunteerID: sess.UserID,
		OwnerRole:   sess.Role,
		Name:        name,
		Description: desc,
		Price:       price,
		ImageURL:    imageURL,
	}
	if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
		up.Rollback(ctx)
		zap.L().Error("create product", zap.Stringer("elder_id", elderID), zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// Update replaces the editable fields. A new image replaces the old one,
// which is then removed from the store; without one the old URL is kept.
func (s *ProductService) Update(ctx context.Context, sess session.Session, id uint, in Input, image *storage.File) (*models.Product, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	name, desc, price, err := in.parse()
	if err != nil {
		return nil, err
	}

	p, err := s.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	up := storage.NewBatch(s.Store)
	newURL, err := up.PutImage(ctx, uploadDir, sess.UserID, "image", image)
	if err != nil {
		return nil, err
	}

	oldURL := p.ImageURL
	updates := map[string]any{
		"name":        name,
		"description": desc,
		"price":       price,
	}
	if newURL != "" {
		updates["image_url"] = newURL
	}

	res := s.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND volunteer_id = ?", id, sess.UserID).
		Updates(updates)
	if res.Error != nil || res.RowsAffected == 0 {
		up.Rollback(ctx)
		if res.Error != nil {
			return nil, fmt.Errorf("update product: %w", res.Error)
		}
		return nil, ErrProductNotFound
	}

	if newURL != "" && oldURL != "" && oldURL != newURL {
		storage.DeleteURL(ctx, s.Store, oldURL)
	}
	return s.owned(ctx, sess, id)
}

func (s *ProductService) Delete(ctx context.Context, sess session.Session, id uint) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	p, err := s.owned(ctx, sess, id)
	if err != nil {
		return err
	}

	res := s.DB.WithContext(ctx).
		Where("id = ? AND volunteer_id = ?", id, sess.UserID).
		Delete(&models.Product{})
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}

	if p.ImageURL != "" {
		storage.DeleteURL(ctx, s.Store, p.ImageURL)
	}
	return nil
}

// ListByElder returns the products of an elder owned by the caller, newest first.
func (s *ProductService) ListByElder(ctx context.Context, sess session.Session, elderID uuid.UUID) ([]models.Product, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if _, err := s.ownedElder(ctx, sess, elderID); err != nil {
		return nil, err
	}
	var out []models.Product
	err := s.DB.WithContext(ctx).
		Where("elder_id = ?", elderID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

// Get is public: anyone holding the product link may view it.
func (s *ProductService) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).Preload("Elder").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) owned(ctx context.Context, sess session.Session, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, "id = ? AND volunteer_id = ?", id, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}
