package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskType string

const (
	TaskPostProduct TaskType = "post_product"
	TaskPackProduct TaskType = "pack_product"
)

func (t TaskType) Valid() bool {
	return t == TaskPostProduct || t == TaskPackProduct
}

var (
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrMixedCard       = errors.New("elder card has fields of both task types")
	ErrInvalidCard     = errors.New("invalid elder card")
)

// CardDetails is the task-type specific half of an ElderCard.
// Implemented only by PostProduct and PackProduct.
type CardDetails interface {
	TaskType() TaskType
	validate() error
}

// PostProduct: the volunteer photographs and posts the listed goods.
type PostProduct struct {
	Descriptions []string `json:"product_descriptions"`
}

func (PostProduct) TaskType() TaskType { return TaskPostProduct }

func (p PostProduct) validate() error {
	for i, d := range p.Descriptions {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: product_descriptions[%d] is empty", ErrInvalidCard, i)
		}
	}
	return nil
}

// PackProduct: the volunteer packs and ships an already listed product.
type PackProduct struct {
	Name        string   `json:"product_name"`
	ImageURL    string   `json:"product_image,omitempty"`
	Price       float64  `json:"product_price"`
	MarketShare *float64 `json:"market_share,omitempty"` // percent
	Detail      string   `json:"product_detail,omitempty"`
}

func (PackProduct) TaskType() TaskType { return TaskPackProduct }

func (p PackProduct) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product_name is required", ErrInvalidCard)
	}
	if !finite(p.Price) || p.Price < 0 {
		return fmt.Errorf("%w: product_price must be >= 0", ErrInvalidCard)
	}
	if p.MarketShare != nil && (!finite(*p.MarketShare) || *p.MarketShare < 0 || *p.MarketShare > 100) {
		return fmt.Errorf("%w: market_share must be between 0 and 100", ErrInvalidCard)
	}
	return nil
}

// ElderCard is a posting by or about an elderly artisan.
type ElderCard struct {
	ID          uuid.UUID
	VolunteerID uuid.UUID
	AvatarURL   string
	Name        string
	Phone       string
	Location    string
	DistanceKM  *float64
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time

	Details CardDetails
}

func (c ElderCard) TaskType() TaskType {
	if c.Details == nil {
		return ""
	}
	return c.Details.TaskType()
}

// ProductNames returns the product labels a search may match: the
// description lines of a post card or the product name of a pack card.
func (c ElderCard) ProductNames() []string {
	switch d := c.Details.(type) {
	case PostProduct:
		return d.Descriptions
	case PackProduct:
		return []string{d.Name}
	}
	return nil
}

func (c ElderCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCard)
	}
	if c.Details == nil {
		return ErrUnknownTaskType
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidCard)
	}
	if c.Latitude != nil && (!finite(*c.Latitude) || math.Abs(*c.Latitude) > 90) {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCard)
	}
	if c.Longitude != nil && (!finite(*c.Longitude) || math.Abs(*c.Longitude) > 180) {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidCard)
	}
	if c.DistanceKM != nil && (!finite(*c.DistanceKM) || *c.DistanceKM < 0) {
		return fmt.Errorf("%w: distance_km must be >= 0", ErrInvalidCard)
	}
	return c.Details.validate()
}

// finite rejects NaN and ±Inf, which encoding/json cannot represent.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Row flattens the card into its table representation.
func (c ElderCard) Row() ElderCardRow {
	r := ElderCardRow{
		ID:          c.ID,
		VolunteerID: c.VolunteerID,
		TaskType:    c.TaskType(),
		AvatarURL:   c.AvatarURL,
		Name:        c.Name,
		Phone:       c.Phone,
		Location:    c.Location,
		DistanceKM:  c.DistanceKM,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		CreatedAt:   c.CreatedAt,
	}

	switch d := c.Details.(type) {
	case PostProduct:
		r.ProductDescriptions = datatypes.NewJSONSlice(d.Descriptions)
	case PackProduct:
		name, price := d.Name, d.Price
		r.ProductName = &name
		r.ProductPrice = &price
		r.MarketShare = d.MarketShare
		if d.ImageURL != "" {
			img := d.ImageURL
			r.ProductImage = &img
		}
		if d.Detail != "" {
			detail := d.Detail
			r.ProductDetail = &detail
		}
	}
	return r
}

func (c ElderCard) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":           c.ID,
		"volunteer_id": c.VolunteerID,
		"task_type":    c.TaskType(),
		"avatar_url":   c.AvatarURL,
		"name":         c.Name,
		"phone":        c.Phone,
		"location":     c.Location,
		"distance_km":  c.DistanceKM,
		"created_at":   c.CreatedAt,
	}
	switch d := c.Details.(type) {
	case PostProduct:
		descs := d.Descriptions
		if descs == nil {
			descs = []string{}
		}
		out["product_descriptions"] = descs
	case PackProduct:
		out["product_name"] = d.Name
		out["product_image"] = d.ImageURL
		out["product_price"] = d.Price
		out["market_share"] = d.MarketShare
		out["product_detail"] = d.Detail
	}
	return json.Marshal(out)
}

// ElderCardRow is the elder_cards table. Only one attribute cluster is
// populated, chosen by TaskType.
type ElderCardRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index"`
	TaskType    TaskType  `gorm:"type:varchar(20);not null;index"`

	AvatarURL  string `gorm:"type:text"`
	Name       string `gorm:"type:varchar(150);not null"`
	Phone      string `gorm:"type:varchar(30)"`
	Location   string `gorm:"type:text"`
	DistanceKM *float64
	Latitude   *float64
	Longitude  *float64

	// post_product
	ProductDescriptions datatypes.JSONSlice[string]

	// pack_product
	ProductName   *string `gorm:"type:varchar(150)"`
	ProductImage  *string `gorm:"type:text"`
	ProductPrice  *float64
	MarketShare   *float64
	ProductDetail *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (ElderCardRow) TableName() string { return "elder_cards" }

func (r *ElderCardRow) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// Card rebuilds the tagged form, refusing rows whose clusters are mixed.
func (r ElderCardRow) Card() (ElderCard, error) {
	c := ElderCard{
		ID:          r.ID,
		VolunteerID: r.VolunteerID,
		AvatarURL:   r.AvatarURL,
		Name:        r.Name,
		Phone:       r.Phone,
		Location:    r.Location,
		DistanceKM:  r.DistanceKM,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		CreatedAt:   r.CreatedAt,
	}

	packSet := r.ProductName != nil || r.ProductImage != nil || r.ProductPrice != nil ||
		r.MarketShare != nil || r.ProductDetail != nil

	switch r.TaskType {
	case TaskPostProduct:
		if packSet {
			return ElderCard{}, fmt.Errorf("card %s: %w", r.ID, ErrMixedCard)
		}
		c.Details = PostProduct{Descriptions: []string(r.ProductDescriptions)}
	case TaskPackProduct:
		if len(r.ProductDescriptions) > 0 {
			return ElderCard{}, fmt.Errorf("card %s: %w", r.ID, ErrMixedCard)
		}
		p := PackProduct{MarketShare: r.MarketShare}
		if r.ProductName != nil {
			p.Name = *r.ProductName
		}
		if r.ProductImage != nil {
			p.ImageURL = *r.ProductImage
		}
		if r.ProductPrice != nil {
			p.Price = *r.ProductPrice
		}
		if r.ProductDetail != nil {
			p.Detail = *r.ProductDetail
		}
		c.Details = p
	default:
		return ElderCard{}, fmt.Errorf("card %s: %w: %q", r.ID, ErrUnknownTaskType, r.TaskType)
	}
	return c, nil
}
