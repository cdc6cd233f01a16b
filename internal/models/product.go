package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ElderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"elder_id"`
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index" json:"volunteer_id"`
	OwnerRole   Role      `gorm:"type:varchar(20);not null" json:"owner_role"` // volunteer | broker

	Name        string   `gorm:"type:varchar(150);not null" json:"name"`
	Description string   `gorm:"type:text" json:"description"`
	Price       *float64 `json:"price"` // null when left empty on the form
	ImageURL    string   `gorm:"type:text" json:"image_url"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Elder *Elder `gorm:"foreignKey:ElderID" json:"elder,omitempty"`
}
