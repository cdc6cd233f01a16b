package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Elder is an artisan managed by a volunteer or broker.
type Elder struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index" json:"volunteer_id"`

	FirstName   string `gorm:"type:varchar(80);not null" json:"first_name"`
	LastName    string `gorm:"type:varchar(80)" json:"last_name"`
	Age         *int   `json:"age"`
	Phone       string `gorm:"type:varchar(30)" json:"phone"`
	Province    string `gorm:"type:varchar(80)" json:"province"`
	District    string `gorm:"type:varchar(80)" json:"district"`
	Subdistrict string `gorm:"type:varchar(80)" json:"subdistrict"`
	AvatarURL   string `gorm:"type:text" json:"avatar_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Elder) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

func (e *Elder) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
