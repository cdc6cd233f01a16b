package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUnset     Role = ""
	RoleVolunteer Role = "volunteer"
	RoleBroker    Role = "broker"
)

// Valid reports whether r is a role a user may register as.
func (r Role) Valid() bool {
	return r == RoleVolunteer || r == RoleBroker
}

// internal/models/user.go
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	// empty for accounts created through Google sign-in
	Password        string     `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	IsActive        bool       `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// HAS ONE profile (profiles.id -> users.id)
	Profile *Profile `gorm:"foreignKey:ID;references:ID" json:"profile,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// Profile shares its primary key with the auth identity.
type Profile struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Role Role      `gorm:"type:varchar(20);index" json:"role"`

	FullName    string `gorm:"type:varchar(150)" json:"full_name"`
	Phone       string `gorm:"type:varchar(30)" json:"phone"`
	Province    string `gorm:"type:varchar(80)" json:"province"`
	District    string `gorm:"type:varchar(80)" json:"district"`
	Subdistrict string `gorm:"type:varchar(80)" json:"subdistrict"`
	AvatarURL   string `gorm:"type:text" json:"avatar_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
