package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor || r == RoleAdmin
}

// User is a tagged variant over Role. Role is fixed at registration.
type User struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Role              Role      `gorm:"size:20;not null;index" json:"role"`
	FullName          string    `gorm:"size:255;not null" json:"name"`
	Email             string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password          string    `gorm:"not null" json:"-"`
	PhoneNumber       *string   `gorm:"size:32" json:"phoneNumber,omitempty"`
	Location          *string   `gorm:"size:255" json:"location,omitempty"`
	Bio               *string   `gorm:"type:text" json:"bio,omitempty"`
	ProfilePictureURL *string   `gorm:"size:255" json:"profilePicture,omitempty"`
	TutorialCompleted bool      `gorm:"not null;default:false" json:"tutorialCompleted"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}
