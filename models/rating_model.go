package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Rating struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	AppointmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	TutorID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Score         int       `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
