package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TutorAvailability is a half-open interval [StartTime, EndTime). Intervals
// of one tutor never overlap; the availability service enforces it on write.
type TutorAvailability struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TutorID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tutorId"`
	StartTime time.Time `gorm:"not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`
}

func (a *TutorAvailability) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
