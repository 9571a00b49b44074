package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationTypeAppointment = "appointment"
	NotificationTypeMessage     = "message"
)

// Notification is an inbox item. Exactly one of LinkedAppointmentID and
// LinkedMessageID is set.
type Notification struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ForUserID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	Content             string     `gorm:"type:text;not null"`
	LinkedAppointmentID *uuid.UUID `gorm:"type:uuid;index"`
	LinkedMessageID     *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt           time.Time  `gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

func (n *Notification) Type() string {
	if n.LinkedAppointmentID != nil {
		return NotificationTypeAppointment
	}
	return NotificationTypeMessage
}
