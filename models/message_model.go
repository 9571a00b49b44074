package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message belongs to exactly one parent: an appointment chat or a direct
// message thread.
type Message struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SentByID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	SentTime        time.Time  `gorm:"not null;index:idx_messages_appointment_sent,priority:2;index:idx_messages_thread_sent,priority:2"`
	Content         string     `gorm:"type:text;not null"`
	AppointmentID   *uuid.UUID `gorm:"type:uuid;index:idx_messages_appointment_sent,priority:1"`
	DirectMessageID *uuid.UUID `gorm:"type:uuid;index:idx_messages_thread_sent,priority:1"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
