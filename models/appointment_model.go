package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentState string

const (
	StateRequested AppointmentState = "requested"
	StateAccepted  AppointmentState = "accepted"
	StateCompleted AppointmentState = "completed"
)

type Appointment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StudentID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TutorID       uuid.UUID `gorm:"type:uuid;not null;index"`
	StartTime     time.Time `gorm:"not null;index"`
	EndTime       time.Time `gorm:"not null"`
	TutorAccepted bool      `gorm:"not null;default:false"`

	// Version is bumped by every state-changing write; updates are
	// conditional on the version that was read.
	Version        int `gorm:"not null;default:1"`
	ReminderSentAt *time.Time

	Rating *Rating `gorm:"foreignKey:AppointmentID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// State derives the lifecycle state. Completion is purely a function of
// time: an appointment whose end has passed is completed.
func (a *Appointment) State(now time.Time) AppointmentState {
	switch {
	case !a.EndTime.After(now):
		return StateCompleted
	case a.TutorAccepted:
		return StateAccepted
	default:
		return StateRequested
	}
}

func (a *Appointment) IsParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (a.StudentID == userID || a.TutorID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (a *Appointment) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if a.StudentID == userID {
		return a.TutorID
	}
	return a.StudentID
}
