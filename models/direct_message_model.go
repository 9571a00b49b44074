package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DirectMessage is the thread between an unordered pair of users. UserAID is
// whoever sent the first message; PairKey makes the pair unique.
type DirectMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserAID   uuid.UUID `gorm:"type:uuid;not null;index"`
	UserBID   uuid.UUID `gorm:"type:uuid;not null;index"`
	PairKey   string    `gorm:"size:73;not null;uniqueIndex"`
	CreatedAt time.Time
}

func (d *DirectMessage) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	if d.PairKey == "" {
		d.PairKey = PairKey(d.UserAID, d.UserBID)
	}
	return nil
}

func (d *DirectMessage) Other(userID uuid.UUID) uuid.UUID {
	if d.UserAID == userID {
		return d.UserBID
	}
	return d.UserAID
}

// PairKey is the order-independent key of {a, b}.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if bs < as {
		as, bs = bs, as
	}
	return as + ":" + bs
}
