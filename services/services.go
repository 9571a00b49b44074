// Package services holds the appointment, messaging, notification,
// availability and auth engines. Engines take a context carrying the
// request deadline and return *apperror.Error values the HTTP layer maps
// to status codes.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clock returns the current time. Tests replace it to move appointments
// into the past.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

func (c Clock) now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c().UTC()
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	ID   uuid.UUID
	Role models.Role
}

// Realtime is the per-user push channel. Occupied reports whether the user
// currently has a live connection.
type Realtime interface {
	Occupied(ctx context.Context, userID uuid.UUID) (bool, error)
	Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

const (
	EventDirectMessage      = "direct_message"
	EventAppointmentMessage = "appointment_message"
)

const maxMessageLength = 5000

var zoneLessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseInstant reads an ISO-8601 timestamp. Values without an offset are
// taken as UTC. The result is always in UTC.
func ParseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zoneLessLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.BadRequest("Invalid time format, expected ISO-8601")
}

// parseRange parses and orders a [start, end) pair.
func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := ParseInstant(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseInstant(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, apperror.BadRequest("startTime must be before endTime")
	}
	return start, end, nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.BadRequest("Message content cannot be empty")
	}
	if len([]rune(content)) > maxMessageLength {
		return "", apperror.BadRequest("Message content is too long")
	}
	return content, nil
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func inTx(ctx context.Context, db *gorm.DB, fn func(dbc dbctx.Context) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
