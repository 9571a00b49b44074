package services

import (
	"context"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/google/uuid"
)

type deliveryOutcome int

const (
	deliveredRealtime deliveryOutcome = iota
	deliveredNotification
	deliveryFailed
)

// fallbackTimeout bounds the notification write, which runs even when the
// request deadline was spent on a failed push.
const fallbackTimeout = 5 * time.Second

// deliver pushes payload to recipient when they are connected and falls back
// to persist (which stores a notification) when they are not or the push
// fails. The message itself is already committed, so a failed fallback is
// only logged. The push runs under ctx; the fallback does not inherit its
// cancellation.
func deliver(ctx context.Context, rt Realtime, log *logger.Logger, recipient uuid.UUID, event string, payload interface{}, persist func(context.Context) error) deliveryOutcome {
	occupied, err := rt.Occupied(ctx, recipient)
	if err != nil {
		log.Warn("occupancy check failed", "user_id", recipient, "error", err)
	}
	if err == nil && occupied {
		pushErr := rt.Push(ctx, recipient, event, payload)
		if pushErr == nil {
			return deliveredRealtime
		}
		log.Warn("realtime push failed, storing notification", "user_id", recipient, "event", event, "error", pushErr)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackTimeout)
	defer cancel()
	if err := persist(pctx); err != nil {
		log.Error("notification fallback failed", "user_id", recipient, "event", event, "error", err)
		return deliveryFailed
	}
	return deliveredNotification
}
