package services

import (
	"context"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationView struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	Content string    `json:"content"`
}

type NotificationService struct {
	db    *gorm.DB
	notes repository.NotificationRepo
	log   *logger.Logger
}

func NewNotificationService(db *gorm.DB, notes repository.NotificationRepo, log *logger.Logger) *NotificationService {
	return &NotificationService{db: db, notes: notes, log: log.With("service", "NotificationService")}
}

func (s *NotificationService) List(ctx context.Context, caller Caller) ([]uuid.UUID, error) {
	notes, err := s.notes.ListForUser(dbctx.New(ctx), caller.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids, nil
}

// Read returns the notification and deletes it. A notification can be read
// at most once.
func (s *NotificationService) Read(ctx context.Context, caller Caller, id uuid.UUID) (NotificationView, error) {
	var n *models.Notification
	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		var err error
		n, err = s.notes.GetByID(dbc, id)
		if isNotFound(err) {
			return apperror.NotFound("Notification not found")
		}
		if err != nil {
			return err
		}
		if n.ForUserID != caller.ID {
			return apperror.Forbidden("This notification belongs to another user")
		}
		deleted, err := s.notes.Delete(dbc, id)
		if err != nil {
			return err
		}
		if !deleted {
			return apperror.NotFound("Notification not found")
		}
		return nil
	})
	if err != nil {
		return NotificationView{}, err
	}
	return NotificationView{ID: n.ID, Type: n.Type(), Content: n.Content}, nil
}
