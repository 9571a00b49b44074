package repository

import (
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepo interface {
	Create(dbc dbctx.Context, n *models.Notification) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*models.Notification, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.Notification, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
	DeleteByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) error
	DeleteByMessages(dbc dbctx.Context, messageIDs []uuid.UUID) error
	// DeleteForUserByMessages clears userID's notifications that point at
	// any of messageIDs and returns how many were removed.
	DeleteForUserByMessages(dbc dbctx.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: log.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(dbc dbctx.Context, n *models.Notification) error {
	if (n.LinkedAppointmentID == nil) == (n.LinkedMessageID == nil) {
		return ErrInvalidLink
	}
	return dbc.DB(r.db).Create(n).Error
}

func (r *notificationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := dbc.DB(r.db).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.Notification, error) {
	var out []*models.Notification
	if err := dbc.DB(r.db).
		Where("for_user_id = ?", userID).
		Order("created_at desc").
		Order("id asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&models.Notification{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepo) DeleteByAppointment(dbc dbctx.Context, appointmentID uuid.UUID) error {
	return dbc.DB(r.db).
		Where("linked_appointment_id = ?", appointmentID).
		Delete(&models.Notification{}).Error
}

func (r *notificationRepo) DeleteByMessages(dbc dbctx.Context, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Where("linked_message_id IN ?", messageIDs).
		Delete(&models.Notification{}).Error
}

func (r *notificationRepo) DeleteForUserByMessages(dbc dbctx.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Where("for_user_id = ? AND linked_message_id IN ?", userID, messageIDs).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
