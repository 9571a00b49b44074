package repository

import (
	"time"

	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepo interface {
	Create(dbc dbctx.Context, appt *models.Appointment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*models.Appointment, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.Appointment, error)
	// UpdateIfVersion applies updates only when the stored version still
	// equals version, bumping it. It reports whether a row was changed.
	UpdateIfVersion(dbc dbctx.Context, id uuid.UUID, version int, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)

	GetRating(dbc dbctx.Context, appointmentID uuid.UUID) (*models.Rating, error)
	CreateRating(dbc dbctx.Context, rating *models.Rating) error
	UpdateRatingScore(dbc dbctx.Context, ratingID uuid.UUID, score int) error
	DeleteRatings(dbc dbctx.Context, appointmentID uuid.UUID) error

	ListDueForReminder(dbc dbctx.Context, from, to time.Time) ([]*models.Appointment, error)
	MarkReminderSent(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
}

type appointmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAppointmentRepo(db *gorm.DB, log *logger.Logger) AppointmentRepo {
	return &appointmentRepo{db: db, log: log.With("repo", "AppointmentRepo")}
}

func (r *appointmentRepo) Create(dbc dbctx.Context, appt *models.Appointment) error {
	if appt.Version == 0 {
		appt.Version = 1
	}
	return dbc.DB(r.db).Omit("Rating").Create(appt).Error
}

func (r *appointmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	if err := dbc.DB(r.db).Preload("Rating").First(&appt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*models.Appointment, error) {
	var out []*models.Appointment
	if err := dbc.DB(r.db).
		Preload("Rating").
		Where("student_id = ? OR tutor_id = ?", userID, userID).
		Order("start_time desc").
		Order("id asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *appointmentRepo) UpdateIfVersion(dbc dbctx.Context, id uuid.UUID, version int, updates map[string]interface{}) (bool, error) {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields["version"] = version + 1
	res := dbc.DB(r.db).
		Model(&models.Appointment{}).
		Where("id = ? AND version = ?", id, version).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *appointmentRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&models.Appointment{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *appointmentRepo) GetRating(dbc dbctx.Context, appointmentID uuid.UUID) (*models.Rating, error) {
	var rating models.Rating
	if err := dbc.DB(r.db).First(&rating, "appointment_id = ?", appointmentID).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *appointmentRepo) CreateRating(dbc dbctx.Context, rating *models.Rating) error {
	return dbc.DB(r.db).Create(rating).Error
}

func (r *appointmentRepo) UpdateRatingScore(dbc dbctx.Context, ratingID uuid.UUID, score int) error {
	return dbc.DB(r.db).
		Model(&models.Rating{}).
		Where("id = ?", ratingID).
		Update("score", score).Error
}

func (r *appointmentRepo) DeleteRatings(dbc dbctx.Context, appointmentID uuid.UUID) error {
	return dbc.DB(r.db).Where("appointment_id = ?", appointmentID).Delete(&models.Rating{}).Error
}

func (r *appointmentRepo) ListDueForReminder(dbc dbctx.Context, from, to time.Time) ([]*models.Appointment, error) {
	var out []*models.Appointment
	if err := dbc.DB(r.db).
		Where("tutor_accepted = ? AND reminder_sent_at IS NULL AND start_time >= ? AND start_time < ?", true, from, to).
		Order("start_time asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *appointmentRepo) MarkReminderSent(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&models.Appointment{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		Update("reminder_sent_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
