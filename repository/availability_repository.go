package repository

import (
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AvailabilityRepo interface {
	ListByTutor(dbc dbctx.Context, tutorID uuid.UUID) ([]models.TutorAvailability, error)
	// ReplaceForTutor swaps the tutor's whole set of intervals. Callers run
	// it inside a transaction.
	ReplaceForTutor(dbc dbctx.Context, tutorID uuid.UUID, rows []models.TutorAvailability) error
}

type availabilityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAvailabilityRepo(db *gorm.DB, log *logger.Logger) AvailabilityRepo {
	return &availabilityRepo{db: db, log: log.With("repo", "AvailabilityRepo")}
}

func (r *availabilityRepo) ListByTutor(dbc dbctx.Context, tutorID uuid.UUID) ([]models.TutorAvailability, error) {
	var out []models.TutorAvailability
	if err := dbc.DB(r.db).
		Where("tutor_id = ?", tutorID).
		Order("start_time asc").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *availabilityRepo) ReplaceForTutor(dbc dbctx.Context, tutorID uuid.UUID, rows []models.TutorAvailability) error {
	txx := dbc.DB(r.db)
	if err := txx.Where("tutor_id = ?", tutorID).Delete(&models.TutorAvailability{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].TutorID = tutorID
	}
	return txx.Create(&rows).Error
}
