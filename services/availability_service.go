package services

import (
	"context"
	"sort"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AvailabilityInput struct {
	StartTime string
	EndTime   string
}

type AvailabilityView struct {
	ID        uuid.UUID `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type AvailabilityService struct {
	db    *gorm.DB
	users repository.UserRepo
	slots repository.AvailabilityRepo
	clock Clock
	log   *logger.Logger
}

func NewAvailabilityService(db *gorm.DB, users repository.UserRepo, slots repository.AvailabilityRepo, clock Clock, log *logger.Logger) *AvailabilityService {
	return &AvailabilityService{
		db:    db,
		users: users,
		slots: slots,
		clock: clock,
		log:   log.With("service", "AvailabilityService"),
	}
}

// Replace swaps the tutor's whole availability for input. Nothing is written
// unless every interval is well-formed, in the future and disjoint from the
// others.
func (s *AvailabilityService) Replace(ctx context.Context, caller Caller, input []AvailabilityInput) ([]AvailabilityView, error) {
	if caller.Role != models.RoleTutor {
		return nil, apperror.Forbidden("Only tutors can set availability")
	}

	now := s.clock.now()
	rows := make([]models.TutorAvailability, 0, len(input))
	for _, in := range input {
		start, end, err := parseRange(in.StartTime, in.EndTime)
		if err != nil {
			return nil, err
		}
		if start.Before(now) {
			return nil, apperror.BadRequest("Availability cannot start in the past")
		}
		rows = append(rows, models.TutorAvailability{TutorID: caller.ID, StartTime: start, EndTime: end})
	}
	if err := checkDisjoint(rows); err != nil {
		return nil, err
	}

	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		return s.slots.ReplaceForTutor(dbc, caller.ID, rows)
	})
	if err != nil {
		return nil, err
	}
	return availabilityViews(rows), nil
}

func (s *AvailabilityService) List(ctx context.Context, tutorID uuid.UUID) ([]AvailabilityView, error) {
	dbc := dbctx.New(ctx)
	tutor, err := s.users.GetByID(dbc, tutorID)
	if isNotFound(err) || (err == nil && tutor.Role != models.RoleTutor) {
		return nil, apperror.NotFound("Tutor not found")
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.slots.ListByTutor(dbc, tutorID)
	if err != nil {
		return nil, err
	}
	return availabilityViews(rows), nil
}

// checkDisjoint sorts rows by start and rejects any pair where one interval
// runs past the start of the next.
func checkDisjoint(rows []models.TutorAvailability) error {
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime.Before(rows[j].StartTime) })
	for i := 1; i < len(rows); i++ {
		if rows[i-1].EndTime.After(rows[i].StartTime) {
			return apperror.BadRequest("Time availabilities should not overlap")
		}
	}
	return nil
}

func availabilityViews(rows []models.TutorAvailability) []AvailabilityView {
	out := make([]AvailabilityView, len(rows))
	for i, r := range rows {
		out[i] = AvailabilityView{ID: r.ID, StartTime: r.StartTime.UTC(), EndTime: r.EndTime.UTC()}
	}
	return out
}
