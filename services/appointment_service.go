package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/events"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/notifications"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SortByStartTime   = "startTime"
	SortByMessageSent = "messageSent"

	ratingUpsertAttempts = 3
	reminderWindow       = time.Hour
	sideEffectTimeout    = 15 * time.Second
)

var (
	errConcurrentChange = apperror.Conflict("Appointment was changed by another request, please retry")
	errCompleted        = apperror.Conflict("Appointment is already completed")
)

// AppointmentView is the public shape of an appointment. StudentID is only
// filled for participants.
type AppointmentView struct {
	ID            uuid.UUID               `json:"id"`
	StudentID     *uuid.UUID              `json:"studentId,omitempty"`
	TutorID       uuid.UUID               `json:"tutorId"`
	StartTime     time.Time               `json:"startTime"`
	EndTime       time.Time               `json:"endTime"`
	TutorAccepted bool                    `json:"tutorAccepted"`
	State         models.AppointmentState `json:"state"`
	Rating        *int                    `json:"rating,omitempty"`
}

type AppointmentService struct {
	db     *gorm.DB
	users  repository.UserRepo
	appts  repository.AppointmentRepo
	msgs   repository.MessageRepo
	notes  repository.NotificationRepo
	events events.Publisher
	mailer notifications.Mailer
	clock  Clock
	log    *logger.Logger
}

func NewAppointmentService(
	db *gorm.DB,
	users repository.UserRepo,
	appts repository.AppointmentRepo,
	msgs repository.MessageRepo,
	notes repository.NotificationRepo,
	pub events.Publisher,
	mailer notifications.Mailer,
	clock Clock,
	log *logger.Logger,
) *AppointmentService {
	return &AppointmentService{
		db:     db,
		users:  users,
		appts:  appts,
		msgs:   msgs,
		notes:  notes,
		events: pub,
		mailer: mailer,
		clock:  clock,
		log:    log.With("service", "AppointmentService"),
	}
}

func (s *AppointmentService) view(appt *models.Appointment, viewer *Caller) AppointmentView {
	v := AppointmentView{
		ID:            appt.ID,
		TutorID:       appt.TutorID,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
		TutorAccepted: appt.TutorAccepted,
		State:         appt.State(s.clock.now()),
	}
	if viewer != nil && appt.IsParticipant(viewer.ID) {
		studentID := appt.StudentID
		v.StudentID = &studentID
	}
	if appt.Rating != nil {
		score := appt.Rating.Score
		v.Rating = &score
	}
	return v
}

func (s *AppointmentService) Request(ctx context.Context, caller Caller, tutorID uuid.UUID, startRaw, endRaw string) (AppointmentView, error) {
	if caller.Role != models.RoleStudent {
		return AppointmentView{}, apperror.Forbidden("Only students can request appointments")
	}
	start, end, err := parseRange(startRaw, endRaw)
	if err != nil {
		return AppointmentView{}, err
	}

	dbc := dbctx.New(ctx)
	tutor, err := s.users.GetByID(dbc, tutorID)
	if isNotFound(err) || (err == nil && tutor.Role != models.RoleTutor) {
		return AppointmentView{}, apperror.NotFound("Tutor not found")
	}
	if err != nil {
		return AppointmentView{}, err
	}
	student, err := s.users.GetByID(dbc, caller.ID)
	if isNotFound(err) {
		return AppointmentView{}, apperror.Unauthenticated("No user is logged in")
	}
	if err != nil {
		return AppointmentView{}, err
	}

	appt := &models.Appointment{
		StudentID: caller.ID,
		TutorID:   tutor.ID,
		StartTime: start,
		EndTime:   end,
	}
	err = inTx(ctx, s.db, func(dbc dbctx.Context) error {
		if err := s.appts.Create(dbc, appt); err != nil {
			return err
		}
		return s.notifyAppointment(dbc, tutor.ID, appt.ID, fmt.Sprintf("%s has requested an appointment", student.FullName))
	})
	if err != nil {
		return AppointmentView{}, err
	}

	s.publish(ctx, events.AppointmentRequested, appt, caller.ID, nil)
	s.email(ctx, tutor.ID, "New appointment request",
		fmt.Sprintf("<p>%s has requested an appointment on %s.</p>", student.FullName, start.Format(time.RFC1123)))
	return s.view(appt, &caller), nil
}

// Accept lets the tutor confirm or reject a pending request. Rejection
// removes the appointment and everything it owns.
func (s *AppointmentService) Accept(ctx context.Context, caller Caller, id uuid.UUID, accept bool) (AppointmentView, error) {
	if caller.Role != models.RoleTutor {
		return AppointmentView{}, apperror.Forbidden("Only tutors can accept appointments")
	}

	var appt *models.Appointment
	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		var err error
		appt, err = s.appts.GetByID(dbc, id)
		if isNotFound(err) {
			return apperror.BadRequest("Invalid appointment id")
		}
		if err != nil {
			return err
		}
		if appt.TutorID != caller.ID {
			return apperror.BadRequest("Appointment does not involve this tutor")
		}
		if appt.State(s.clock.now()) != models.StateRequested {
			return apperror.Conflict("Appointment is no longer awaiting a response")
		}

		if accept {
			ok, err := s.appts.UpdateIfVersion(dbc, appt.ID, appt.Version, map[string]interface{}{"tutor_accepted": true})
			if err != nil {
				return err
			}
			if !ok {
				return errConcurrentChange
			}
			appt.TutorAccepted = true
			appt.Version++
			return s.notifyAppointment(dbc, appt.StudentID, appt.ID, "Your appointment was accepted")
		}

		if err := s.remove(dbc, appt); err != nil {
			return err
		}
		return s.notifyAppointment(dbc, appt.StudentID, appt.ID, "Your appointment was rejected")
	})
	if err != nil {
		return AppointmentView{}, err
	}

	if accept {
		s.publish(ctx, events.AppointmentAccepted, appt, caller.ID, nil)
		s.email(ctx, appt.StudentID, "Your appointment was accepted",
			fmt.Sprintf("<p>Your appointment on %s was accepted.</p>", appt.StartTime.UTC().Format(time.RFC1123)))
	} else {
		s.publish(ctx, events.AppointmentRejected, appt, caller.ID, nil)
		s.email(ctx, appt.StudentID, "Your appointment was rejected",
			fmt.Sprintf("<p>Your appointment request for %s was rejected.</p>", appt.StartTime.UTC().Format(time.RFC1123)))
	}
	return s.view(appt, &caller), nil
}

func (s *AppointmentService) Modify(ctx context.Context, caller Caller, id uuid.UUID, startRaw, endRaw string) error {
	start, end, err := parseRange(startRaw, endRaw)
	if err != nil {
		return err
	}

	var appt *models.Appointment
	err = inTx(ctx, s.db, func(dbc dbctx.Context) error {
		var err error
		appt, err = s.loadMutable(dbc, caller, id)
		if err != nil {
			return err
		}
		ok, err := s.appts.UpdateIfVersion(dbc, appt.ID, appt.Version, map[string]interface{}{
			"start_time": start,
			"end_time":   end,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errConcurrentChange
		}
		appt.StartTime, appt.EndTime = start, end
		appt.Version++
		return s.notifyAppointment(dbc, appt.OtherParticipant(caller.ID), appt.ID, "Appointment was modified")
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.AppointmentModified, appt, caller.ID, nil)
	return nil
}

func (s *AppointmentService) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	var appt *models.Appointment
	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		var err error
		appt, err = s.loadMutable(dbc, caller, id)
		if err != nil {
			return err
		}
		if err := s.remove(dbc, appt); err != nil {
			return err
		}
		return s.notifyAppointment(dbc, appt.OtherParticipant(caller.ID), appt.ID, "Appointment was deleted")
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.AppointmentDeleted, appt, caller.ID, nil)
	return nil
}

// loadMutable reads an appointment a participant may still change.
func (s *AppointmentService) loadMutable(dbc dbctx.Context, caller Caller, id uuid.UUID) (*models.Appointment, error) {
	appt, err := s.appts.GetByID(dbc, id)
	if isNotFound(err) {
		return nil, apperror.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, err
	}
	if !appt.IsParticipant(caller.ID) {
		return nil, apperror.Forbidden("You are not a participant of this appointment")
	}
	if appt.State(s.clock.now()) == models.StateCompleted {
		return nil, errCompleted
	}
	return appt, nil
}

// remove claims the appointment's current version, then deletes it along
// with its chat, rating and notifications.
func (s *AppointmentService) remove(dbc dbctx.Context, appt *models.Appointment) error {
	ok, err := s.appts.UpdateIfVersion(dbc, appt.ID, appt.Version, nil)
	if err != nil {
		return err
	}
	if !ok {
		return errConcurrentChange
	}

	msgIDs, err := s.msgs.DeleteByAppointment(dbc, appt.ID)
	if err != nil {
		return err
	}
	if err := s.notes.DeleteByMessages(dbc, msgIDs); err != nil {
		return err
	}
	if err := s.notes.DeleteByAppointment(dbc, appt.ID); err != nil {
		return err
	}
	if err := s.appts.DeleteRatings(dbc, appt.ID); err != nil {
		return err
	}
	if _, err := s.appts.Delete(dbc, appt.ID); err != nil {
		return err
	}
	return nil
}

// Get returns the public view. viewer may be nil for anonymous requests.
func (s *AppointmentService) Get(ctx context.Context, viewer *Caller, id uuid.UUID) (AppointmentView, error) {
	appt, err := s.appts.GetByID(dbctx.New(ctx), id)
	if isNotFound(err) {
		return AppointmentView{}, apperror.NotFound("Appointment not found")
	}
	if err != nil {
		return AppointmentView{}, err
	}
	return s.view(appt, viewer), nil
}

// List returns the caller's appointments. sortBy is empty, startTime or
// messageSent.
func (s *AppointmentService) List(ctx context.Context, caller Caller, sortBy string) ([]AppointmentView, error) {
	if sortBy != "" && sortBy != SortByStartTime && sortBy != SortByMessageSent {
		return nil, apperror.BadRequest("sortBy must be startTime or messageSent")
	}
	dbc := dbctx.New(ctx)
	appts, err := s.appts.ListForUser(dbc, caller.ID)
	if err != nil {
		return nil, err
	}

	if sortBy == SortByMessageSent {
		ids := make([]uuid.UUID, len(appts))
		for i, a := range appts {
			ids[i] = a.ID
		}
		last, err := s.msgs.LastSentByAppointment(dbc, ids)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(appts, func(i, j int) bool {
			ti, iok := last[appts[i].ID]
			tj, jok := last[appts[j].ID]
			if iok != jok {
				return iok
			}
			if iok && !ti.Equal(tj) {
				return ti.After(tj)
			}
			return appts[i].ID.String() < appts[j].ID.String()
		})
	}

	out := make([]AppointmentView, len(appts))
	for i, a := range appts {
		out[i] = s.view(a, &caller)
	}
	return out, nil
}

// Rate creates or replaces the student's rating of a completed appointment.
func (s *AppointmentService) Rate(ctx context.Context, caller Caller, id uuid.UUID, score int) error {
	if score < 1 || score > 5 {
		return apperror.BadRequest("Rating must be between 1 and 5")
	}

	var appt *models.Appointment
	var err error
	for attempt := 0; attempt < ratingUpsertAttempts; attempt++ {
		err = inTx(ctx, s.db, func(dbc dbctx.Context) error {
			var err error
			appt, err = s.appts.GetByID(dbc, id)
			if isNotFound(err) {
				return apperror.NotFound("Appointment not found")
			}
			if err != nil {
				return err
			}
			if caller.ID != appt.StudentID {
				return apperror.BadRequest("Only the student of this appointment can rate it")
			}
			if appt.State(s.clock.now()) != models.StateCompleted {
				return apperror.BadRequest("Appointment is not completed yet")
			}

			existing, err := s.appts.GetRating(dbc, appt.ID)
			switch {
			case isNotFound(err):
				return s.appts.CreateRating(dbc, &models.Rating{
					AppointmentID: appt.ID,
					TutorID:       appt.TutorID,
					Score:         score,
				})
			case err != nil:
				return err
			default:
				return s.appts.UpdateRatingScore(dbc, existing.ID, score)
			}
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		s.log.Debug("rating upsert raced, retrying", "appointment_id", id, "attempt", attempt+1)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errConcurrentChange
	}
	if err != nil {
		return err
	}
	s.publish(ctx, events.AppointmentRated, appt, caller.ID, &score)
	return nil
}

// SendReminders notifies both participants of accepted appointments that
// start within the next hour. Each appointment is reminded once.
func (s *AppointmentService) SendReminders(ctx context.Context) (int, error) {
	now := s.clock.now()
	due, err := s.appts.ListDueForReminder(dbctx.New(ctx), now, now.Add(reminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, appt := range due {
		claimed := false
		err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
			ok, err := s.appts.MarkReminderSent(dbc, appt.ID, now)
			if err != nil || !ok {
				return err
			}
			claimed = true
			for _, uid := range []uuid.UUID{appt.StudentID, appt.TutorID} {
				if err := s.notifyAppointment(dbc, uid, appt.ID, "Your appointment starts within the hour"); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.log.Error("reminder failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		sent++
		body := fmt.Sprintf("<p>Your appointment starts at %s.</p>", appt.StartTime.UTC().Format(time.RFC1123))
		s.email(ctx, appt.StudentID, "Appointment reminder", body)
		s.email(ctx, appt.TutorID, "Appointment reminder", body)
	}
	return sent, nil
}

func (s *AppointmentService) notifyAppointment(dbc dbctx.Context, userID, appointmentID uuid.UUID, content string) error {
	apptID := appointmentID
	return s.notes.Create(dbc, &models.Notification{
		ForUserID:           userID,
		Content:             content,
		LinkedAppointmentID: &apptID,
	})
}

func (s *AppointmentService) publish(ctx context.Context, typ events.Type, appt *models.Appointment, actor uuid.UUID, score *int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	evt := events.AppointmentEvent{
		Type:          typ,
		AppointmentID: appt.ID,
		StudentID:     appt.StudentID,
		TutorID:       appt.TutorID,
		ActorID:       actor,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
		Score:         score,
		OccurredAt:    s.clock.now(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", "type", typ, "appointment_id", appt.ID, "error", err)
	}
}

// email runs in the background; delivery problems are only logged.
func (s *AppointmentService) email(ctx context.Context, userID uuid.UUID, subject, html string) {
	if _, ok := s.mailer.(notifications.NopMailer); ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		defer cancel()
		user, err := s.users.GetByID(dbctx.New(ctx), userID)
		if err != nil {
			s.log.Warn("email recipient lookup failed", "user_id", userID, "error", err)
			return
		}
		if err := s.mailer.Send(ctx, user.FullName, user.Email, subject, html); err != nil {
			s.log.Warn("email failed", "user_id", userID, "subject", subject, "error", err)
		}
	}()
}
