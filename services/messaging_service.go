package services

import (
	"context"
	"errors"
	"fmt"
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

type MessageView struct {
	ID       uuid.UUID `json:"id"`
	SentBy   uuid.UUID `json:"sentBy"`
	SentTime time.Time `json:"sentTime"`
	Content  string    `json:"content"`
}

type PostedMessage struct {
	ID       uuid.UUID `json:"id"`
	SentTime time.Time `json:"sentTime"`
}

// DirectMessageEvent is pushed as "direct_message".
type DirectMessageEvent struct {
	FromID   uuid.UUID `json:"fromId"`
	Content  string    `json:"content"`
	SentTime time.Time `json:"sentTime"`
}

// AppointmentMessageEvent is pushed as "appointment_message".
type AppointmentMessageEvent struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	FromID        uuid.UUID `json:"fromId"`
	Content       string    `json:"content"`
	SentTime      time.Time `json:"sentTime"`
}

type MessagingService struct {
	db       *gorm.DB
	users    repository.UserRepo
	appts    repository.AppointmentRepo
	msgs     repository.MessageRepo
	notes    repository.NotificationRepo
	realtime Realtime
	clock    Clock
	log      *logger.Logger
}

func NewMessagingService(
	db *gorm.DB,
	users repository.UserRepo,
	appts repository.AppointmentRepo,
	msgs repository.MessageRepo,
	notes repository.NotificationRepo,
	realtime Realtime,
	clock Clock,
	log *logger.Logger,
) *MessagingService {
	return &MessagingService{
		db:       db,
		users:    users,
		appts:    appts,
		msgs:     msgs,
		notes:    notes,
		realtime: realtime,
		clock:    clock,
		log:      log.With("service", "MessagingService"),
	}
}

func (s *MessagingService) PostAppointmentMessage(ctx context.Context, caller Caller, appointmentID uuid.UUID, content string) (PostedMessage, error) {
	content, err := cleanContent(content)
	if err != nil {
		return PostedMessage{}, err
	}
	dbc := dbctx.New(ctx)
	appt, err := s.participantAppointment(dbc, caller, appointmentID)
	if err != nil {
		return PostedMessage{}, err
	}
	sender, err := s.sender(dbc, caller)
	if err != nil {
		return PostedMessage{}, err
	}

	apptID := appt.ID
	msg := &models.Message{
		SentByID:      caller.ID,
		SentTime:      s.sentTime(),
		Content:       content,
		AppointmentID: &apptID,
	}
	if err := s.msgs.Create(dbc, msg); err != nil {
		return PostedMessage{}, err
	}

	recipient := appt.OtherParticipant(caller.ID)
	payload := AppointmentMessageEvent{
		AppointmentID: appt.ID,
		FromID:        caller.ID,
		Content:       msg.Content,
		SentTime:      msg.SentTime,
	}
	deliver(ctx, s.realtime, s.log, recipient, EventAppointmentMessage, payload,
		s.persistMessageNotification(recipient, msg.ID, fmt.Sprintf("New message in appointment with %s", sender.FullName)))

	return PostedMessage{ID: msg.ID, SentTime: msg.SentTime}, nil
}

func (s *MessagingService) PostDirectMessage(ctx context.Context, caller Caller, otherID uuid.UUID, content string) (PostedMessage, error) {
	content, err := cleanContent(content)
	if err != nil {
		return PostedMessage{}, err
	}
	if otherID == caller.ID {
		return PostedMessage{}, apperror.BadRequest("Cannot send a direct message to yourself")
	}
	dbc := dbctx.New(ctx)
	if _, err := s.users.GetByID(dbc, otherID); err != nil {
		if isNotFound(err) {
			return PostedMessage{}, apperror.NotFound("User not found")
		}
		return PostedMessage{}, err
	}
	sender, err := s.sender(dbc, caller)
	if err != nil {
		return PostedMessage{}, err
	}

	msg, err := s.storeDirectMessage(ctx, caller.ID, otherID, content)
	if err != nil {
		return PostedMessage{}, err
	}

	payload := DirectMessageEvent{FromID: caller.ID, Content: msg.Content, SentTime: msg.SentTime}
	deliver(ctx, s.realtime, s.log, otherID, EventDirectMessage, payload,
		s.persistMessageNotification(otherID, msg.ID, fmt.Sprintf("Received a direct message from %s", sender.FullName)))

	return PostedMessage{ID: msg.ID, SentTime: msg.SentTime}, nil
}

// storeDirectMessage creates the pair's thread if needed and the message in
// one transaction. Losing a race to create the thread rolls back and retries
// once, which then finds the winner's thread.
func (s *MessagingService) storeDirectMessage(ctx context.Context, from, to uuid.UUID, content string) (*models.Message, error) {
	for attempt := 0; ; attempt++ {
		var msg *models.Message
		err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
			thread, err := s.threadFor(dbc, from, to)
			if err != nil {
				return err
			}
			threadID := thread.ID
			msg = &models.Message{
				SentByID:        from,
				SentTime:        s.sentTime(),
				Content:         content,
				DirectMessageID: &threadID,
			}
			return s.msgs.Create(dbc, msg)
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return msg, nil
	}
}

// threadFor finds the pair's thread or creates it with from as the first
// participant.
func (s *MessagingService) threadFor(dbc dbctx.Context, from, to uuid.UUID) (*models.DirectMessage, error) {
	thread, err := s.msgs.FindThread(dbc, from, to)
	if err == nil {
		return thread, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	thread = &models.DirectMessage{UserAID: from, UserBID: to}
	if err := s.msgs.CreateThread(dbc, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// sentTime is the clock at the precision the store keeps.
func (s *MessagingService) sentTime() time.Time {
	return s.clock.now().Truncate(time.Microsecond)
}

// ListDirectThreads returns the other participant of each of the caller's
// threads, most recently active first. Threads without messages go last.
func (s *MessagingService) ListDirectThreads(ctx context.Context, caller Caller) ([]uuid.UUID, error) {
	dbc := dbctx.New(ctx)
	threads, err := s.msgs.ListThreadsForUser(dbc, caller.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	last, err := s.msgs.LastSentByThread(dbc, ids)
	if err != nil {
		return nil, err
	}

	// A missing entry reads as the zero time, which sorts below any real
	// sent time.
	sort.SliceStable(threads, func(i, j int) bool {
		ti, tj := last[threads[i].ID], last[threads[j].ID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return threads[i].Other(caller.ID).String() < threads[j].Other(caller.ID).String()
	})

	out := make([]uuid.UUID, len(threads))
	for i, t := range threads {
		out[i] = t.Other(caller.ID)
	}
	return out, nil
}

// GetDirectThread lists the thread newest first and clears the caller's
// notifications for exactly the messages returned.
func (s *MessagingService) GetDirectThread(ctx context.Context, caller Caller, otherID uuid.UUID) ([]MessageView, error) {
	if _, err := s.users.GetByID(dbctx.New(ctx), otherID); err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}

	var msgs []*models.Message
	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		thread, err := s.msgs.FindThread(dbc, caller.ID, otherID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		msgs, err = s.msgs.ListByThread(dbc, thread.ID)
		if err != nil {
			return err
		}
		_, err = s.notes.DeleteForUserByMessages(dbc, caller.ID, messageIDs(msgs))
		return err
	})
	if err != nil {
		return nil, err
	}
	return messageViews(msgs), nil
}

// GetAppointmentMessages lists the appointment chat newest first. Reading it
// clears the caller's notifications for the returned messages.
func (s *MessagingService) GetAppointmentMessages(ctx context.Context, caller Caller, appointmentID uuid.UUID) ([]MessageView, error) {
	var msgs []*models.Message
	err := inTx(ctx, s.db, func(dbc dbctx.Context) error {
		if _, err := s.participantAppointment(dbc, caller, appointmentID); err != nil {
			return err
		}
		var err error
		msgs, err = s.msgs.ListByAppointment(dbc, appointmentID)
		if err != nil {
			return err
		}
		_, err = s.notes.DeleteForUserByMessages(dbc, caller.ID, messageIDs(msgs))
		return err
	})
	if err != nil {
		return nil, err
	}
	return messageViews(msgs), nil
}

func (s *MessagingService) participantAppointment(dbc dbctx.Context, caller Caller, id uuid.UUID) (*models.Appointment, error) {
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
	return appt, nil
}

func (s *MessagingService) sender(dbc dbctx.Context, caller Caller) (*models.User, error) {
	u, err := s.users.GetByID(dbc, caller.ID)
	if isNotFound(err) {
		return nil, apperror.Unauthenticated("No user is logged in")
	}
	return u, err
}

func (s *MessagingService) persistMessageNotification(userID, messageID uuid.UUID, content string) func(context.Context) error {
	return func(ctx context.Context) error {
		msgID := messageID
		return s.notes.Create(dbctx.New(ctx), &models.Notification{
			ForUserID:       userID,
			Content:         content,
			LinkedMessageID: &msgID,
		})
	}
}

func messageIDs(msgs []*models.Message) []uuid.UUID {
	ids := make([]uuid.UUID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func messageViews(msgs []*models.Message) []MessageView {
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = MessageView{
			ID:       m.ID,
			SentBy:   m.SentByID,
			SentTime: m.SentTime.UTC(),
			Content:  m.Content,
		}
	}
	return out
}
