package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/events"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/notifications"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/anjiri1684/tutor_booking/repository/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type pushed struct {
	userID  uuid.UUID
	event   string
	payload interface{}
}

type fakeRealtime struct {
	mu        sync.Mutex
	online    map[uuid.UUID]bool
	failPush  bool
	stallPush bool
	pushes    []pushed
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{online: map[uuid.UUID]bool{}}
}

func (f *fakeRealtime) setOnline(id uuid.UUID, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[id] = online
}

func (f *fakeRealtime) Occupied(ctx context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID], nil
}

func (f *fakeRealtime) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	f.mu.Lock()
	stall := f.stallPush
	f.mu.Unlock()
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPush {
		return errors.New("socket closed")
	}
	f.pushes = append(f.pushes, pushed{userID: userID, event: event, payload: payload})
	return nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []events.Type
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, evt.Type)
	return nil
}

type env struct {
	db    *gorm.DB
	now   time.Time
	rt    *fakeRealtime
	pub   *recordingPublisher
	msgs  repository.MessageRepo
	notes repository.NotificationRepo

	appointments  *AppointmentService
	messaging     *MessagingService
	notifications *NotificationService
	availability  *AvailabilityService
	auth          *AuthService

	student, tutor, stranger *models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	e := &env{
		db:  db,
		now: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
		rt:  newFakeRealtime(),
		pub: &recordingPublisher{},
	}
	clock := Clock(func() time.Time { return e.now })

	users := repository.NewUserRepo(db, log)
	appts := repository.NewAppointmentRepo(db, log)
	e.msgs = repository.NewMessageRepo(db, log)
	e.notes = repository.NewNotificationRepo(db, log)
	slots := repository.NewAvailabilityRepo(db, log)

	e.appointments = NewAppointmentService(db, users, appts, e.msgs, e.notes, e.pub, notifications.NopMailer{}, clock, log)
	e.messaging = NewMessagingService(db, users, appts, e.msgs, e.notes, e.rt, clock, log)
	e.notifications = NewNotificationService(db, e.notes, log)
	e.availability = NewAvailabilityService(db, users, slots, clock, log)
	e.auth = NewAuthService(users, "test-secret", time.Hour, clock, log)

	e.student = testutil.CreateUser(t, db, models.RoleStudent, "Sam")
	e.tutor = testutil.CreateUser(t, db, models.RoleTutor, "Tina")
	e.stranger = testutil.CreateUser(t, db, models.RoleStudent, "Uma")
	return e
}

func callerOf(u *models.User) Caller { return Caller{ID: u.ID, Role: u.Role} }

func (e *env) at(d time.Duration) string { return e.now.Add(d).Format(time.RFC3339) }

// book creates an appointment tomorrow from 10:00 to 11:00 relative to now.
func (e *env) book(t *testing.T) AppointmentView {
	t.Helper()
	v, err := e.appointments.Request(context.Background(), callerOf(e.student), e.tutor.ID, e.at(25*time.Hour), e.at(26*time.Hour))
	require.NoError(t, err)
	return v
}

func (e *env) inbox(t *testing.T, u *models.User) []*models.Notification {
	t.Helper()
	notes, err := e.notes.ListForUser(dbctx.New(context.Background()), u.ID)
	require.NoError(t, err)
	return notes
}

func contents(notes []*models.Notification) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Content
	}
	return out
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperror.KindOf(err), err.Error())
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2099-01-01T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	got, err = ParseInstant("2099-01-01T10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC), got)

	_, err = ParseInstant("tomorrow at ten")
	requireKind(t, err, apperror.KindBadRequest)
}

func TestParseRangeRejectsEmptyAndReversed(t *testing.T) {
	_, _, err := parseRange("2099-01-01T10:00:00Z", "2099-01-01T10:00:00Z")
	requireKind(t, err, apperror.KindBadRequest)
	_, _, err = parseRange("2099-01-01T11:00:00Z", "2099-01-01T10:00:00Z")
	requireKind(t, err, apperror.KindBadRequest)
}

func TestDeliverFallsBackToNotification(t *testing.T) {
	rt := newFakeRealtime()
	recipient := uuid.New()
	persisted := 0
	persist := func(context.Context) error { persisted++; return nil }

	assert.Equal(t, deliveredNotification, deliver(context.Background(), rt, logger.Nop(), recipient, EventDirectMessage, "x", persist))
	assert.Equal(t, 1, persisted)

	rt.setOnline(recipient, true)
	assert.Equal(t, deliveredRealtime, deliver(context.Background(), rt, logger.Nop(), recipient, EventDirectMessage, "x", persist))
	assert.Equal(t, 1, persisted)

	rt.failPush = true
	assert.Equal(t, deliveredNotification, deliver(context.Background(), rt, logger.Nop(), recipient, EventDirectMessage, "x", persist))
	assert.Equal(t, 2, persisted)

	failing := func(context.Context) error { return errors.New("db down") }
	assert.Equal(t, deliveryFailed, deliver(context.Background(), rt, logger.Nop(), recipient, EventDirectMessage, "x", failing))
}

func TestDeliverStoresNotificationWhenPushOutlivesDeadline(t *testing.T) {
	rt := newFakeRealtime()
	recipient := uuid.New()
	rt.setOnline(recipient, true)
	rt.stallPush = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var persistErr error
	persist := func(ctx context.Context) error {
		persistErr = ctx.Err()
		return nil
	}
	start := time.Now()
	outcome := deliver(ctx, rt, logger.Nop(), recipient, EventDirectMessage, "x", persist)

	assert.Equal(t, deliveredNotification, outcome)
	assert.NoError(t, persistErr)
	assert.Less(t, time.Since(start), time.Second)
}
