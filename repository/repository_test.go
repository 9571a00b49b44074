package repository

import (
	"context"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_booking/database/dbctx"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/repository/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func bg() dbctx.Context { return dbctx.New(context.Background()) }

func TestThreadPairIsUnique(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMessageRepo(db, logger.Nop())
	a, b := uuid.New(), uuid.New()

	require.NoError(t, repo.CreateThread(bg(), &models.DirectMessage{UserAID: a, UserBID: b}))
	err := repo.CreateThread(bg(), &models.DirectMessage{UserAID: b, UserBID: a})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	thread, err := repo.FindThread(bg(), b, a)
	require.NoError(t, err)
	assert.Equal(t, a, thread.UserAID, "creation direction is preserved")
}

func TestMessagesListNewestFirstWithIDTiebreak(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMessageRepo(db, logger.Nop())
	thread := &models.DirectMessage{UserAID: uuid.New(), UserBID: uuid.New()}
	require.NoError(t, repo.CreateThread(bg(), thread))

	base := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Minute), base.Add(time.Minute), base.Add(-time.Minute)}
	for _, ts := range times {
		require.NoError(t, repo.Create(bg(), &models.Message{
			SentByID: thread.UserAID, SentTime: ts, Content: "x", DirectMessageID: &thread.ID,
		}))
	}

	msgs, err := repo.ListByThread(bg(), thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		require.False(t, cur.SentTime.After(prev.SentTime))
		if cur.SentTime.Equal(prev.SentTime) {
			assert.Less(t, prev.ID.String(), cur.ID.String())
		}
	}

	last, err := repo.LastSentByThread(bg(), []uuid.UUID{thread.ID})
	require.NoError(t, err)
	assert.True(t, last[thread.ID].Equal(base.Add(time.Minute)))
}

func TestNotificationRequiresExactlyOneLink(t *testing.T) {
	db := testutil.DB(t)
	repo := NewNotificationRepo(db, logger.Nop())
	id := uuid.New()

	assert.ErrorIs(t, repo.Create(bg(), &models.Notification{ForUserID: uuid.New(), Content: "x"}), ErrInvalidLink)
	assert.ErrorIs(t, repo.Create(bg(), &models.Notification{
		ForUserID: uuid.New(), Content: "x", LinkedAppointmentID: &id, LinkedMessageID: &id,
	}), ErrInvalidLink)
	assert.NoError(t, repo.Create(bg(), &models.Notification{ForUserID: uuid.New(), Content: "x", LinkedMessageID: &id}))
}

func TestDeleteForUserByMessagesOnlyTouchesThatUser(t *testing.T) {
	db := testutil.DB(t)
	repo := NewNotificationRepo(db, logger.Nop())
	u, other := uuid.New(), uuid.New()
	m1, m2 := uuid.New(), uuid.New()
	for _, n := range []*models.Notification{
		{ForUserID: u, Content: "a", LinkedMessageID: &m1},
		{ForUserID: u, Content: "b", LinkedMessageID: &m2},
		{ForUserID: other, Content: "c", LinkedMessageID: &m1},
	} {
		require.NoError(t, repo.Create(bg(), n))
	}

	n, err := repo.DeleteForUserByMessages(bg(), u, []uuid.UUID{m1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.ListForUser(bg(), u)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, m2, *left[0].LinkedMessageID)

	others, err := repo.ListForUser(bg(), other)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestUpdateIfVersionRejectsStaleWrites(t *testing.T) {
	db := testutil.DB(t)
	repo := NewAppointmentRepo(db, logger.Nop())
	start := time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC)
	appt := &models.Appointment{StudentID: uuid.New(), TutorID: uuid.New(), StartTime: start, EndTime: start.Add(time.Hour)}
	require.NoError(t, repo.Create(bg(), appt))
	require.Equal(t, 1, appt.Version)

	ok, err := repo.UpdateIfVersion(bg(), appt.ID, 1, map[string]interface{}{"tutor_accepted": true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateIfVersion(bg(), appt.ID, 1, map[string]interface{}{"tutor_accepted": false})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(bg(), appt.ID)
	require.NoError(t, err)
	assert.True(t, got.TutorAccepted)
	assert.Equal(t, 2, got.Version)
}

func TestRatingUniquePerAppointment(t *testing.T) {
	db := testutil.DB(t)
	repo := NewAppointmentRepo(db, logger.Nop())
	apptID := uuid.New()
	require.NoError(t, repo.CreateRating(bg(), &models.Rating{AppointmentID: apptID, TutorID: uuid.New(), Score: 3}))
	err := repo.CreateRating(bg(), &models.Rating{AppointmentID: apptID, TutorID: uuid.New(), Score: 4})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestReplaceAvailability(t *testing.T) {
	db := testutil.DB(t)
	repo := NewAvailabilityRepo(db, logger.Nop())
	tutor := uuid.New()
	base := time.Date(2099, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.ReplaceForTutor(bg(), tutor, []models.TutorAvailability{
		{StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour)},
		{StartTime: base, EndTime: base.Add(time.Hour)},
	}))
	require.NoError(t, repo.ReplaceForTutor(bg(), tutor, []models.TutorAvailability{
		{StartTime: base.Add(4 * time.Hour), EndTime: base.Add(5 * time.Hour)},
	}))

	rows, err := repo.ListByTutor(bg(), tutor)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].StartTime.Equal(base.Add(4*time.Hour)))
}

func TestLastSentIsPerParent(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMessageRepo(db, logger.Nop())
	busy := &models.DirectMessage{UserAID: uuid.New(), UserBID: uuid.New()}
	quiet := &models.DirectMessage{UserAID: uuid.New(), UserBID: uuid.New()}
	empty := &models.DirectMessage{UserAID: uuid.New(), UserBID: uuid.New()}
	for _, th := range []*models.DirectMessage{busy, quiet, empty} {
		require.NoError(t, repo.CreateThread(bg(), th))
	}

	base := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	post := func(thread *models.DirectMessage, ts time.Time) {
		require.NoError(t, repo.Create(bg(), &models.Message{
			SentByID: thread.UserAID, SentTime: ts, Content: "x", DirectMessageID: &thread.ID,
		}))
	}
	post(busy, base.Add(2*time.Minute))
	post(busy, base.Add(5*time.Minute))
	post(busy, base)
	post(quiet, base.Add(time.Minute))

	last, err := repo.LastSentByThread(bg(), []uuid.UUID{busy.ID, quiet.ID, empty.ID})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.True(t, last[busy.ID].Equal(base.Add(5*time.Minute)))
	assert.True(t, last[quiet.ID].Equal(base.Add(time.Minute)))
	_, ok := last[empty.ID]
	assert.False(t, ok)

	apptID := uuid.New()
	require.NoError(t, repo.Create(bg(), &models.Message{
		SentByID: uuid.New(), SentTime: base.Add(3 * time.Minute), Content: "x", AppointmentID: &apptID,
	}))
	byAppt, err := repo.LastSentByAppointment(bg(), []uuid.UUID{apptID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byAppt, 1)
	assert.True(t, byAppt[apptID].Equal(base.Add(3*time.Minute)))
}
