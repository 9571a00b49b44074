package services

import (
	"context"
	"testing"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNotificationDeletesIt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.book(t)
	_, err := e.messaging.PostDirectMessage(ctx, callerOf(e.student), e.tutor.ID, "hi")
	require.NoError(t, err)

	ids, err := e.notifications.List(ctx, callerOf(e.tutor))
	require.NoError(t, err)
	require.Len(t, ids, 2)

	types := map[string]string{}
	for _, id := range ids {
		_, err := e.notifications.Read(ctx, callerOf(e.student), id)
		requireKind(t, err, apperror.KindForbidden)

		n, err := e.notifications.Read(ctx, callerOf(e.tutor), id)
		require.NoError(t, err)
		types[n.Type] = n.Content

		_, err = e.notifications.Read(ctx, callerOf(e.tutor), id)
		requireKind(t, err, apperror.KindNotFound)
	}
	assert.Equal(t, "Sam has requested an appointment", types[models.NotificationTypeAppointment])
	assert.Equal(t, "Received a direct message from Sam", types[models.NotificationTypeMessage])

	ids, err = e.notifications.List(ctx, callerOf(e.tutor))
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = e.notifications.Read(ctx, callerOf(e.tutor), uuid.New())
	requireKind(t, err, apperror.KindNotFound)
}
