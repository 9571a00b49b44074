package services

import (
	"context"
	"testing"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.auth.Register(ctx, RegisterInput{Name: "Nia", Email: "Nia@Example.com ", Password: "s3cret!!", Role: models.RoleTutor})
	require.NoError(t, err)
	assert.Equal(t, "nia@example.com", user.Email)

	_, err = e.auth.Register(ctx, RegisterInput{Name: "Nia", Email: "nia@example.com", Password: "other", Role: models.RoleStudent})
	requireKind(t, err, apperror.KindConflict)

	_, err = e.auth.Register(ctx, RegisterInput{Name: "Root", Email: "root@example.com", Password: "x", Role: models.RoleAdmin})
	requireKind(t, err, apperror.KindBadRequest)

	_, err = e.auth.Login(ctx, "nia@example.com", "wrong")
	requireKind(t, err, apperror.KindUnauthenticated)
	_, err = e.auth.Login(ctx, "nobody@example.com", "s3cret!!")
	requireKind(t, err, apperror.KindUnauthenticated)

	session, err := e.auth.Login(ctx, "NIA@example.com", "s3cret!!")
	require.NoError(t, err)
	assert.Equal(t, e.now.Add(e.auth.ttl), session.ExpiresAt)

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(jwt.WithoutClaimsValidation()).ParseWithClaims(session.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	caller, err := CallerFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, Caller{ID: user.ID, Role: models.RoleTutor}, caller)

	me, err := e.auth.Me(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, "Nia", me.FullName)
}

func TestCallerFromClaimsRejectsGarbage(t *testing.T) {
	_, err := CallerFromClaims(jwt.MapClaims{"user_id": "nope", "role": "student"})
	requireKind(t, err, apperror.KindUnauthenticated)
	_, err = CallerFromClaims(jwt.MapClaims{"user_id": "6f1c1d8e-3b7b-4b43-9d9e-0d6d0e6b1a11", "role": "janitor"})
	requireKind(t, err, apperror.KindUnauthenticated)
}
