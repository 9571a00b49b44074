package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestWrapClassifiesKnownCauses(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindNotFound, KindOf(gorm.ErrRecordNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("wrapped: %w", Forbidden("nope"))))
	assert.Nil(t, Wrap(nil))
}

func TestMessageHidesInternalCause(t *testing.T) {
	assert.Equal(t, "Internal Server Error", Message(errors.New("db password is hunter2")))
	assert.Equal(t, "Appointment not found", Message(NotFound("Appointment not found")))
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindBadRequest:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindTimeout:         http.StatusGatewayTimeout,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), kind.String())
	}
}
