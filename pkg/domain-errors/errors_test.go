package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "account already exists")
	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))

	t.Run("sees through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("handling request: %w", err)
		assert.True(t, HasCode(wrapped, CodeConflict))
	})

	t.Run("non-domain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "internal error")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageOf(t *testing.T) {
	t.Run("domain messages pass through", func(t *testing.T) {
		assert.Equal(t, "username already taken", MessageOf(New(CodeConflict, "username already taken")))
	})

	t.Run("internal detail never leaks", func(t *testing.T) {
		cause := errors.New("pq: relation users does not exist")
		assert.Equal(t, "internal error", MessageOf(Wrap(cause, CodeInternal, "query failed")))
		assert.Equal(t, "internal error", MessageOf(cause))
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeBadRequest:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeRateLimited:  http.StatusTooManyRequests,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(New(code, "msg")), "code %s", code)
	}

	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))
}
