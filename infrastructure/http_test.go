package infrastructure

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: username", ErrInvalidInput), want: http.StatusUnprocessableEntity},
		{err: ErrCannotFollowSelf, want: http.StatusBadRequest},
		{err: ErrTokenExpired, want: http.StatusUnauthorized},
		{err: ErrUserNotFound, want: http.StatusNotFound},
		{err: ErrUsernameTaken, want: http.StatusConflict},
		{err: ErrRequestInFlight, want: http.StatusConflict},
		{err: ErrPayloadTooLarge, want: http.StatusRequestEntityTooLarge},
		{err: ErrNotImplemented, want: http.StatusNotImplemented},
		{err: ErrSessionClosed, want: http.StatusServiceUnavailable},
		{err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Bio string `json:"bio"`
	}

	decode := func(payload string) (body, error) {
		var v body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		err := DecodeJSON(httptest.NewRecorder(), r, &v)
		return v, err
	}

	v, err := decode(`{"bio":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Bio)

	_, err = decode(`{"bio":"hi","admin":true}`)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = decode(`{"bio":"` + strings.Repeat("a", MaxBodyBytes) + `"}`)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusFor(err))
}
