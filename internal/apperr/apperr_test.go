package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"auth", ErrAuth, http.StatusUnauthorized},
		{"validation", Validation("account required"), http.StatusBadRequest},
		{"malformed", Malformed("body must be JSON"), http.StatusBadRequest},
		{"store", Store("read index", errors.New("dial tcp: refused")), http.StatusBadGateway},
		{"upstream passthrough", &UpstreamError{Status: http.StatusUnprocessableEntity}, http.StatusUnprocessableEntity},
		{"upstream transport", &UpstreamError{}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}

func TestMessageHidesRawErrors(t *testing.T) {
	err := Store("write event", errors.New("pq: password authentication failed for user admin"))
	assert.Equal(t, "store unavailable", Message(err))
	assert.Equal(t, "internal error", Message(errors.New("nil pointer dereference")))
	assert.Equal(t, "invalid request: location required", Message(Validation("location required")))
	assert.Equal(t, "malformed input: body must be JSON", Message(Malformed("body must be JSON")))
	assert.ErrorIs(t, &UpstreamError{Status: 500}, ErrUpstream)
}
