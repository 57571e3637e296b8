// Package apperr defines the error taxonomy shared by the ingestion and read paths
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth means a missing or mismatched secret, or an invalid session.
	ErrAuth = errors.New("unauthorized")
	// ErrValidation means the request was structurally wrong (method, required field).
	ErrValidation = errors.New("invalid request")
	// ErrMalformed means an unparseable body on a path that needs specific fields.
	ErrMalformed = errors.New("malformed input")
	// ErrStore means the backing key-value store could not serve a structural read or write.
	ErrStore = errors.New("store unavailable")
	// ErrNotFound means a single addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstream means an outbound CRM call failed.
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError carries the upstream status and body so handlers can pass them through.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.Status)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Store wraps err as a store failure for op.
func Store(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// Validation returns a validation error with a short caller-facing message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Malformed reports an unparseable body on a path that needs specific fields.
func Malformed(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformed, msg)
}

// StatusOf maps an error onto the HTTP status the caller should see.
func StatusOf(err error) int {
	var up *UpstreamError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &up):
		if up.Status >= 400 {
			return up.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the short message safe to put in a response body.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return ErrAuth.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrUpstream):
		return ErrUpstream.Error()
	case errors.Is(err, ErrStore):
		return ErrStore.Error()
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformed):
		// Validation messages are written for callers.
		return err.Error()
	default:
		return "internal error"
	}
}
