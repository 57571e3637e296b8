package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
)

// SessionCookie is the name of the dashboard session cookie.
const SessionCookie = "session"

// Session errors all match apperr.ErrAuth.
var (
	ErrSessionMalformed = fmt.Errorf("session malformed: %w", apperr.ErrAuth)
	ErrSessionSignature = fmt.Errorf("session signature mismatch: %w", apperr.ErrAuth)
	ErrSessionExpired   = fmt.Errorf("session expired: %w", apperr.ErrAuth)
)

// SessionVerifier validates a session cookie value and returns its subject.
// Issuing sessions happens elsewhere.
type SessionVerifier interface {
	Verify(cookie string) (subject string, err error)
}

// SessionClaims is the signed payload of a session cookie.
type SessionClaims struct {
	Subject string `json:"sub"`
	Expires int64  `json:"exp"` // unix seconds
}

// HMACSessions verifies cookies of the form base64url(claims).base64url(hmac-sha256(claims)).
type HMACSessions struct {
	secret []byte
	now    func() time.Time
}

func NewHMACSessions(secret string) *HMACSessions {
	return &HMACSessions{secret: []byte(secret), now: time.Now}
}

func (h *HMACSessions) Verify(cookie string) (string, error) {
	payload, sig, ok := strings.Cut(cookie, ".")
	if !ok || payload == "" || sig == "" {
		return "", ErrSessionMalformed
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrSessionMalformed
	}
	if !hmac.Equal(got, h.mac(payload)) {
		return "", ErrSessionSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrSessionMalformed
	}
	var claims SessionClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims.Subject == "" {
		return "", ErrSessionMalformed
	}
	if h.now().Unix() >= claims.Expires {
		return "", ErrSessionExpired
	}
	return claims.Subject, nil
}

func (h *HMACSessions) mac(payload string) []byte {
	m := hmac.New(sha256.New, h.secret)
	m.Write([]byte(payload))
	return m.Sum(nil)
}
