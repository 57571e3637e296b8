package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
)

func sign(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(raw)
	sig := NewHMACSessions(secret).mac(payload)
	return payload + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func router(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, Principal(c)) })
	return r
}

func do(r http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireSecret(t *testing.T) {
	r := router(RequireSecret([]string{"alpha", "beta"}))

	rec := do(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer beta") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, PrincipalSecret, rec.Body.String())

	rec = do(r, func(req *http.Request) { req.Header.Set(SecretHeader, "alpha") })
	assert.Equal(t, http.StatusOK, rec.Code)

	for name, mutate := range map[string]func(*http.Request){
		"none":         func(*http.Request) {},
		"wrong":        func(req *http.Request) { req.Header.Set("Authorization", "Bearer gamma") },
		"wrong scheme": func(req *http.Request) { req.Header.Set("Authorization", "Basic alpha") },
		"empty bearer": func(req *http.Request) { req.Header.Set("Authorization", "Bearer ") },
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(r, mutate)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestRequireSecretIgnoresCookies(t *testing.T) {
	r := router(RequireSecret([]string{"alpha"}))
	cookie := sign(t, "k", SessionClaims{Subject: "ops", Expires: time.Now().Add(time.Hour).Unix()})
	rec := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie}) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSecretOrSession(t *testing.T) {
	r := router(RequireSecretOrSession([]string{"alpha"}, NewHMACSessions("k")))

	valid := sign(t, "k", SessionClaims{Subject: "ops@acx", Expires: time.Now().Add(time.Hour).Unix()})
	rec := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: valid}) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@acx", rec.Body.String())

	forged := sign(t, "other", SessionClaims{Subject: "ops@acx", Expires: time.Now().Add(time.Hour).Unix()})
	rec = do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: forged}) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())
}

func TestRejectionRecordsAuthError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var recorded []error
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			recorded = append(recorded, e.Err)
		}
	})
	r.Use(RequireSecretOrSession([]string{"alpha"}, NewHMACSessions("k")))
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, Principal(c)) })

	expired := sign(t, "k", SessionClaims{Subject: "ops", Expires: time.Now().Add(-time.Hour).Unix()})
	rec := do(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: expired}) })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, recorded, 1)
	assert.ErrorIs(t, recorded[0], ErrSessionExpired)
	assert.ErrorIs(t, recorded[0], apperr.ErrAuth)

	recorded = nil
	do(r, func(*http.Request) {})
	require.Len(t, recorded, 1)
	assert.ErrorIs(t, recorded[0], apperr.ErrAuth)
}

func TestHMACSessionsVerify(t *testing.T) {
	h := NewHMACSessions("k")
	now := time.Unix(1_700_000_000, 0)
	h.now = func() time.Time { return now }

	_, err := h.Verify(sign(t, "k", SessionClaims{Subject: "a", Expires: now.Unix()}))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))

	_, err = h.Verify("no-dot")
	assert.ErrorIs(t, err, ErrSessionMalformed)

	_, err = h.Verify(sign(t, "k", SessionClaims{Expires: now.Unix() + 60}))
	assert.ErrorIs(t, err, ErrSessionMalformed)

	sub, err := h.Verify(sign(t, "k", SessionClaims{Subject: "a", Expires: now.Unix() + 60}))
	require.NoError(t, err)
	assert.Equal(t, "a", sub)
}
