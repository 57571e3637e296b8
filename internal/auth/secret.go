package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// principalCtxKey is the Gin context key used to store who authenticated the request.
const principalCtxKey = "principal"

// SecretHeader is the alternative to a bearer Authorization header.
const SecretHeader = "X-Ingest-Secret"

// PrincipalSecret is recorded when the request carried a valid shared secret.
const PrincipalSecret = "shared-secret"

// RequireSecret admits requests carrying one of secrets as a bearer token or in
// X-Ingest-Secret. Rejection happens before any store access.
func RequireSecret(secrets []string) gin.HandlerFunc {
	return middleware(secrets, nil)
}

// RequireSecretOrSession additionally admits requests with a valid session cookie.
// A nil verifier disables cookie sessions.
func RequireSecretOrSession(secrets []string, sessions SessionVerifier) gin.HandlerFunc {
	return middleware(secrets, sessions)
}

func middleware(secrets []string, sessions SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if presented := presentedSecret(c.Request); presented != "" && matchSecret(secrets, presented) {
			c.Set(principalCtxKey, PrincipalSecret)
			c.Next()
			return
		}
		err := apperr.ErrAuth
		if sessions != nil {
			if cookie, cerr := c.Cookie(SessionCookie); cerr == nil {
				subject, verr := sessions.Verify(cookie)
				if verr == nil {
					c.Set(principalCtxKey, subject)
					c.Next()
					return
				}
				err = verr
			}
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(apperr.StatusOf(err), models.ErrorResponse{Error: apperr.Message(err)})
	}
}

func presentedSecret(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(SecretHeader))
}

// matchSecret compares against every configured secret in constant time.
func matchSecret(secrets []string, presented string) bool {
	ok := false
	for _, s := range secrets {
		if s != "" && subtle.ConstantTimeCompare([]byte(s), []byte(presented)) == 1 {
			ok = true
		}
	}
	return ok
}

// Principal returns who authenticated the request.
func Principal(c *gin.Context) string {
	v, _ := c.Get(principalCtxKey)
	s, _ := v.(string)
	return s
}
