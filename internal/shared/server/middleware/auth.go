package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/server/respond"
	"askmydocs-backend/internal/shared/telemetry"
)

const (
	userIDKey  = "userId"
	sessionKey = "session"
)

// FailFunc writes the unauthorized response in the caller's error shape.
type FailFunc func(c *gin.Context, status int, message string)

// EnvelopeFailure renders {error:{code,message}} for the library API.
func EnvelopeFailure(c *gin.Context, status int, message string) {
	respond.Error(c, status, "unauthorized", message, nil)
}

// FlatFailure renders {error} for the remote function endpoints.
func FlatFailure(c *gin.Context, status int, message string) {
	respond.Function(c, status, respond.FunctionError{Error: message})
}

// Auth requires a bearer token resolvable by verifier. When apiKey is set the
// apikey header must match it as well. The resolved session is stored on the
// gin context and on the request context.
func Auth(verifier auth.Verifier, apiKey string, fail FailFunc) gin.HandlerFunc {
	if fail == nil {
		fail = EnvelopeFailure
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if apiKey != "" {
			got := strings.TrimSpace(c.GetHeader("apikey"))
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				fail(c, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))

		sess, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				telemetry.Error("auth.verify_failed", map[string]any{
					"request_id": RequestIDFromContext(c),
					"err":        err,
				})
			}
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(userIDKey, sess.UserID)
		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// SessionFromContext returns the session resolved by Auth.
func SessionFromContext(c *gin.Context) (auth.Session, bool) {
	if c == nil {
		return auth.Session{}, false
	}
	val, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	sess, ok := val.(auth.Session)
	return sess, ok && sess.Valid()
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
