package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken indicates a missing, malformed, expired or rejected access token.
var ErrInvalidToken = errors.New("invalid token")

// Session is the caller identity resolved from a bearer token. It is created
// once per request and passed explicitly to the services that need it.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
}

// Valid reports whether the session carries a user identity.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != ""
}

// Verifier resolves an access token into a Session.
type Verifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok && sess.Valid()
}
