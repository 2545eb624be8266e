package session

import (
	"context"

	"github.com/convohq/chat-api/internal/domain/model"
)

// Session is the authenticated caller identity attached to every request.
type Session struct {
	UserID   string
	UserType model.UserType
	Email    string
}

// IsGuest reports whether the session belongs to an anonymous guest user.
func (s *Session) IsGuest() bool {
	return s.UserType == model.UserTypeGuest
}

// Resolver verifies a bearer credential and produces the session. A failure
// is an authentication failure; the pipeline never proceeds unauthenticated.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*Session, error)
}

type contextKey struct{}

// WithSession attaches the session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by the auth middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
