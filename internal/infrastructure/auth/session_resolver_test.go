package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const testSecret = "test-secret-key"

func mintToken(t *testing.T, secret string, mutate func(*SessionClaims)) string {
	t.Helper()

	claims := &SessionClaims{
		UserType: string(model.UserTypeRegular),
		Email:    "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "chat-api",
			Audience:  jwt.ClaimStrings{"chat-web"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if mutate != nil {
		mutate(claims)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestResolveValidToken(t *testing.T) {
	resolver := NewJWTSessionResolver(testSecret, "chat-api", "chat-web")

	sess, err := resolver.Resolve(context.Background(), mintToken(t, testSecret, nil))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if sess.UserID != "user-123" {
		t.Errorf("user id = %q, want %q", sess.UserID, "user-123")
	}
	if sess.UserType != model.UserTypeRegular {
		t.Errorf("user type = %q, want regular", sess.UserType)
	}
	if sess.IsGuest() {
		t.Error("regular session should not report guest")
	}
}

func TestResolveGuestToken(t *testing.T) {
	resolver := NewJWTSessionResolver(testSecret, "chat-api", "chat-web")

	token := mintToken(t, testSecret, func(c *SessionClaims) {
		c.UserType = string(model.UserTypeGuest)
	})
	sess, err := resolver.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !sess.IsGuest() {
		t.Error("guest session should report guest")
	}
}

func TestResolveRejections(t *testing.T) {
	resolver := NewJWTSessionResolver(testSecret, "chat-api", "chat-web")

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: mintToken(t, "other-secret", nil),
		},
		{
			name: "expired",
			token: mintToken(t, testSecret, func(c *SessionClaims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
			}),
		},
		{
			name: "wrong issuer",
			token: mintToken(t, testSecret, func(c *SessionClaims) {
				c.Issuer = "someone-else"
			}),
		},
		{
			name: "wrong audience",
			token: mintToken(t, testSecret, func(c *SessionClaims) {
				c.Audience = jwt.ClaimStrings{"other-app"}
			}),
		},
		{
			name: "missing subject",
			token: mintToken(t, testSecret, func(c *SessionClaims) {
				c.Subject = ""
			}),
		},
		{
			name: "unknown user type",
			token: mintToken(t, testSecret, func(c *SessionClaims) {
				c.UserType = "admin"
			}),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tt.token)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized) {
				t.Errorf("expected unauthorized error, got %v", err)
			}
		})
	}
}
