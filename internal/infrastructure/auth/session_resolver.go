package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/domain/session"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// SessionClaims is the JWT payload minted by the session issuer.
type SessionClaims struct {
	UserType string `json:"user_type"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTSessionResolver verifies HMAC-signed session tokens.
type JWTSessionResolver struct {
	secret   []byte
	issuer   string
	audience string
}

var _ session.Resolver = (*JWTSessionResolver)(nil)

func NewJWTSessionResolver(secret, issuer, audience string) *JWTSessionResolver {
	return &JWTSessionResolver{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// Resolve implements session.Resolver.
func (r *JWTSessionResolver) Resolve(ctx context.Context, token string) (*session.Session, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return r.secret, nil
	},
		jwt.WithIssuer(r.issuer),
		jwt.WithAudience(r.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !parsed.Valid {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "invalid session token", err, "")
	}

	if claims.Subject == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "session token missing subject", nil, "")
	}

	userType := model.UserType(claims.UserType)
	switch userType {
	case model.UserTypeGuest, model.UserTypeRegular:
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "session token has unknown user type", nil, "")
	}

	return &session.Session{
		UserID:   claims.Subject,
		UserType: userType,
		Email:    claims.Email,
	}, nil
}
