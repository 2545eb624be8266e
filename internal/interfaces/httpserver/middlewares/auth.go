package middlewares

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/convohq/chat-api/internal/domain/session"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/responses"
	"github.com/convohq/chat-api/internal/utils/deadline"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const sessionContextKey = "session"

// AuthMiddleware resolves the caller's session from a bearer token or the
// session cookie. Resolution runs under a budget; a slow verifier rejects
// the request rather than stalling it indefinitely.
func AuthMiddleware(resolver session.Resolver, logger zerolog.Logger, budget time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required")
			return
		}

		ctx := c.Request.Context()
		sess, err := deadline.Run(ctx, "session_resolve", budget, func(ctx context.Context) (*session.Session, error) {
			return resolver.Resolve(ctx, token)
		})
		if err != nil {
			if deadline.IsTimeout(err) {
				logger.Error().Err(err).Msg("session resolution timed out")
			} else {
				logger.Warn().Err(err).Msg("session resolution failed")
			}
			responses.HandleError(c, err, "unauthorized")
			return
		}

		c.Set(sessionContextKey, sess)
		c.Request = c.Request.WithContext(session.WithSession(ctx, sess))

		c.Next()
	}
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(c *gin.Context) *session.Session {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := val.(*session.Session)
	return sess
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found && token != "" {
		return token
	}
	if cookie, err := c.Cookie("session"); err == nil && cookie != "" {
		return cookie
	}
	return ""
}
