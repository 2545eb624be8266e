package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/chat"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/document"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1/vote"
)

type V1Route struct {
	chat     *chat.ChatRoute
	vote     *vote.VoteRoute
	document *document.DocumentRoute
}

func NewV1Route(
	chatRoute *chat.ChatRoute,
	voteRoute *vote.VoteRoute,
	documentRoute *document.DocumentRoute,
) *V1Route {
	return &V1Route{
		chatRoute,
		voteRoute,
		documentRoute,
	}
}

// RegisterRouter registers the authenticated surface: the root-level chat
// pipeline plus the versioned management endpoints.
func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Route.chat.RegisterRootRouter(router)

	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)

	v1Route.chat.RegisterRouter(v1Router)
	v1Route.vote.RegisterRouter(v1Router)
	v1Route.document.RegisterRouter(v1Router)
}

// GetVersion returns the current build version of the API server.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": config.Version})
}
