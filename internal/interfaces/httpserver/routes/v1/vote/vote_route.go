package vote

import (
	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/interfaces/httpserver/handlers/chathandler"
)

// VoteRoute wires message voting endpoints.
type VoteRoute struct {
	chatHandler *chathandler.ChatHandler
}

func NewVoteRoute(chatHandler *chathandler.ChatHandler) *VoteRoute {
	return &VoteRoute{chatHandler: chatHandler}
}

func (voteRoute *VoteRoute) RegisterRouter(router gin.IRouter) {
	router.PATCH("/vote", voteRoute.chatHandler.Vote)
	router.GET("/vote", voteRoute.chatHandler.ListVotes)
}
