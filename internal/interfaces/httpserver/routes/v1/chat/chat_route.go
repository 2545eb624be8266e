package chat

import (
	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/interfaces/httpserver/handlers/chathandler"
)

// ChatRoute wires the chat pipeline endpoints.
type ChatRoute struct {
	chatHandler *chathandler.ChatHandler
}

func NewChatRoute(chatHandler *chathandler.ChatHandler) *ChatRoute {
	return &ChatRoute{chatHandler: chatHandler}
}

// RegisterRootRouter registers the primary chat surface on the router root:
// send a turn, resume a dropped stream, delete a chat.
func (chatRoute *ChatRoute) RegisterRootRouter(router gin.IRouter) {
	router.POST("/chat", chatRoute.chatHandler.SendMessage)
	router.GET("/chat", chatRoute.chatHandler.ResumeStream)
	router.DELETE("/chat", chatRoute.chatHandler.DeleteChat)
}

// RegisterRouter registers the chat management endpoints under the group.
func (chatRoute *ChatRoute) RegisterRouter(router gin.IRouter) {
	chatRouter := router.Group("/chat")
	chatRouter.GET("/:id/messages", chatRoute.chatHandler.ListMessages)
	chatRouter.PATCH("/:id/visibility", chatRoute.chatHandler.UpdateVisibility)
}
