package document

import (
	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/interfaces/httpserver/handlers/documenthandler"
)

// DocumentRoute wires the artifact read endpoint.
type DocumentRoute struct {
	documentHandler *documenthandler.DocumentHandler
}

func NewDocumentRoute(documentHandler *documenthandler.DocumentHandler) *DocumentRoute {
	return &DocumentRoute{documentHandler: documentHandler}
}

func (documentRoute *DocumentRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/document", documentRoute.documentHandler.Get)
}
