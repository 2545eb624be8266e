package documenthandler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/infrastructure/observability"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/middlewares"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/responses"
	"github.com/convohq/chat-api/internal/utils/deadline"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// DocumentHandler serves the artifacts the document tools produce.
type DocumentHandler struct {
	documents *document.Service
	dbBudget  time.Duration
	log       zerolog.Logger
}

func NewDocumentHandler(documents *document.Service, dbBudget time.Duration, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		dbBudget:  dbBudget,
		log:       log.With().Str("handler", "document").Logger(),
	}
}

// Get handles GET /document?id=: the latest version of an owned artifact.
func (h *DocumentHandler) Get(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "DocumentHandler.Get")
	defer span.End()

	documentID := reqCtx.Query("id")
	if documentID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "id is required")
		return
	}
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	doc, err := deadline.Run(ctx, "document_load", h.dbBudget, func(ctx context.Context) (*document.Document, error) {
		return h.documents.Get(ctx, documentID, sess.UserID)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "document unavailable")
		return
	}
	responses.OK(reqCtx, doc)
}
