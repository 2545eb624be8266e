package chathandler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/observability"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "github.com/convohq/chat-api/internal/interfaces/httpserver/requests/chat"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/responses"
	"github.com/convohq/chat-api/internal/utils/deadline"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// ResumeStream handles GET /chat?chatId=: it returns the most recent
// assistant turn when one was produced inside the resumption window, else an
// empty list. A client that reconnects after a dropped stream uses this to
// recover the reply it missed.
func (h *ChatHandler) ResumeStream(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.ResumeStream")
	defer span.End()

	chatID := reqCtx.Query("chatId")
	if chatID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "chatId is required")
		return
	}
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	if _, err := h.chats.GetReadableChat(ctx, chatID, sess.UserID); err != nil {
		responses.HandleError(reqCtx, err, "chat unavailable")
		return
	}

	latest, err := deadline.Run(ctx, "resume_lookup", h.timeouts.DB, func(ctx context.Context) (*chat.Message, error) {
		return h.chats.LatestAssistantMessageWithin(ctx, chatID, h.resumptionWindow)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to load recent messages")
		return
	}

	messages := []*chat.Message{}
	if latest != nil {
		messages = append(messages, latest)
	}
	responses.OK(reqCtx, messages)
}

// DeleteChat handles DELETE /chat?id=: it removes an owned chat and
// everything hanging off it.
func (h *ChatHandler) DeleteChat(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.DeleteChat")
	defer span.End()

	chatID := reqCtx.Query("id")
	if chatID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "id is required")
		return
	}
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	err := deadline.Do(ctx, "chat_delete", h.timeouts.DB, func(ctx context.Context) error {
		return h.chats.DeleteChat(ctx, chatID, sess.UserID)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to delete chat")
		return
	}
	responses.OK(reqCtx, gin.H{"id": chatID})
}

// ListMessages handles GET /chat/:id/messages for readable chats.
func (h *ChatHandler) ListMessages(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.ListMessages")
	defer span.End()

	chatID := reqCtx.Param("id")
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	if _, err := h.chats.GetReadableChat(ctx, chatID, sess.UserID); err != nil {
		responses.HandleError(reqCtx, err, "chat unavailable")
		return
	}

	messages, err := deadline.Run(ctx, "messages_list", h.timeouts.DB, func(ctx context.Context) ([]*chat.Message, error) {
		return h.chats.ListMessages(ctx, chatID)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list messages")
		return
	}
	responses.OK(reqCtx, messages)
}

// UpdateVisibility handles PATCH /chat/:id/visibility for owned chats.
func (h *ChatHandler) UpdateVisibility(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.UpdateVisibility")
	defer span.End()

	chatID := reqCtx.Param("id")
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var request chatrequests.UpdateVisibilityRequest
	if err := json.NewDecoder(reqCtx.Request.Body).Decode(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "malformed request body")
		return
	}
	visibility, err := request.Validate(ctx)
	if err != nil {
		responses.HandleError(reqCtx, err, "invalid request")
		return
	}

	err = deadline.Do(ctx, "visibility_update", h.timeouts.DB, func(ctx context.Context) error {
		return h.chats.SetVisibility(ctx, chatID, sess.UserID, visibility)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to update visibility")
		return
	}
	responses.OK(reqCtx, gin.H{"id": chatID, "visibility": visibility})
}

// Vote handles PATCH /vote: it records an up or down vote on an assistant
// turn of an owned chat.
func (h *ChatHandler) Vote(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.Vote")
	defer span.End()

	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	var request chatrequests.VoteRequest
	if err := json.NewDecoder(reqCtx.Request.Body).Decode(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "malformed request body")
		return
	}
	vote, err := request.Validate(ctx)
	if err != nil {
		responses.HandleError(reqCtx, err, "invalid request")
		return
	}

	err = deadline.Do(ctx, "vote_upsert", h.timeouts.DB, func(ctx context.Context) error {
		return h.chats.VoteMessage(ctx, sess.UserID, vote)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to record vote")
		return
	}
	responses.OK(reqCtx, vote)
}

// ListVotes handles GET /vote?chatId= for readable chats.
func (h *ChatHandler) ListVotes(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.ListVotes")
	defer span.End()

	chatID := reqCtx.Query("chatId")
	if chatID == "" {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "chatId is required")
		return
	}
	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	votes, err := deadline.Run(ctx, "votes_list", h.timeouts.DB, func(ctx context.Context) ([]*chat.Vote, error) {
		return h.chats.ListVotes(ctx, chatID, sess.UserID)
	})
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list votes")
		return
	}
	responses.OK(reqCtx, votes)
}
