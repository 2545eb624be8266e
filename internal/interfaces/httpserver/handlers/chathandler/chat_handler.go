package chathandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/domain/prompt"
	"github.com/convohq/chat-api/internal/infrastructure/inference"
	"github.com/convohq/chat-api/internal/infrastructure/metrics"
	"github.com/convohq/chat-api/internal/infrastructure/observability"
	"github.com/convohq/chat-api/internal/infrastructure/tools"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/middlewares"
	chatrequests "github.com/convohq/chat-api/internal/interfaces/httpserver/requests/chat"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/responses"
	"github.com/convohq/chat-api/internal/utils/deadline"
	"github.com/convohq/chat-api/internal/utils/idgen"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
	"github.com/convohq/chat-api/internal/utils/settle"
)

const quotaWindow = 24 * time.Hour

const titlePrompt = `You will generate a short title based on the first message a user begins a conversation with.
Ensure it is not more than 80 characters long.
The title should be a summary of the user's message.
Do not use quotes or colons.`

// ChatHandler owns the message pipeline: validation, entitlement checks,
// streamed generation and best-effort persistence.
type ChatHandler struct {
	chats            *chat.ChatService
	assistants       model.AssistantDirectory
	prompts          prompt.Processor
	providers        *inference.Registry
	tools            *tools.Registry
	timeouts         config.Timeouts
	maxToolSteps     int
	resumptionWindow time.Duration
	log              zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	chats *chat.ChatService,
	assistants model.AssistantDirectory,
	prompts prompt.Processor,
	providers *inference.Registry,
	toolRegistry *tools.Registry,
	timeouts config.Timeouts,
	maxToolSteps int,
	resumptionWindow time.Duration,
	log zerolog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chats:            chats,
		assistants:       assistants,
		prompts:          prompts,
		providers:        providers,
		tools:            toolRegistry,
		timeouts:         timeouts,
		maxToolSteps:     maxToolSteps,
		resumptionWindow: resumptionWindow,
		log:              log.With().Str("handler", "chat").Logger(),
	}
}

// preflight carries the outcome of the parallel pre-stream checks. Both
// fields degrade to safe defaults when their lookup fails: a zero count
// admits the message, an absent chat routes to the create path.
type preflight struct {
	recentCount int64
	existing    *chat.Chat
}

// SendMessage handles POST /chat: it validates the turn, enforces the
// caller's entitlements, streams the assistant reply and persists the
// conversation concurrently with streaming.
func (h *ChatHandler) SendMessage(reqCtx *gin.Context) {
	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "chat-api", "ChatHandler.SendMessage")
	defer span.End()

	// One timer bounds the whole request, set just under the platform's hard
	// execution ceiling. When it fires the relay loop stops forwarding and
	// the stream ends with a diagnostic event instead of being killed.
	ctx, cancelBudget := context.WithTimeout(ctx, h.timeouts.Request)
	defer cancelBudget()

	validated, err := h.parseRequest(ctx, reqCtx)
	if err != nil {
		observability.RecordError(ctx, err)
		if deadline.IsTimeout(err) {
			metrics.BudgetTimeoutsTotal.WithLabelValues("request_parse").Inc()
		}
		responses.HandleError(reqCtx, err, "invalid request")
		return
	}

	sess := middlewares.SessionFromContext(reqCtx)
	if sess == nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required")
		return
	}

	reqCtx.Set("model", validated.Selector.ModelID())
	observability.AddSpanAttributes(ctx,
		attribute.String("chat.id", validated.ChatID),
		attribute.String("chat.model", validated.Selector.ModelID()),
		attribute.String("user.type", string(sess.UserType)),
	)

	assistant := h.lookupAssistant(ctx, validated.Selector)

	entitlements := model.EntitlementsFor(sess.UserType, assistant)
	if !entitlements.Allows(validated.Selector.ModelID()) {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeForbidden, "model not available for this account")
		return
	}

	checks, err := h.runPreflight(ctx, sess.UserID, validated.ChatID)
	if err != nil {
		observability.RecordError(ctx, err)
		metrics.BudgetTimeoutsTotal.WithLabelValues("preflight").Inc()
		responses.HandleError(reqCtx, err, "pre-stream checks did not settle in time")
		return
	}

	if checks.existing != nil && checks.existing.UserID != sess.UserID {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeForbidden, "not the chat owner")
		return
	}

	if checks.recentCount >= entitlements.MaxMessagesPerDay {
		metrics.QuotaRejectionsTotal.WithLabelValues(string(sess.UserType)).Inc()
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeRateLimited, "daily message quota exceeded")
		return
	}

	history := h.loadHistory(ctx, validated.ChatID, checks.existing)

	promptCtx := &prompt.Context{
		UserID:    sess.UserID,
		ChatID:    validated.ChatID,
		Selector:  validated.Selector,
		Assistant: assistant,
		Origin:    originFromRequest(reqCtx),
	}
	completionMessages, err := h.prompts.Process(ctx, promptCtx, buildCompletionMessages(history, validated.Message))
	if err != nil {
		h.log.Warn().Err(err).Str("chat_id", validated.ChatID).Msg("prompt composition failed, continuing with raw messages")
	}

	client, upstreamModel, err := h.providers.Resolve(ctx, validated.Selector, assistant)
	if err != nil {
		observability.RecordError(ctx, err)
		responses.HandleError(reqCtx, err, "model unavailable")
		return
	}

	// Everything after this point streams over a committed 200; failures
	// surface as stream events, never as a status change.
	stream := newTransport(reqCtx)
	defer stream.Close()

	metrics.ActiveStreams.WithLabelValues(validated.Selector.ModelID()).Inc()
	defer metrics.ActiveStreams.WithLabelValues(validated.Selector.ModelID()).Dec()

	persistCtx := context.WithoutCancel(ctx)
	group, markerID := h.startPersistence(persistCtx, sess.UserID, validated, checks.existing)

	assistantText, genErr := h.streamGeneration(ctx, stream, client, upstreamModel, completionMessages, validated.Selector, assistant)
	if genErr != nil {
		observability.RecordError(ctx, genErr)
		metrics.ProviderErrorsTotal.WithLabelValues(client.Name(), errorTypeLabel(genErr)).Inc()

		message := "generation failed"
		if errors.Is(genErr, context.DeadlineExceeded) {
			message = "generation aborted: request budget exceeded"
			metrics.BudgetTimeoutsTotal.WithLabelValues("request_budget").Inc()
		}
		h.log.Error().Err(genErr).Str("chat_id", validated.ChatID).Msg("generation failed mid-stream")
		if err := stream.WriteEvent(StreamEvent{Type: eventError, Message: message}); err != nil {
			h.log.Warn().Err(err).Msg("failed to deliver stream error event")
		}
	}

	h.settlePersistence(group, validated.ChatID)
	h.log.Debug().Str("chat_id", validated.ChatID).Str("stream_id", <-markerID).Msg("persistence settled")

	if genErr == nil && assistantText != "" {
		h.writeAssistantTurn(persistCtx, validated.ChatID, assistantText)
	}
}

// parseRequest decodes and validates the body under the parse budget. A
// slow or hostile body burns the budget, not the request slot.
func (h *ChatHandler) parseRequest(ctx context.Context, reqCtx *gin.Context) (*chatrequests.ValidatedSendMessage, error) {
	return deadline.Run(ctx, "request_parse", h.timeouts.Parse, func(ctx context.Context) (*chatrequests.ValidatedSendMessage, error) {
		var request chatrequests.SendMessageRequest
		if err := json.NewDecoder(reqCtx.Request.Body).Decode(&request); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "malformed request body", err, "")
		}
		return request.Validate(ctx)
	})
}

// lookupAssistant resolves the assistant behind an assistant-scoped
// selector. Absence is not an error here: an unknown assistant simply never
// appears in the allow-list, so the entitlement check rejects the request.
func (h *ChatHandler) lookupAssistant(ctx context.Context, selector model.Selector) *model.Assistant {
	if selector.Kind != model.SelectorAssistant {
		return nil
	}
	assistant, err := h.assistants.FindByID(ctx, selector.AssistantID)
	if err != nil {
		h.log.Warn().Err(err).Str("assistant_id", selector.AssistantID).Msg("assistant lookup failed")
		return nil
	}
	return assistant
}

// runPreflight runs the quota count and chat existence lookup in parallel.
// Each sub-check absorbs its own failure into a safe default; only the
// combined checks overrunning their budget fails the request.
func (h *ChatHandler) runPreflight(ctx context.Context, userID, chatID string) (preflight, error) {
	return deadline.Run(ctx, "preflight", h.timeouts.DB, func(ctx context.Context) (preflight, error) {
		var checks preflight
		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			count, err := deadline.Run(groupCtx, "quota_count", h.timeouts.DB, func(ctx context.Context) (int64, error) {
				return h.chats.CountRecentUserMessages(ctx, userID, quotaWindow)
			})
			if err != nil {
				if deadline.IsTimeout(err) {
					metrics.BudgetTimeoutsTotal.WithLabelValues("quota_count").Inc()
				}
				h.log.Warn().Err(err).Str("user_id", userID).Msg("quota count failed, admitting message")
				return nil
			}
			checks.recentCount = count
			return nil
		})

		group.Go(func() error {
			existing, err := deadline.Run(groupCtx, "chat_lookup", h.timeouts.DB, func(ctx context.Context) (*chat.Chat, error) {
				return h.chats.GetChat(ctx, chatID)
			})
			if err != nil {
				if deadline.IsTimeout(err) {
					metrics.BudgetTimeoutsTotal.WithLabelValues("chat_lookup").Inc()
				}
				if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
					h.log.Warn().Err(err).Str("chat_id", chatID).Msg("chat lookup failed, treating chat as new")
				}
				return nil
			}
			checks.existing = existing
			return nil
		})

		// Sub-checks never propagate errors; Wait only orders the writes.
		_ = group.Wait()
		return checks, nil
	})
}

// loadHistory fetches prior turns of an existing chat. Any failure degrades
// to an empty history so the turn still generates.
func (h *ChatHandler) loadHistory(ctx context.Context, chatID string, existing *chat.Chat) []*chat.Message {
	if existing == nil {
		return nil
	}
	history, err := deadline.Run(ctx, "history_load", h.timeouts.DB, func(ctx context.Context) ([]*chat.Message, error) {
		return h.chats.ListMessages(ctx, chatID)
	})
	if err != nil {
		if deadline.IsTimeout(err) {
			metrics.BudgetTimeoutsTotal.WithLabelValues("history_load").Inc()
		}
		h.log.Warn().Err(err).Str("chat_id", chatID).Msg("history load failed, generating without context")
		return nil
	}
	return history
}

// startPersistence launches the conversation writes concurrently with
// streaming. The returned channel always yields a marker id, even when the
// marker row never lands.
func (h *ChatHandler) startPersistence(ctx context.Context, userID string, validated *chatrequests.ValidatedSendMessage, existing *chat.Chat) (*settle.Group, <-chan string) {
	group := &settle.Group{}
	markerID := make(chan string, 1)
	chatReady := make(chan struct{})

	group.Go("conversation_write", func() error {
		defer close(chatReady)

		if existing == nil {
			title := h.generateTitle(ctx, validated.Message.Text())
			created, err := deadline.Run(ctx, "chat_upsert", h.timeouts.DB, func(ctx context.Context) (*chat.Chat, error) {
				return h.chats.CreateChat(ctx, &chat.Chat{
					PublicID:   validated.ChatID,
					Title:      title,
					UserID:     userID,
					Visibility: validated.Visibility,
				})
			})
			if err != nil {
				return err
			}
			if created != nil {
				metrics.ChatsCreatedTotal.Inc()
			}
		}

		return deadline.Do(ctx, "user_turn_write", h.timeouts.DB, func(ctx context.Context) error {
			return h.chats.AppendMessage(ctx, validated.Message)
		})
	})

	group.Go("stream_marker", func() error {
		id := newMarkerID()
		markerID <- id

		// The marker row references the chat; wait for the upsert to settle
		// so a brand new chat exists before the insert.
		<-chatReady

		return deadline.Do(ctx, "stream_marker_write", h.timeouts.DB, func(ctx context.Context) error {
			return h.chats.CreateStream(ctx, &chat.Stream{
				PublicID:     id,
				ChatPublicID: validated.ChatID,
			})
		})
	})

	return group, markerID
}

// settlePersistence waits for every persistence task and downgrades failures
// to logs and counters. Nothing here can fail the request.
func (h *ChatHandler) settlePersistence(group *settle.Group, chatID string) {
	for _, failed := range settle.Failed(group.Wait()) {
		metrics.PersistenceFailuresTotal.WithLabelValues(failed.Name).Inc()
		if deadline.IsTimeout(failed.Err) {
			metrics.BudgetTimeoutsTotal.WithLabelValues(failed.Name).Inc()
		}
		h.log.Error().Err(failed.Err).
			Str("chat_id", chatID).
			Str("task", failed.Name).
			Msg("persistence task failed")
	}
}

// writeAssistantTurn records the streamed reply once persistence has
// settled. Best effort like every other write on this path.
func (h *ChatHandler) writeAssistantTurn(ctx context.Context, chatID, text string) {
	turn := &chat.Message{
		PublicID:     uuid.NewString(),
		ChatPublicID: chatID,
		Role:         chat.MessageRoleAssistant,
		Parts:        []chat.Part{{Type: "text", Text: text}},
		CreatedAt:    time.Now(),
	}
	err := deadline.Do(ctx, "assistant_turn_write", h.timeouts.DB, func(ctx context.Context) error {
		return h.chats.AppendMessage(ctx, turn)
	})
	if err != nil {
		metrics.PersistenceFailuresTotal.WithLabelValues("assistant_turn_write").Inc()
		if deadline.IsTimeout(err) {
			metrics.BudgetTimeoutsTotal.WithLabelValues("assistant_turn_write").Inc()
		}
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("failed to persist assistant turn")
	}
}

// streamGeneration drives the completion loop: deltas relay to the client
// through the word smoother as they arrive, and completed tool calls feed
// follow-up rounds up to the step limit.
func (h *ChatHandler) streamGeneration(
	ctx context.Context,
	stream *transport,
	client *inference.Client,
	upstreamModel string,
	messages []openai.ChatCompletionMessage,
	selector model.Selector,
	assistant *model.Assistant,
) (string, error) {
	smoother := inference.NewSmoother(func(text string) error {
		return stream.WriteEvent(StreamEvent{Type: eventTextDelta, Delta: text})
	})

	started := time.Now()
	var firstToken sync.Once
	emit := func(delta inference.Delta) error {
		firstToken.Do(func() {
			metrics.FirstTokenDuration.WithLabelValues(selector.ModelID(), client.Name()).Observe(time.Since(started).Seconds())
		})
		if delta.Reasoning != "" {
			if err := stream.WriteEvent(StreamEvent{Type: eventReasoningDelta, Delta: delta.Reasoning}); err != nil {
				return err
			}
		}
		if delta.Content != "" {
			return smoother.Write(delta.Content)
		}
		return nil
	}

	request := openai.ChatCompletionRequest{
		Model:    upstreamModel,
		Messages: messages,
	}
	if assistant != nil && assistant.Temperature != nil {
		request.Temperature = *assistant.Temperature
	}
	toolsEnabled := h.tools != nil && !selector.IsReasoning()
	if toolsEnabled {
		request.Tools = h.tools.Definitions()
	}

	var reply strings.Builder
	for step := 0; ; step++ {
		response, err := client.StreamChatCompletion(ctx, request, emit)
		if err != nil {
			return reply.String(), err
		}
		metrics.RecordTokens(upstreamModel, client.Name(), response.Usage.PromptTokens, response.Usage.CompletionTokens)

		message := response.Choices[0].Message
		reply.WriteString(message.Content)

		if !toolsEnabled || len(message.ToolCalls) == 0 {
			break
		}

		request.Messages = append(request.Messages, message)
		for _, call := range message.ToolCalls {
			result, execErr := h.tools.Execute(ctx, call.Function.Name, call.Function.Arguments)
			metrics.RecordToolCall(call.Function.Name, execErr)
			if execErr != nil {
				h.log.Warn().Err(execErr).Str("tool", call.Function.Name).Msg("tool execution failed")
				result = fmt.Sprintf(`{"error":%q}`, execErr.Error())
			}
			request.Messages = append(request.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		// Force a plain answer on the last allowed round.
		if step+1 >= h.maxToolSteps {
			request.Tools = nil
			toolsEnabled = false
		}
	}

	if err := smoother.Flush(); err != nil {
		h.log.Warn().Err(err).Msg("failed to flush trailing delta")
	}
	return reply.String(), nil
}

// generateTitle derives a chat title from the opening turn. Failure or an
// overrun budget falls back to a truncation of the message itself.
func (h *ChatHandler) generateTitle(ctx context.Context, userText string) string {
	client, upstreamModel, err := h.providers.Resolve(ctx, model.Selector{Kind: model.SelectorBase, BaseID: model.BaseChatModel}, nil)
	if err != nil {
		return fallbackTitle(userText)
	}

	response, err := deadline.Run(ctx, "title_generation", h.timeouts.Title, func(ctx context.Context) (*openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: upstreamModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: titlePrompt},
				{Role: openai.ChatMessageRoleUser, Content: userText},
			},
		})
	})
	if err != nil {
		if deadline.IsTimeout(err) {
			metrics.BudgetTimeoutsTotal.WithLabelValues("title_generation").Inc()
		}
		h.log.Warn().Err(err).Msg("title generation failed, falling back to message excerpt")
		return fallbackTitle(userText)
	}
	if len(response.Choices) == 0 {
		return fallbackTitle(userText)
	}

	title := strings.TrimSpace(response.Choices[0].Message.Content)
	if title == "" {
		return fallbackTitle(userText)
	}
	return truncate(title, 80)
}

// buildCompletionMessages converts stored turns plus the incoming turn into
// provider message form.
func buildCompletionMessages(history []*chat.Message, incoming *chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		out = append(out, openai.ChatCompletionMessage{
			Role:    roleToCompletionRole(m.Role),
			Content: m.Text(),
		})
	}
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: incoming.Text(),
	})
	return out
}

func roleToCompletionRole(role chat.MessageRole) string {
	if role == chat.MessageRoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

// newMarkerID generates the resumption marker id. The random generator
// failing still yields a usable id.
func newMarkerID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	if fallback, genErr := idgen.GenerateSecureID("stream", 16); genErr == nil {
		return fallback
	}
	return fmt.Sprintf("stream_%d", time.Now().UnixNano())
}

func fallbackTitle(userText string) string {
	return truncate(strings.TrimSpace(userText), 80)
}

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func errorTypeLabel(err error) string {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		return string(domainErr.GetErrorType())
	}
	return "unknown"
}

// originFromRequest reads the approximate location forwarded by the edge
// proxy. Missing headers leave the origin empty.
func originFromRequest(reqCtx *gin.Context) prompt.Origin {
	return prompt.Origin{
		Latitude:  reqCtx.GetHeader("X-Geo-Latitude"),
		Longitude: reqCtx.GetHeader("X-Geo-Longitude"),
		City:      reqCtx.GetHeader("X-Geo-City"),
		Country:   reqCtx.GetHeader("X-Geo-Country"),
	}
}
