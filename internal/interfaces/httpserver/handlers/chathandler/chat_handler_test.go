package chathandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"resty.dev/v3"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/domain/prompt"
	"github.com/convohq/chat-api/internal/domain/session"
	"github.com/convohq/chat-api/internal/infrastructure/inference"
	"github.com/convohq/chat-api/internal/infrastructure/tools"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ===============================================
// Fakes
// ===============================================

type fakeChatRepo struct {
	mu        sync.Mutex
	chats     map[string]*chat.Chat
	upsertErr error
	findErr   error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[string]*chat.Chat{}}
}

func (r *fakeChatRepo) Upsert(_ context.Context, c *chat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if existing, ok := r.chats[c.PublicID]; ok {
		*c = *existing
		return nil
	}
	c.ID = uint(len(r.chats) + 1)
	c.CreatedAt = time.Now()
	stored := *c
	r.chats[c.PublicID] = &stored
	return nil
}

func (r *fakeChatRepo) FindByPublicID(ctx context.Context, publicID string) (*chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	c, ok := r.chats[publicID]
	if !ok {
		return nil, notFoundErr(ctx, "chat not found")
	}
	copied := *c
	return &copied, nil
}

func (r *fakeChatRepo) UpdateVisibility(ctx context.Context, publicID string, visibility chat.Visibility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[publicID]
	if !ok {
		return notFoundErr(ctx, "chat not found")
	}
	c.Visibility = visibility
	return nil
}

func (r *fakeChatRepo) Delete(_ context.Context, publicID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, publicID)
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*chat.Message
	count    int64
	countErr error
	addErr   error
	latest   *chat.Message
}

func (r *fakeMessageRepo) Add(_ context.Context, m *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	stored := *m
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) ListByChat(_ context.Context, chatPublicID string) ([]*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.ChatPublicID == chatPublicID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) CountUserMessagesSince(context.Context, string, time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.count, nil
}

func (r *fakeMessageRepo) LatestByChat(context.Context, string) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, nil
}

func (r *fakeMessageRepo) byRole(role chat.MessageRole) []*chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Message
	for _, m := range r.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeStreamRepo struct {
	mu      sync.Mutex
	streams []*chat.Stream
}

func (r *fakeStreamRepo) Create(_ context.Context, s *chat.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *s
	r.streams = append(r.streams, &stored)
	return nil
}

func (r *fakeStreamRepo) ListIDsByChat(context.Context, string) ([]string, error) {
	return nil, nil
}

func (r *fakeStreamRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeVoteRepo struct{}

func (fakeVoteRepo) Upsert(context.Context, *chat.Vote) error                 { return nil }
func (fakeVoteRepo) ListByChat(context.Context, string) ([]*chat.Vote, error) { return nil, nil }

func notFoundErr(ctx context.Context, msg string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, msg, nil, "")
}

type echoTool struct {
	mu    sync.Mutex
	calls int
}

func (t *echoTool) Name() string { return "echo_tool" }

func (t *echoTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        "echo_tool",
			Description: "Echoes its arguments back",
		},
	}
}

func (t *echoTool) Execute(_ context.Context, arguments string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return arguments, nil
}

func (t *echoTool) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// ===============================================
// Harness
// ===============================================

type handlerFixture struct {
	handler  *ChatHandler
	chats    *fakeChatRepo
	messages *fakeMessageRepo
	streams  *fakeStreamRepo
	tools    *echoTool
}

// upstreamResponder serves the completion endpoint for one test: a JSON
// completion for non-stream calls, SSE chunks for stream calls.
type upstreamResponder struct {
	mu          sync.Mutex
	streamCalls int
	requests    []openai.ChatCompletionRequest
	respond     func(call int, w http.ResponseWriter)
	failStream  bool
}

func (u *upstreamResponder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		u.mu.Lock()
		u.requests = append(u.requests, request)
		if !request.Stream {
			u.mu.Unlock()
			writeJSONCompletion(w, "Generated Title")
			return
		}
		call := u.streamCalls
		u.streamCalls++
		fail := u.failStream
		respond := u.respond
		u.mu.Unlock()

		if fail {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		if respond != nil {
			respond(call, w)
			return
		}
		writeSSEText(w, "Hello there friend")
	}
}

func (u *upstreamResponder) streamRequests() []openai.ChatCompletionRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []openai.ChatCompletionRequest
	for _, r := range u.requests {
		if r.Stream {
			out = append(out, r)
		}
	}
	return out
}

func writeJSONCompletion(w http.ResponseWriter, content string) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeSSEText(w http.ResponseWriter, text string) {
	for _, word := range strings.SplitAfter(text, " ") {
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func writeSSEToolCall(w http.ResponseWriter, name, arguments string) {
	fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":%q,\"arguments\":%q}}]}}]}\n\n", name, arguments)
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func newFixture(t *testing.T, upstream *upstreamResponder) *handlerFixture {
	t.Helper()

	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	chatRepo := newFakeChatRepo()
	messageRepo := &fakeMessageRepo{}
	streamRepo := &fakeStreamRepo{}
	service := chat.NewChatService(chatRepo, messageRepo, streamRepo, fakeVoteRepo{})

	restyClient := resty.New()
	t.Cleanup(func() { _ = restyClient.Close() })
	client := inference.NewClient(restyClient, "test-provider", server.URL, "")
	registry := inference.NewRegistry(client, map[string]string{
		model.BaseChatModel:      "upstream-chat",
		model.BaseReasoningModel: "upstream-reasoning",
	})

	tool := &echoTool{}
	directory := model.NewStaticAssistantDirectory([]*model.Assistant{
		{ID: "travel-guide", Name: "Travel Guide", Guidance: "You plan trips."},
	})

	timeouts := config.Timeouts{
		Parse:   time.Second,
		Session: time.Second,
		DB:      2 * time.Second,
		Title:   time.Second,
		Request: 10 * time.Second,
	}

	handler := NewChatHandler(
		service,
		directory,
		prompt.NewProcessor(zerolog.Nop()),
		registry,
		tools.NewRegistry(tool),
		timeouts,
		3,
		15*time.Second,
		zerolog.Nop(),
	)

	return &handlerFixture{
		handler:  handler,
		chats:    chatRepo,
		messages: messageRepo,
		streams:  streamRepo,
		tools:    tool,
	}
}

func regularSession() *session.Session {
	return &session.Session{UserID: "user-1", UserType: model.UserTypeRegular, Email: "u@example.com"}
}

func sendBody(modelID string) string {
	return sendBodyWithMessage(modelID, "22222222-2222-2222-2222-222222222222")
}

func sendBodyWithMessage(modelID, messageID string) string {
	body := map[string]any{
		"id": "11111111-1111-1111-1111-111111111111",
		"message": map[string]any{
			"id":        messageID,
			"createdAt": time.Now().Format(time.RFC3339),
			"role":      "user",
			"parts":     []map[string]any{{"type": "text", "text": "plan me a weekend in Lisbon"}},
		},
		"selectedChatModel":      modelID,
		"selectedVisibilityType": "private",
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func performSend(fx *handlerFixture, body string, sess *session.Session) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if sess != nil {
		c.Set("session", sess)
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))
	}
	fx.handler.SendMessage(c)
	return recorder
}

// ===============================================
// Tests
// ===============================================

func TestSendMessageStreamsReply(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Header().Get("Content-Type"), "text/event-stream")

	body := recorder.Body.String()
	require.Contains(t, body, "text-delta")
	require.Contains(t, body, "Hello there friend")
	require.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	created, err := fx.chats.FindByPublicID(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.Equal(t, "user-1", created.UserID)
	require.Equal(t, "Generated Title", created.Title)

	require.Len(t, fx.messages.byRole(chat.MessageRoleUser), 1)
	assistantTurns := fx.messages.byRole(chat.MessageRoleAssistant)
	require.Len(t, assistantTurns, 1)
	require.Equal(t, "Hello there friend", assistantTurns[0].Text())

	require.Len(t, fx.streams.streams, 1)
	require.NotEmpty(t, fx.streams.streams[0].PublicID)
}

func TestSendMessageWithoutSessionUnauthorized(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("chat-model"), nil)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Empty(t, upstream.streamRequests())
	require.Empty(t, fx.messages.byRole(chat.MessageRoleUser))
}

func TestSendMessageSecondTurnAppendsToSameChat(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	first := performSend(fx, sendBodyWithMessage("chat-model", "22222222-2222-2222-2222-222222222222"), regularSession())
	require.Equal(t, http.StatusOK, first.Code)

	second := performSend(fx, sendBodyWithMessage("chat-model", "33333333-3333-3333-3333-333333333333"), regularSession())
	require.Equal(t, http.StatusOK, second.Code)

	require.Len(t, fx.chats.chats, 1)

	userTurns := fx.messages.byRole(chat.MessageRoleUser)
	require.Len(t, userTurns, 2)
	require.NotEqual(t, userTurns[0].PublicID, userTurns[1].PublicID)
	require.Len(t, fx.messages.byRole(chat.MessageRoleAssistant), 2)
}

func TestSendMessageRequestBudgetAbortsStream(t *testing.T) {
	upstream := &upstreamResponder{
		respond: func(_ int, w http.ResponseWriter) {
			flusher := w.(http.Flusher)
			for i := 1; i <= 6; i++ {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"word%02d \"}}]}\n\n", i)
				flusher.Flush()
				time.Sleep(200 * time.Millisecond)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		},
	}
	fx := newFixture(t, upstream)
	fx.handler.timeouts.Request = 400 * time.Millisecond

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(t, body, "word01")
	require.NotContains(t, body, "word06")
	require.Contains(t, body, `"type":"error"`)
	require.Contains(t, body, "request budget exceeded")
	require.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestSendMessageQuotaExceeded(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.messages.count = 25

	sess := &session.Session{UserID: "guest-1", UserType: model.UserTypeGuest}
	recorder := performSend(fx, sendBody("chat-model"), sess)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Empty(t, upstream.streamRequests())
	require.Empty(t, fx.messages.byRole(chat.MessageRoleUser))
}

func TestSendMessageQuotaCheckFailureAdmits(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.messages.countErr = fmt.Errorf("replica unavailable")

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Hello there friend")
}

func TestSendMessageChatLookupFailureTreatsChatAsNew(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.chats.findErr = fmt.Errorf("replica unavailable")

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Hello there friend")
}

func TestSendMessageForeignChatForbidden(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.chats.chats["11111111-1111-1111-1111-111111111111"] = &chat.Chat{
		ID: 1, PublicID: "11111111-1111-1111-1111-111111111111", UserID: "someone-else", Visibility: chat.VisibilityPrivate,
	}

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Empty(t, upstream.streamRequests())
}

func TestSendMessageUnknownAssistantForbidden(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("assistant-nonexistent"), regularSession())

	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Empty(t, upstream.streamRequests())
}

func TestSendMessageValidationRejected(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, `{"id":"not-a-uuid"}`, regularSession())

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Empty(t, upstream.streamRequests())
}

func TestSendMessageReasoningDisablesTools(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("chat-model-reasoning"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	streamed := upstream.streamRequests()
	require.Len(t, streamed, 1)
	require.Empty(t, streamed[0].Tools)
	require.Equal(t, "upstream-reasoning", streamed[0].Model)
}

func TestSendMessageToolLoop(t *testing.T) {
	upstream := &upstreamResponder{
		respond: func(call int, w http.ResponseWriter) {
			if call == 0 {
				writeSSEToolCall(w, "echo_tool", `{"value":1}`)
				return
			}
			writeSSEText(w, "done after tool")
		},
	}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "done after tool")
	require.Equal(t, 1, fx.tools.callCount())

	streamed := upstream.streamRequests()
	require.Len(t, streamed, 2)
	// The follow-up round carries the tool result back to the model.
	last := streamed[1].Messages[len(streamed[1].Messages)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, `{"value":1}`, last.Content)
}

func TestSendMessageUpstreamFailureEmitsErrorEvent(t *testing.T) {
	upstream := &upstreamResponder{failStream: true}
	fx := newFixture(t, upstream)

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(t, body, `"type":"error"`)
	require.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	// The user turn still persists; the assistant turn must not.
	require.Len(t, fx.messages.byRole(chat.MessageRoleUser), 1)
	require.Empty(t, fx.messages.byRole(chat.MessageRoleAssistant))
}

func TestSendMessagePersistenceFailureKeepsStreaming(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.messages.addErr = fmt.Errorf("disk full")

	recorder := performSend(fx, sendBody("chat-model"), regularSession())

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Hello there friend")
	require.True(t, strings.HasSuffix(recorder.Body.String(), "data: [DONE]\n\n"))
}

func TestResumeStreamWindow(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.chats.chats["chat-1"] = &chat.Chat{ID: 1, PublicID: "chat-1", UserID: "user-1", Visibility: chat.VisibilityPrivate}

	run := func(latest *chat.Message) *httptest.ResponseRecorder {
		fx.messages.latest = latest
		recorder := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(recorder)
		c.Request = httptest.NewRequest(http.MethodGet, "/chat?chatId=chat-1", nil)
		c.Set("session", regularSession())
		fx.handler.ResumeStream(c)
		return recorder
	}

	recent := run(&chat.Message{
		PublicID: "m1", ChatPublicID: "chat-1", Role: chat.MessageRoleAssistant,
		Parts: []chat.Part{{Type: "text", Text: "still warm"}}, CreatedAt: time.Now(),
	})
	require.Equal(t, http.StatusOK, recent.Code)
	require.Contains(t, recent.Body.String(), "still warm")

	stale := run(&chat.Message{
		PublicID: "m1", ChatPublicID: "chat-1", Role: chat.MessageRoleAssistant,
		Parts: []chat.Part{{Type: "text", Text: "long gone"}}, CreatedAt: time.Now().Add(-time.Minute),
	})
	require.Equal(t, http.StatusOK, stale.Code)
	require.NotContains(t, stale.Body.String(), "long gone")
	require.Contains(t, stale.Body.String(), `"result":[]`)
}

func TestFallbackTitleKeepsRuneBoundary(t *testing.T) {
	title := fallbackTitle(strings.Repeat("日", 30))

	require.LessOrEqual(t, len(title), 80)
	require.True(t, utf8.ValidString(title))
	require.Equal(t, strings.Repeat("日", 26), title)
}

func TestDeleteChatRequiresOwnership(t *testing.T) {
	upstream := &upstreamResponder{}
	fx := newFixture(t, upstream)
	fx.chats.chats["chat-1"] = &chat.Chat{ID: 1, PublicID: "chat-1", UserID: "someone-else", Visibility: chat.VisibilityPrivate}

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodDelete, "/chat?id=chat-1", nil)
	c.Set("session", regularSession())
	fx.handler.DeleteChat(c)

	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Contains(t, fx.chats.chats, "chat-1")
}
