package chathandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/infrastructure/logger"
	"github.com/convohq/chat-api/internal/interfaces/httpserver/middlewares"
)

// StreamEvent is one event written to the response stream.
type StreamEvent struct {
	Type    string `json:"type"`
	Delta   string `json:"delta,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	eventTextDelta      = "text-delta"
	eventReasoningDelta = "reasoning-delta"
	eventError          = "error"
)

var errStreamClosed = errors.New("stream already closed")

// transport is the server-to-client event stream. Writes happen from the
// request goroutine only; Close is idempotent and safe to call from the
// cleanup path regardless of how streaming ended.
type transport struct {
	reqCtx  *gin.Context
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
}

// newTransport commits SSE headers and returns the open stream.
func newTransport(reqCtx *gin.Context) *transport {
	flusher, _ := middlewares.PrepareSSE(reqCtx)
	reqCtx.Writer.WriteHeaderNow()
	return &transport{reqCtx: reqCtx, flusher: flusher}
}

// WriteEvent writes one event. Writing to a closed or failed transport is a
// no-op error; callers on the error path must not escalate it.
func (t *transport) WriteEvent(event StreamEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errStreamClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := t.reqCtx.Writer.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
		return err
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
	return nil
}

// Close terminates the stream with the done marker. Called exactly once from
// the cleanup phase; repeated calls are ignored.
func (t *transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true

	if _, err := t.reqCtx.Writer.Write([]byte("data: [DONE]\n\n")); err != nil {
		log := logger.GetLogger()
		log.Warn().Err(err).Msg("failed to write stream terminator")
		return
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
}
