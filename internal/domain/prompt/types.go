package prompt

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/domain/model"
)

// Context carries the per-request inputs that shape the system prompt.
type Context struct {
	UserID    string
	ChatID    string
	Selector  model.Selector
	Assistant *model.Assistant
	Origin    Origin
}

// Origin is the approximate request origin forwarded by the edge proxy.
// Fields are best effort; any of them may be empty.
type Origin struct {
	Latitude  string
	Longitude string
	City      string
	Country   string
}

// HasLocation reports whether enough origin data exists to hint the model.
func (o Origin) HasLocation() bool {
	return o.City != "" || o.Country != "" || (o.Latitude != "" && o.Longitude != "")
}

// Module is one conditional contributor to the composed system prompt.
type Module interface {
	// Name returns the module identifier
	Name() string

	// ShouldApply determines if this module should be applied based on context
	ShouldApply(ctx context.Context, promptCtx *Context, messages []openai.ChatCompletionMessage) bool

	// Apply modifies the messages array by adding or modifying prompts
	Apply(ctx context.Context, promptCtx *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error)
}

// Processor orchestrates prompt composition by applying conditional modules
type Processor interface {
	Process(ctx context.Context, promptCtx *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error)
}
