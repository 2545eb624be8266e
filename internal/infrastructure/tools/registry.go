package tools

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// Tool is one model-invokable capability. Execute receives the raw JSON
// argument payload produced by the model and returns a JSON result string.
type Tool interface {
	Name() string
	Definition() openai.Tool
	Execute(ctx context.Context, arguments string) (string, error)
}

// Registry holds the tool set offered to the model for one deployment.
// Registration happens at startup; lookups are read-only afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Definitions returns the tool schemas in registration order, for the
// completion request payload.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. An unknown name is reported as an error
// result rather than failing the request; the model sees the message and
// can recover.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "unknown tool: "+name, nil, "")
	}
	return tool.Execute(ctx, arguments)
}
