package prompt

import (
	"context"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// ProcessorImpl implements the Processor interface
type ProcessorImpl struct {
	modules []Module
	log     zerolog.Logger
}

// NewProcessor creates a prompt processor with the standard module set.
func NewProcessor(log zerolog.Logger) *ProcessorImpl {
	processor := &ProcessorImpl{
		modules: make([]Module, 0),
		log:     log.With().Str("component", "prompt-processor").Logger(),
	}

	// Order matters: each module prepends its system message, so later
	// modules end up closer to the top of the final prompt.
	processor.RegisterModule(NewOriginHintsModule())
	processor.RegisterModule(NewReasoningModule())
	processor.RegisterModule(NewAssistantGuidanceModule())
	processor.RegisterModule(NewPreambleModule())

	return processor
}

// RegisterModule adds a module to the processor
func (p *ProcessorImpl) RegisterModule(module Module) {
	p.modules = append(p.modules, module)
	p.log.Debug().Str("module", module.Name()).Msg("registered prompt module")
}

// Process applies all relevant modules to the messages
func (p *ProcessorImpl) Process(
	ctx context.Context,
	promptCtx *Context,
	messages []openai.ChatCompletionMessage,
) ([]openai.ChatCompletionMessage, error) {
	result := messages
	appliedModules := make([]string, 0)

	for _, module := range p.modules {
		if module.ShouldApply(ctx, promptCtx, result) {
			var err error
			result, err = module.Apply(ctx, promptCtx, result)
			if err != nil {
				p.log.Error().
					Err(err).
					Str("module", module.Name()).
					Msg("failed to apply prompt module")
				return messages, err
			}
			appliedModules = append(appliedModules, module.Name())
		}
	}

	if len(appliedModules) > 0 {
		p.log.Debug().
			Strs("applied_modules", appliedModules).
			Str("chat_id", promptCtx.ChatID).
			Msg("applied prompt modules")
	}

	return result, nil
}
