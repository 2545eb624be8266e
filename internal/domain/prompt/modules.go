package prompt

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	preambleModuleName          = "preamble"
	originHintsModuleName       = "origin_hints"
	assistantGuidanceModuleName = "assistant_guidance"
	reasoningModuleName         = "reasoning"
)

const preambleText = `You are a friendly assistant. Keep your responses concise and helpful. ` +
	`When the user asks for something a tool can answer, use the tool instead of guessing.`

const reasoningText = `Think through the problem step by step before answering. ` +
	`Do not use tools; work from the conversation alone.`

// prependSystemMessage returns a copy of messages with a system message in
// front. Never mutates the input slice.
func prependSystemMessage(messages []openai.ChatCompletionMessage, content string) []openai.ChatCompletionMessage {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return messages
	}

	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	result = append(result, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: trimmed,
	})
	result = append(result, messages...)
	return result
}

// PreambleModule prepends the base persona instruction. Always applies.
type PreambleModule struct{}

func NewPreambleModule() *PreambleModule {
	return &PreambleModule{}
}

func (m *PreambleModule) Name() string {
	return preambleModuleName
}

func (m *PreambleModule) ShouldApply(_ context.Context, _ *Context, _ []openai.ChatCompletionMessage) bool {
	return true
}

func (m *PreambleModule) Apply(_ context.Context, _ *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	return prependSystemMessage(messages, preambleText), nil
}

// OriginHintsModule tells the model roughly where the request came from so
// location-dependent answers and tool calls need no follow-up question.
type OriginHintsModule struct{}

func NewOriginHintsModule() *OriginHintsModule {
	return &OriginHintsModule{}
}

func (m *OriginHintsModule) Name() string {
	return originHintsModuleName
}

func (m *OriginHintsModule) ShouldApply(_ context.Context, promptCtx *Context, _ []openai.ChatCompletionMessage) bool {
	return promptCtx.Origin.HasLocation()
}

func (m *OriginHintsModule) Apply(_ context.Context, promptCtx *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	origin := promptCtx.Origin

	var builder strings.Builder
	builder.WriteString("About the origin of the user's request:\n")
	if origin.City != "" {
		builder.WriteString(fmt.Sprintf("- city: %s\n", origin.City))
	}
	if origin.Country != "" {
		builder.WriteString(fmt.Sprintf("- country: %s\n", origin.Country))
	}
	if origin.Latitude != "" && origin.Longitude != "" {
		builder.WriteString(fmt.Sprintf("- lat: %s\n- lon: %s\n", origin.Latitude, origin.Longitude))
	}

	return prependSystemMessage(messages, builder.String()), nil
}

// AssistantGuidanceModule prepends the selected assistant's own system
// guidance. Applies only to assistant-scoped requests.
type AssistantGuidanceModule struct{}

func NewAssistantGuidanceModule() *AssistantGuidanceModule {
	return &AssistantGuidanceModule{}
}

func (m *AssistantGuidanceModule) Name() string {
	return assistantGuidanceModuleName
}

func (m *AssistantGuidanceModule) ShouldApply(_ context.Context, promptCtx *Context, _ []openai.ChatCompletionMessage) bool {
	return promptCtx.Assistant != nil && strings.TrimSpace(promptCtx.Assistant.Guidance) != ""
}

func (m *AssistantGuidanceModule) Apply(_ context.Context, promptCtx *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	return prependSystemMessage(messages, promptCtx.Assistant.Guidance), nil
}

// ReasoningModule swaps the instruction set when the reasoning model is
// selected: tools are off, so the prompt must not suggest them.
type ReasoningModule struct{}

func NewReasoningModule() *ReasoningModule {
	return &ReasoningModule{}
}

func (m *ReasoningModule) Name() string {
	return reasoningModuleName
}

func (m *ReasoningModule) ShouldApply(_ context.Context, promptCtx *Context, _ []openai.ChatCompletionMessage) bool {
	return promptCtx.Selector.IsReasoning()
}

func (m *ReasoningModule) Apply(_ context.Context, _ *Context, messages []openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, error) {
	return prependSystemMessage(messages, reasoningText), nil
}
