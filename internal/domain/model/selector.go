package model

import (
	"fmt"
	"strings"
)

// Base model identifiers served by the default provider.
const (
	BaseChatModel      = "chat-model"
	BaseReasoningModel = "chat-model-reasoning"
)

// AssistantModelPrefix is the naming convention for assistant-scoped
// synthetic model identifiers, e.g. "assistant-travel-guide".
const AssistantModelPrefix = "assistant-"

type SelectorKind string

const (
	SelectorBase      SelectorKind = "base"
	SelectorAssistant SelectorKind = "assistant"
)

// Selector is the decoded form of a requested model identifier: either one
// of the fixed base models or an assistant-scoped model. It is decoded once
// at the validation boundary; nothing downstream re-parses the raw string.
type Selector struct {
	Kind        SelectorKind
	BaseID      string
	AssistantID string
}

// ParseSelector decodes a raw model identifier into a Selector.
func ParseSelector(raw string) (Selector, error) {
	switch raw {
	case BaseChatModel, BaseReasoningModel:
		return Selector{Kind: SelectorBase, BaseID: raw}, nil
	}

	if assistantID, found := strings.CutPrefix(raw, AssistantModelPrefix); found && assistantID != "" {
		return Selector{Kind: SelectorAssistant, AssistantID: assistantID}, nil
	}

	return Selector{}, fmt.Errorf("unknown model identifier: %q", raw)
}

// ModelID returns the canonical identifier string for the selector.
func (s Selector) ModelID() string {
	if s.Kind == SelectorAssistant {
		return AssistantModelPrefix + s.AssistantID
	}
	return s.BaseID
}

// IsReasoning reports whether the reasoning-mode base model was selected.
// Tool access is entirely disabled for it.
func (s Selector) IsReasoning() bool {
	return s.Kind == SelectorBase && s.BaseID == BaseReasoningModel
}
