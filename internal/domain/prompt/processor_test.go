package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/domain/model"
)

func userMessage(content string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: content},
	}
}

func TestPreambleModule(t *testing.T) {
	module := NewPreambleModule()
	ctx := context.Background()
	promptCtx := &Context{UserID: "user-1", ChatID: "chat-1"}

	if !module.ShouldApply(ctx, promptCtx, userMessage("hi")) {
		t.Fatal("preamble should always apply")
	}

	result, err := module.Apply(ctx, promptCtx, userMessage("hi"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	if result[0].Role != openai.ChatMessageRoleSystem {
		t.Error("first message should be system role")
	}
	if !strings.Contains(result[0].Content, "friendly assistant") {
		t.Error("preamble text missing from system prompt")
	}
}

func TestOriginHintsModule(t *testing.T) {
	module := NewOriginHintsModule()
	ctx := context.Background()

	tests := []struct {
		name        string
		origin      Origin
		shouldApply bool
		wantFragment string
	}{
		{
			name:         "city and country",
			origin:       Origin{City: "Berlin", Country: "DE"},
			shouldApply:  true,
			wantFragment: "Berlin",
		},
		{
			name:         "coordinates only",
			origin:       Origin{Latitude: "52.52", Longitude: "13.40"},
			shouldApply:  true,
			wantFragment: "52.52",
		},
		{
			name:        "latitude without longitude",
			origin:      Origin{Latitude: "52.52"},
			shouldApply: false,
		},
		{
			name:        "no origin data",
			origin:      Origin{},
			shouldApply: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promptCtx := &Context{Origin: tt.origin}
			got := module.ShouldApply(ctx, promptCtx, userMessage("weather?"))
			if got != tt.shouldApply {
				t.Fatalf("ShouldApply = %v, want %v", got, tt.shouldApply)
			}
			if !got {
				return
			}
			result, err := module.Apply(ctx, promptCtx, userMessage("weather?"))
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !strings.Contains(result[0].Content, tt.wantFragment) {
				t.Errorf("origin hint %q missing from %q", tt.wantFragment, result[0].Content)
			}
		})
	}
}

func TestAssistantGuidanceModule(t *testing.T) {
	module := NewAssistantGuidanceModule()
	ctx := context.Background()

	withGuidance := &Context{Assistant: &model.Assistant{ID: "coach", Guidance: "You are a running coach."}}
	if !module.ShouldApply(ctx, withGuidance, userMessage("plan my week")) {
		t.Error("should apply when assistant guidance is set")
	}

	result, err := module.Apply(ctx, withGuidance, userMessage("plan my week"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !strings.Contains(result[0].Content, "running coach") {
		t.Error("assistant guidance missing from system prompt")
	}

	noAssistant := &Context{}
	if module.ShouldApply(ctx, noAssistant, userMessage("plan my week")) {
		t.Error("should not apply without an assistant")
	}

	blankGuidance := &Context{Assistant: &model.Assistant{ID: "coach", Guidance: "  "}}
	if module.ShouldApply(ctx, blankGuidance, userMessage("plan my week")) {
		t.Error("should not apply with blank guidance")
	}
}

func TestProcessorComposesInOrder(t *testing.T) {
	processor := NewProcessor(zerolog.Nop())
	ctx := context.Background()

	sel, err := model.ParseSelector(model.BaseChatModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	promptCtx := &Context{
		UserID:    "user-1",
		ChatID:    "chat-1",
		Selector:  sel,
		Assistant: &model.Assistant{ID: "coach", Guidance: "You are a running coach."},
		Origin:    Origin{City: "Berlin", Country: "DE"},
	}

	result, err := processor.Process(ctx, promptCtx, userMessage("plan my week"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// preamble first, then assistant guidance, then origin hints, then the
	// original user turn.
	if len(result) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(result))
	}
	if !strings.Contains(result[0].Content, "friendly assistant") {
		t.Errorf("message 0 should be the preamble, got %q", result[0].Content)
	}
	if !strings.Contains(result[1].Content, "running coach") {
		t.Errorf("message 1 should be assistant guidance, got %q", result[1].Content)
	}
	if !strings.Contains(result[2].Content, "Berlin") {
		t.Errorf("message 2 should be origin hints, got %q", result[2].Content)
	}
	if result[3].Role != openai.ChatMessageRoleUser {
		t.Error("last message should be the user turn")
	}
}

func TestProcessorReasoningModel(t *testing.T) {
	processor := NewProcessor(zerolog.Nop())
	ctx := context.Background()

	sel, err := model.ParseSelector(model.BaseReasoningModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := processor.Process(ctx, &Context{Selector: sel}, userMessage("prove it"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	found := false
	for _, msg := range result {
		if msg.Role == openai.ChatMessageRoleSystem && strings.Contains(msg.Content, "step by step") {
			found = true
		}
	}
	if !found {
		t.Error("reasoning instruction missing for reasoning model")
	}
}
