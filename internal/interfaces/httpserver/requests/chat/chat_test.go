package chatrequests

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

func validRequest() *SendMessageRequest {
	return &SendMessageRequest{
		ID: "11111111-1111-1111-1111-111111111111",
		Message: MessagePayload{
			ID:        "22222222-2222-2222-2222-222222222222",
			CreatedAt: time.Now(),
			Role:      "user",
			Parts: []PartPayload{
				{Type: "text", Text: "hi"},
			},
		},
		SelectedChatModel:      "chat-model",
		SelectedVisibilityType: "private",
	}
}

func TestValidateSendMessage(t *testing.T) {
	got, err := validRequest().Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.ChatID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("chat id = %q", got.ChatID)
	}
	if got.Selector.Kind != model.SelectorBase || got.Selector.BaseID != model.BaseChatModel {
		t.Errorf("selector = %+v", got.Selector)
	}
	if got.Visibility != chat.VisibilityPrivate {
		t.Errorf("visibility = %q", got.Visibility)
	}
	if got.Message.Role != chat.MessageRoleUser {
		t.Errorf("role = %q", got.Message.Role)
	}
	if got.Message.Text() != "hi" {
		t.Errorf("text = %q", got.Message.Text())
	}
}

func TestValidateSendMessageAssistantModel(t *testing.T) {
	req := validRequest()
	req.SelectedChatModel = "assistant-travel-guide"

	got, err := req.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Selector.Kind != model.SelectorAssistant || got.Selector.AssistantID != "travel-guide" {
		t.Errorf("selector = %+v", got.Selector)
	}
}

func TestValidateSendMessageRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SendMessageRequest)
	}{
		{
			name:   "malformed chat id",
			mutate: func(r *SendMessageRequest) { r.ID = "not-a-uuid" },
		},
		{
			name:   "malformed message id",
			mutate: func(r *SendMessageRequest) { r.Message.ID = "123" },
		},
		{
			name:   "assistant role",
			mutate: func(r *SendMessageRequest) { r.Message.Role = "assistant" },
		},
		{
			name:   "no parts",
			mutate: func(r *SendMessageRequest) { r.Message.Parts = nil },
		},
		{
			name: "oversized text",
			mutate: func(r *SendMessageRequest) {
				r.Message.Parts[0].Text = strings.Repeat("a", 2001)
			},
		},
		{
			name:   "empty text part",
			mutate: func(r *SendMessageRequest) { r.Message.Parts[0].Text = "" },
		},
		{
			name:   "unknown model",
			mutate: func(r *SendMessageRequest) { r.SelectedChatModel = "gpt-4" },
		},
		{
			name:   "bad visibility",
			mutate: func(r *SendMessageRequest) { r.SelectedVisibilityType = "unlisted" },
		},
		{
			name: "disallowed attachment content type",
			mutate: func(r *SendMessageRequest) {
				r.Message.Attachments = []AttachmentPayload{
					{URL: "https://cdn.example.com/a.gif", Name: "a.gif", ContentType: "image/gif"},
				}
			},
		},
		{
			name: "attachment missing url",
			mutate: func(r *SendMessageRequest) {
				r.Message.Attachments = []AttachmentPayload{
					{Name: "a.png", ContentType: "image/png"},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			_, err := req.Validate(context.Background())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
				t.Errorf("expected validation error type, got %v", err)
			}
		})
	}
}

func TestValidateSendMessageAcceptsAttachments(t *testing.T) {
	req := validRequest()
	req.Message.Attachments = []AttachmentPayload{
		{URL: "https://cdn.example.com/a.png", Name: "a.png", ContentType: "image/png"},
		{URL: "https://cdn.example.com/b.jpeg", Name: "b.jpeg", ContentType: "image/jpeg"},
	}

	got, err := req.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(got.Message.Attachments) != 2 {
		t.Errorf("attachments = %v", got.Message.Attachments)
	}
}

func TestValidateVoteRequest(t *testing.T) {
	vote, err := (&VoteRequest{
		ChatID:    "11111111-1111-1111-1111-111111111111",
		MessageID: "msg_abc",
		Type:      "up",
	}).Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if vote.Kind != chat.VoteUp {
		t.Errorf("kind = %q", vote.Kind)
	}

	_, err = (&VoteRequest{
		ChatID:    "11111111-1111-1111-1111-111111111111",
		MessageID: "msg_abc",
		Type:      "sideways",
	}).Validate(context.Background())
	if err == nil {
		t.Error("expected rejection of unknown vote type")
	}
}
