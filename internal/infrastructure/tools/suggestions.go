package tools

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/domain/session"
	"github.com/convohq/chat-api/internal/infrastructure/inference"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const suggestionsToolName = "request_suggestions"

// SuggestionsTool asks the completion endpoint for improvement suggestions
// on a previously created document.
type SuggestionsTool struct {
	documents *document.Service
	client    *inference.Client
	model     string
}

func NewSuggestionsTool(documents *document.Service, client *inference.Client, model string) *SuggestionsTool {
	return &SuggestionsTool{documents: documents, client: client, model: model}
}

func (t *SuggestionsTool) Name() string {
	return suggestionsToolName
}

func (t *SuggestionsTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        suggestionsToolName,
			Description: "Request writing suggestions for an existing document",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"document_id": {"type": "string", "description": "Document id returned by create_document"}
				},
				"required": ["document_id"]
			}`),
		},
	}
}

type suggestionsArgs struct {
	DocumentID string `json:"document_id"`
}

func (t *SuggestionsTool) Execute(ctx context.Context, arguments string) (string, error) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "no session for suggestions tool", nil, "")
	}

	var args suggestionsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid request_suggestions arguments", err, "")
	}

	doc, err := t.documents.Get(ctx, args.DocumentID, sess.UserID)
	if err != nil {
		return "", err
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You review documents. Reply with exactly three improvement " +
					"suggestions, one per line, no numbering.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: doc.Content,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "empty suggestions response", nil, "")
	}

	var suggestions []string
	for _, line := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			suggestions = append(suggestions, trimmed)
		}
	}

	result, err := json.Marshal(map[string]any{
		"document_id": doc.PublicID,
		"suggestions": suggestions,
	})
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to encode tool result")
	}
	return string(result), nil
}
