package tools

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/domain/session"
	"github.com/convohq/chat-api/internal/utils/idgen"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

const (
	createDocumentToolName = "create_document"
	updateDocumentToolName = "update_document"
)

// CreateDocumentTool writes a new artifact version owned by the caller.
type CreateDocumentTool struct {
	documents *document.Service
}

func NewCreateDocumentTool(documents *document.Service) *CreateDocumentTool {
	return &CreateDocumentTool{documents: documents}
}

func (t *CreateDocumentTool) Name() string {
	return createDocumentToolName
}

func (t *CreateDocumentTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        createDocumentToolName,
			Description: "Create a document artifact the user can open alongside the chat",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title":   {"type": "string", "description": "Document title"},
					"kind":    {"type": "string", "enum": ["text", "code"]},
					"content": {"type": "string", "description": "Initial document content"}
				},
				"required": ["title", "kind", "content"]
			}`),
		},
	}
}

type createDocumentArgs struct {
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (t *CreateDocumentTool) Execute(ctx context.Context, arguments string) (string, error) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "no session for document tool", nil, "")
	}

	var args createDocumentArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid create_document arguments", err, "")
	}

	publicID, err := idgen.GenerateSecureID("doc", 16)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to generate document id")
	}

	doc := &document.Document{
		PublicID: publicID,
		Title:    args.Title,
		Kind:     document.Kind(args.Kind),
		Content:  args.Content,
		UserID:   sess.UserID,
	}
	if err := t.documents.Create(ctx, doc); err != nil {
		return "", err
	}

	result, err := json.Marshal(map[string]string{
		"id":    doc.PublicID,
		"title": doc.Title,
		"kind":  string(doc.Kind),
	})
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to encode tool result")
	}
	return string(result), nil
}

// UpdateDocumentTool appends a new version to an existing artifact.
type UpdateDocumentTool struct {
	documents *document.Service
}

func NewUpdateDocumentTool(documents *document.Service) *UpdateDocumentTool {
	return &UpdateDocumentTool{documents: documents}
}

func (t *UpdateDocumentTool) Name() string {
	return updateDocumentToolName
}

func (t *UpdateDocumentTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        updateDocumentToolName,
			Description: "Replace the content of an existing document artifact",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id":      {"type": "string", "description": "Document id returned by create_document"},
					"content": {"type": "string", "description": "New document content"}
				},
				"required": ["id", "content"]
			}`),
		},
	}
}

type updateDocumentArgs struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (t *UpdateDocumentTool) Execute(ctx context.Context, arguments string) (string, error) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "no session for document tool", nil, "")
	}

	var args updateDocumentArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "invalid update_document arguments", err, "")
	}

	doc, err := t.documents.Update(ctx, args.ID, sess.UserID, args.Content)
	if err != nil {
		return "", err
	}

	result, err := json.Marshal(map[string]string{
		"id":    doc.PublicID,
		"title": doc.Title,
		"kind":  string(doc.Kind),
	})
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to encode tool result")
	}
	return string(result), nil
}
