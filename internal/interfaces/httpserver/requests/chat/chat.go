package chatrequests

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

var validate = validator.New()

// SendMessageRequest is the POST /chat body: one user turn aimed at a new or
// existing chat.
type SendMessageRequest struct {
	ID                     string         `json:"id" validate:"required,uuid"`
	Message                MessagePayload `json:"message" validate:"required"`
	SelectedChatModel      string         `json:"selectedChatModel" validate:"required"`
	SelectedVisibilityType string         `json:"selectedVisibilityType" validate:"required,oneof=public private"`
}

type MessagePayload struct {
	ID          string              `json:"id" validate:"required,uuid"`
	CreatedAt   time.Time           `json:"createdAt"`
	Role        string              `json:"role" validate:"required,eq=user"`
	Content     string              `json:"content" validate:"omitempty,min=1,max=2000"`
	Parts       []PartPayload       `json:"parts" validate:"required,min=1,dive"`
	Attachments []AttachmentPayload `json:"experimental_attachments" validate:"omitempty,dive"`
}

type PartPayload struct {
	Type string `json:"type" validate:"required,eq=text"`
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

type AttachmentPayload struct {
	URL         string `json:"url" validate:"required,url"`
	Name        string `json:"name" validate:"required,min=1,max=2000"`
	ContentType string `json:"contentType" validate:"required,oneof=image/png image/jpg image/jpeg"`
}

// ValidatedSendMessage is the typed, constrained form handed to the pipeline.
// The model selector is decoded here, once; nothing downstream re-parses the
// raw model string.
type ValidatedSendMessage struct {
	ChatID     string
	Selector   model.Selector
	Visibility chat.Visibility
	Message    *chat.Message
}

// Validate checks the request constraints and decodes it into pipeline form.
func (r *SendMessageRequest) Validate(ctx context.Context) (*ValidatedSendMessage, error) {
	if err := validate.Struct(r); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	}

	selector, err := model.ParseSelector(r.SelectedChatModel)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	}

	parts := make([]chat.Part, 0, len(r.Message.Parts))
	for _, p := range r.Message.Parts {
		parts = append(parts, chat.Part{Type: p.Type, Text: p.Text})
	}

	var attachments []chat.Attachment
	for _, a := range r.Message.Attachments {
		attachments = append(attachments, chat.Attachment{
			URL:         a.URL,
			Name:        a.Name,
			ContentType: a.ContentType,
		})
	}

	createdAt := r.Message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &ValidatedSendMessage{
		ChatID:     r.ID,
		Selector:   selector,
		Visibility: chat.Visibility(r.SelectedVisibilityType),
		Message: &chat.Message{
			PublicID:     r.Message.ID,
			ChatPublicID: r.ID,
			Role:         chat.MessageRoleUser,
			Parts:        parts,
			Attachments:  attachments,
			CreatedAt:    createdAt,
		},
	}, nil
}

// UpdateVisibilityRequest is the PATCH /chat/:id/visibility body.
type UpdateVisibilityRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=public private"`
}

func (r *UpdateVisibilityRequest) Validate(ctx context.Context) (chat.Visibility, error) {
	if err := validate.Struct(r); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	}
	return chat.Visibility(r.Visibility), nil
}

// VoteRequest is the PATCH /vote body.
type VoteRequest struct {
	ChatID    string `json:"chatId" validate:"required,uuid"`
	MessageID string `json:"messageId" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=up down"`
}

func (r *VoteRequest) Validate(ctx context.Context) (*chat.Vote, error) {
	if err := validate.Struct(r); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	}
	return &chat.Vote{
		ChatPublicID:    r.ChatID,
		MessagePublicID: r.MessageID,
		Kind:            chat.VoteKind(r.Type),
	}, nil
}
