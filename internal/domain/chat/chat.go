package chat

import (
	"context"
	"time"
)

// ===============================================
// Chat Types
// ===============================================

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// IsValid reports whether v is one of the two accepted visibility values.
func (v Visibility) IsValid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Chat is a persisted conversation owned by one user. Created on the first
// turn; only the visibility flag is mutable afterwards.
type Chat struct {
	ID         uint       `json:"-"`
	PublicID   string     `json:"id"`
	Title      string     `json:"title"`
	UserID     string     `json:"-"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Part is one ordered content fragment of a message.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Attachment references user-provided media by URL; binary content is not
// stored by this service.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// Message is one turn within a chat. Immutable once written; ordering is by
// creation time ascending.
type Message struct {
	ID           uint         `json:"-"`
	PublicID     string       `json:"id"`
	ChatID       uint         `json:"-"`
	ChatPublicID string       `json:"chat_id"`
	Role         MessageRole  `json:"role"`
	Parts        []Part       `json:"parts"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, part := range m.Parts {
		if part.Type == "text" {
			out += part.Text
		}
	}
	return out
}

// Stream is a resumption marker: one row per generation attempt, letting a
// later request discover the most recent attempt for a chat.
type Stream struct {
	ID           uint      `json:"-"`
	PublicID     string    `json:"id"`
	ChatID       uint      `json:"-"`
	ChatPublicID string    `json:"chat_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type VoteKind string

const (
	VoteUp   VoteKind = "up"
	VoteDown VoteKind = "down"
)

// Vote is a user's rating of an assistant message.
type Vote struct {
	ChatPublicID    string   `json:"chat_id"`
	MessagePublicID string   `json:"message_id"`
	Kind            VoteKind `json:"kind"`
}

// ===============================================
// Repositories
// ===============================================

type ChatRepository interface {
	// Upsert inserts the chat, or leaves an existing row with the same
	// public id untouched. Closes the check-then-create race between two
	// concurrent first turns.
	Upsert(ctx context.Context, chat *Chat) error
	FindByPublicID(ctx context.Context, publicID string) (*Chat, error)
	UpdateVisibility(ctx context.Context, publicID string, visibility Visibility) error
	// Delete removes the chat and cascades to its messages, votes and
	// stream markers.
	Delete(ctx context.Context, publicID string) error
}

type MessageRepository interface {
	Add(ctx context.Context, message *Message) error
	ListByChat(ctx context.Context, chatPublicID string) ([]*Message, error)
	// CountUserMessagesSince counts user-role messages authored by userID
	// created at or after since, across all of the user's chats.
	CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int64, error)
	LatestByChat(ctx context.Context, chatPublicID string) (*Message, error)
}

type StreamRepository interface {
	Create(ctx context.Context, stream *Stream) error
	ListIDsByChat(ctx context.Context, chatPublicID string) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type VoteRepository interface {
	Upsert(ctx context.Context, vote *Vote) error
	ListByChat(ctx context.Context, chatPublicID string) ([]*Vote, error)
}
