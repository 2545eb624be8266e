package dbschema

import (
	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/database"

	"gorm.io/datatypes"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Chat{})
	database.RegisterSchemaForAutoMigrate(Message{})
	database.RegisterSchemaForAutoMigrate(Stream{})
	database.RegisterSchemaForAutoMigrate(Vote{})
}

// Chat represents the database schema for chats
type Chat struct {
	BaseModel
	PublicID   string `gorm:"type:varchar(50);uniqueIndex;not null"`
	Title      string `gorm:"type:varchar(256);not null"`
	UserID     string `gorm:"type:varchar(64);index;not null"`
	Visibility string `gorm:"type:varchar(20);not null;default:'private'"`

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	Streams  []Stream  `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	Votes    []Vote    `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

// Message represents the database schema for chat turns. Parts and
// attachments are stored as JSONB documents.
type Message struct {
	BaseModel
	PublicID     string                                `gorm:"type:varchar(50);uniqueIndex;not null"`
	ChatID       uint                                  `gorm:"index:idx_message_chat_created;not null"`
	ChatPublicID string                                `gorm:"type:varchar(50);index;not null"`
	UserID       string                                `gorm:"type:varchar(64);index:idx_message_user_role_created;not null"`
	Role         string                                `gorm:"type:varchar(20);index:idx_message_user_role_created;not null"`
	Parts        datatypes.JSONType[[]chat.Part]       `gorm:"type:jsonb"`
	Attachments  datatypes.JSONType[[]chat.Attachment] `gorm:"type:jsonb"`
}

// Stream represents a resumption marker row.
type Stream struct {
	BaseModel
	PublicID     string `gorm:"type:varchar(50);uniqueIndex;not null"`
	ChatID       uint   `gorm:"index;not null"`
	ChatPublicID string `gorm:"type:varchar(50);index;not null"`
}

// Vote represents a user's rating of an assistant turn. One row per message.
type Vote struct {
	BaseModel
	ChatID          uint   `gorm:"index;not null"`
	ChatPublicID    string `gorm:"type:varchar(50);index;not null"`
	MessagePublicID string `gorm:"type:varchar(50);uniqueIndex;not null"`
	Kind            string `gorm:"type:varchar(10);not null"`
}

// NewSchemaChat creates a database schema from a domain chat
func NewSchemaChat(c *chat.Chat) *Chat {
	return &Chat{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
		},
		PublicID:   c.PublicID,
		Title:      c.Title,
		UserID:     c.UserID,
		Visibility: string(c.Visibility),
	}
}

// EtoD converts database schema to domain chat (Entity to Domain)
func (c *Chat) EtoD() *chat.Chat {
	return &chat.Chat{
		ID:         c.ID,
		PublicID:   c.PublicID,
		Title:      c.Title,
		UserID:     c.UserID,
		Visibility: chat.Visibility(c.Visibility),
		CreatedAt:  c.CreatedAt,
	}
}

// NewSchemaMessage creates a database schema from a domain message. The
// owning user id is denormalized onto the row for quota counting.
func NewSchemaMessage(m *chat.Message, userID string) *Message {
	return &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
		},
		PublicID:     m.PublicID,
		ChatID:       m.ChatID,
		ChatPublicID: m.ChatPublicID,
		UserID:       userID,
		Role:         string(m.Role),
		Parts:        datatypes.NewJSONType(m.Parts),
		Attachments:  datatypes.NewJSONType(m.Attachments),
	}
}

// EtoD converts database schema to domain message
func (m *Message) EtoD() *chat.Message {
	return &chat.Message{
		ID:           m.ID,
		PublicID:     m.PublicID,
		ChatID:       m.ChatID,
		ChatPublicID: m.ChatPublicID,
		Role:         chat.MessageRole(m.Role),
		Parts:        m.Parts.Data(),
		Attachments:  m.Attachments.Data(),
		CreatedAt:    m.CreatedAt,
	}
}

// NewSchemaStream creates a database schema from a domain stream marker
func NewSchemaStream(s *chat.Stream) *Stream {
	return &Stream{
		BaseModel: BaseModel{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
		},
		PublicID:     s.PublicID,
		ChatID:       s.ChatID,
		ChatPublicID: s.ChatPublicID,
	}
}

// EtoD converts database schema to domain stream marker
func (s *Stream) EtoD() *chat.Stream {
	return &chat.Stream{
		ID:           s.ID,
		PublicID:     s.PublicID,
		ChatID:       s.ChatID,
		ChatPublicID: s.ChatPublicID,
		CreatedAt:    s.CreatedAt,
	}
}

// NewSchemaVote creates a database schema from a domain vote
func NewSchemaVote(v *chat.Vote, chatID uint) *Vote {
	return &Vote{
		ChatID:          chatID,
		ChatPublicID:    v.ChatPublicID,
		MessagePublicID: v.MessagePublicID,
		Kind:            string(v.Kind),
	}
}

// EtoD converts database schema to domain vote
func (v *Vote) EtoD() *chat.Vote {
	return &chat.Vote{
		ChatPublicID:    v.ChatPublicID,
		MessagePublicID: v.MessagePublicID,
		Kind:            chat.VoteKind(v.Kind),
	}
}
