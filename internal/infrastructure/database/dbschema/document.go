package dbschema

import (
	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Document{})
}

// Document represents one version of a tool-written artifact. The public id
// repeats across versions; (public_id, created_at) orders them.
type Document struct {
	BaseModel
	PublicID string `gorm:"type:varchar(50);index:idx_document_public_created;not null"`
	Title    string `gorm:"type:varchar(256);not null"`
	Kind     string `gorm:"type:varchar(20);not null"`
	Content  string `gorm:"type:text"`
	UserID   string `gorm:"type:varchar(64);index;not null"`
}

// NewSchemaDocument creates a database schema from a domain document
func NewSchemaDocument(d *document.Document) *Document {
	return &Document{
		BaseModel: BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt,
		},
		PublicID: d.PublicID,
		Title:    d.Title,
		Kind:     string(d.Kind),
		Content:  d.Content,
		UserID:   d.UserID,
	}
}

// EtoD converts database schema to domain document
func (d *Document) EtoD() *document.Document {
	return &document.Document{
		ID:        d.ID,
		PublicID:  d.PublicID,
		Title:     d.Title,
		Kind:      document.Kind(d.Kind),
		Content:   d.Content,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
	}
}
