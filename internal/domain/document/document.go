package document

import (
	"context"
	"time"
)

type Kind string

const (
	KindText Kind = "text"
	KindCode Kind = "code"
)

// IsValid reports whether k is a supported artifact kind.
func (k Kind) IsValid() bool {
	return k == KindText || k == KindCode
}

// Document is an artifact written by the document tools during generation.
// Updates append a new version row under the same public id; reads return
// the latest version.
type Document struct {
	ID        uint      `json:"-"`
	PublicID  string    `json:"id"`
	Title     string    `json:"title"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	// Save appends a version row. The same public id may appear many times;
	// version order is creation time.
	Save(ctx context.Context, doc *Document) error
	// FindLatest returns the newest version for the public id, or nil when
	// the id is unknown.
	FindLatest(ctx context.Context, publicID string) (*Document, error)
}
