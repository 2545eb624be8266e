package document

import (
	"context"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// Service handles business logic for document artifacts.
type Service struct {
	documents Repository
}

func NewService(documents Repository) *Service {
	return &Service{documents: documents}
}

// Create writes the first version of a new artifact.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if !doc.Kind.IsValid() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid document kind", nil, "")
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create document")
	}
	return nil
}

// Update appends a new version to an existing artifact owned by the user.
func (s *Service) Update(ctx context.Context, publicID, userID, content string) (*Document, error) {
	latest, err := s.Get(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	next := &Document{
		PublicID: latest.PublicID,
		Title:    latest.Title,
		Kind:     latest.Kind,
		Content:  content,
		UserID:   latest.UserID,
	}
	if err := s.documents.Save(ctx, next); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update document")
	}
	return next, nil
}

// Get returns the latest version of an artifact owned by the user.
func (s *Service) Get(ctx context.Context, publicID, userID string) (*Document, error) {
	latest, err := s.documents.FindLatest(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load document")
	}
	if latest == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "document not found", nil, "")
	}
	if latest.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "not the document owner", nil, "")
	}
	return latest, nil
}
