package documentrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/convohq/chat-api/internal/domain/document"
	"github.com/convohq/chat-api/internal/infrastructure/database/dbschema"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type DocumentGormRepository struct {
	db *transaction.Database
}

var _ document.Repository = (*DocumentGormRepository)(nil)

func NewDocumentGormRepository(db *transaction.Database) document.Repository {
	return &DocumentGormRepository{db}
}

// Save implements document.Repository.
func (repo *DocumentGormRepository) Save(ctx context.Context, doc *document.Document) error {
	model := dbschema.NewSchemaDocument(doc)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to save document")
	}
	doc.ID = model.ID
	doc.CreatedAt = model.CreatedAt
	return nil
}

// FindLatest implements document.Repository.
func (repo *DocumentGormRepository) FindLatest(ctx context.Context, publicID string) (*document.Document, error) {
	var model dbschema.Document
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("public_id = ?", publicID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load document")
	}
	return model.EtoD(), nil
}
