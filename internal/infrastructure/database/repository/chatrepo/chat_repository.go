package chatrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/database/dbschema"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.ChatRepository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *transaction.Database) chat.ChatRepository {
	return &ChatGormRepository{db}
}

// Upsert implements chat.ChatRepository. ON CONFLICT DO NOTHING on the
// public id makes concurrent first turns converge on a single row.
func (repo *ChatGormRepository) Upsert(ctx context.Context, c *chat.Chat) error {
	model := dbschema.NewSchemaChat(c)
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "public_id"}},
			DoNothing: true,
		}).
		Create(model).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to upsert chat")
	}

	// A swallowed conflict leaves model.ID zero; read the winning row back
	// so callers always see the persisted identity.
	if model.ID == 0 {
		var existing dbschema.Chat
		if err := repo.db.GetTx(ctx).WithContext(ctx).
			Where("public_id = ?", c.PublicID).
			First(&existing).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load upserted chat")
		}
		model = &existing
	}

	c.ID = model.ID
	c.Title = model.Title
	c.UserID = model.UserID
	c.Visibility = chat.Visibility(model.Visibility)
	c.CreatedAt = model.CreatedAt
	return nil
}

// FindByPublicID implements chat.ChatRepository.
func (repo *ChatGormRepository) FindByPublicID(ctx context.Context, publicID string) (*chat.Chat, error) {
	var model dbschema.Chat
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", err, "")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find chat")
	}
	return model.EtoD(), nil
}

// UpdateVisibility implements chat.ChatRepository.
func (repo *ChatGormRepository) UpdateVisibility(ctx context.Context, publicID string, visibility chat.Visibility) error {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Chat{}).
		Where("public_id = ?", publicID).
		Update("visibility", string(visibility))
	if result.Error != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to update chat visibility")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", nil, "")
	}
	return nil
}

// Delete implements chat.ChatRepository. Messages, votes and stream markers
// go away in the same transaction.
func (repo *ChatGormRepository) Delete(ctx context.Context, publicID string) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)

		var model dbschema.Chat
		if err := tx.Where("public_id = ?", publicID).First(&model).Error; err != nil {
			return err
		}

		if err := tx.Where("chat_id = ?", model.ID).Delete(&dbschema.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", model.ID).Delete(&dbschema.Stream{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", model.ID).Delete(&dbschema.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete chat")
	}
	return nil
}
