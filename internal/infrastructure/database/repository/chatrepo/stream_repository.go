package chatrepo

import (
	"context"
	"time"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/database/dbschema"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type StreamGormRepository struct {
	db *transaction.Database
}

var _ chat.StreamRepository = (*StreamGormRepository)(nil)

func NewStreamGormRepository(db *transaction.Database) chat.StreamRepository {
	return &StreamGormRepository{db}
}

// Create implements chat.StreamRepository.
func (repo *StreamGormRepository) Create(ctx context.Context, stream *chat.Stream) error {
	if stream.ChatID == 0 {
		var owner dbschema.Chat
		if err := repo.db.GetTx(ctx).WithContext(ctx).
			Select("id").
			Where("public_id = ?", stream.ChatPublicID).
			First(&owner).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to resolve chat for stream marker")
		}
		stream.ChatID = owner.ID
	}

	model := dbschema.NewSchemaStream(stream)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create stream marker")
	}
	stream.ID = model.ID
	stream.CreatedAt = model.CreatedAt
	return nil
}

// ListIDsByChat implements chat.StreamRepository. Ascending by creation, so
// the last element is the most recent attempt.
func (repo *StreamGormRepository) ListIDsByChat(ctx context.Context, chatPublicID string) ([]string, error) {
	var ids []string
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Stream{}).
		Where("chat_public_id = ?", chatPublicID).
		Order("created_at ASC, id ASC").
		Pluck("public_id", &ids).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list stream markers")
	}
	return ids, nil
}

// DeleteOlderThan implements chat.StreamRepository.
func (repo *StreamGormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&dbschema.Stream{})
	if result.Error != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to prune stream markers")
	}
	return result.RowsAffected, nil
}
