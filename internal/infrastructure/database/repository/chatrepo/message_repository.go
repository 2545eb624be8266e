package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/database/dbschema"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/utils/functional"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ chat.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) chat.MessageRepository {
	return &MessageGormRepository{db}
}

// Add implements chat.MessageRepository. The chat owner's id is denormalized
// onto the row so quota counting needs no join.
func (repo *MessageGormRepository) Add(ctx context.Context, message *chat.Message) error {
	var owner dbschema.Chat
	if err := repo.db.GetTx(ctx).WithContext(ctx).
		Select("id", "user_id").
		Where("public_id = ?", message.ChatPublicID).
		First(&owner).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to resolve chat for message")
	}

	message.ChatID = owner.ID
	model := dbschema.NewSchemaMessage(message, owner.UserID)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to add message")
	}

	message.ID = model.ID
	message.CreatedAt = model.CreatedAt
	return nil
}

// ListByChat implements chat.MessageRepository.
func (repo *MessageGormRepository) ListByChat(ctx context.Context, chatPublicID string) ([]*chat.Message, error) {
	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("chat_public_id = ?", chatPublicID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list messages")
	}

	return functional.Map(rows, func(item *dbschema.Message) *chat.Message {
		return item.EtoD()
	}), nil
}

// CountUserMessagesSince implements chat.MessageRepository.
func (repo *MessageGormRepository) CountUserMessagesSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("user_id = ? AND role = ? AND created_at >= ?", userID, string(chat.MessageRoleUser), since).
		Count(&count).Error
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to count user messages")
	}
	return count, nil
}

// LatestByChat implements chat.MessageRepository. Returns (nil, nil) for an
// empty chat.
func (repo *MessageGormRepository) LatestByChat(ctx context.Context, chatPublicID string) (*chat.Message, error) {
	var model dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("chat_public_id = ?", chatPublicID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load latest message")
	}
	return model.EtoD(), nil
}
