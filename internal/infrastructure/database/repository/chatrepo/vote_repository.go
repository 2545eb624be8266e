package chatrepo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/convohq/chat-api/internal/domain/chat"
	"github.com/convohq/chat-api/internal/infrastructure/database/dbschema"
	"github.com/convohq/chat-api/internal/infrastructure/database/transaction"
	"github.com/convohq/chat-api/internal/utils/functional"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type VoteGormRepository struct {
	db *transaction.Database
}

var _ chat.VoteRepository = (*VoteGormRepository)(nil)

func NewVoteGormRepository(db *transaction.Database) chat.VoteRepository {
	return &VoteGormRepository{db}
}

// Upsert implements chat.VoteRepository. Re-voting a message overwrites the
// previous kind.
func (repo *VoteGormRepository) Upsert(ctx context.Context, vote *chat.Vote) error {
	var owner dbschema.Chat
	if err := repo.db.GetTx(ctx).WithContext(ctx).
		Select("id").
		Where("public_id = ?", vote.ChatPublicID).
		First(&owner).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to resolve chat for vote")
	}

	model := dbschema.NewSchemaVote(vote, owner.ID)
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_public_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to upsert vote")
	}
	return nil
}

// ListByChat implements chat.VoteRepository.
func (repo *VoteGormRepository) ListByChat(ctx context.Context, chatPublicID string) ([]*chat.Vote, error) {
	var rows []*dbschema.Vote
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("chat_public_id = ?", chatPublicID).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list votes")
	}

	return functional.Map(rows, func(item *dbschema.Vote) *chat.Vote {
		return item.EtoD()
	}), nil
}
