package chat

import (
	"context"
	"time"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// ChatService handles business logic for chats, messages, votes and
// resumption markers.
type ChatService struct {
	chats    ChatRepository
	messages MessageRepository
	streams  StreamRepository
	votes    VoteRepository
}

// NewChatService creates a new chat service
func NewChatService(chats ChatRepository, messages MessageRepository, streams StreamRepository, votes VoteRepository) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		streams:  streams,
		votes:    votes,
	}
}

// CreateChat persists a chat via idempotent upsert keyed on the public id.
// Two concurrent first turns for the same id cannot both insert.
func (s *ChatService) CreateChat(ctx context.Context, chat *Chat) (*Chat, error) {
	if !chat.Visibility.IsValid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid visibility", nil, "")
	}
	if err := s.chats.Upsert(ctx, chat); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create chat")
	}
	return chat, nil
}

// GetChat retrieves a chat by public id without any ownership check.
func (s *ChatService) GetChat(ctx context.Context, publicID string) (*Chat, error) {
	chat, err := s.chats.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	return chat, nil
}

// GetOwnedChat retrieves a chat and verifies ownership.
func (s *ChatService) GetOwnedChat(ctx context.Context, publicID, userID string) (*Chat, error) {
	chat, err := s.GetChat(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "not the chat owner", nil, "")
	}
	return chat, nil
}

// GetReadableChat retrieves a chat the user may read: owned or public.
func (s *ChatService) GetReadableChat(ctx context.Context, publicID, userID string) (*Chat, error) {
	chat, err := s.GetChat(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID && chat.Visibility != VisibilityPublic {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "not the chat owner", nil, "")
	}
	return chat, nil
}

// DeleteChat deletes an owned chat, cascading to messages, votes and stream
// markers.
func (s *ChatService) DeleteChat(ctx context.Context, publicID, userID string) error {
	if _, err := s.GetOwnedChat(ctx, publicID, userID); err != nil {
		return err
	}
	if err := s.chats.Delete(ctx, publicID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete chat")
	}
	return nil
}

// SetVisibility updates the only mutable chat attribute.
func (s *ChatService) SetVisibility(ctx context.Context, publicID, userID string, visibility Visibility) error {
	if !visibility.IsValid() {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid visibility", nil, "")
	}
	if _, err := s.GetOwnedChat(ctx, publicID, userID); err != nil {
		return err
	}
	if err := s.chats.UpdateVisibility(ctx, publicID, visibility); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update visibility")
	}
	return nil
}

// AppendMessage writes one turn to a chat.
func (s *ChatService) AppendMessage(ctx context.Context, message *Message) error {
	if err := s.messages.Add(ctx, message); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
	}
	return nil
}

// ListMessages returns all turns of a chat, ascending by creation time.
func (s *ChatService) ListMessages(ctx context.Context, chatPublicID string) ([]*Message, error) {
	messages, err := s.messages.ListByChat(ctx, chatPublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return messages, nil
}

// CountRecentUserMessages counts the user's user-role turns within the
// trailing window.
func (s *ChatService) CountRecentUserMessages(ctx context.Context, userID string, window time.Duration) (int64, error) {
	count, err := s.messages.CountUserMessagesSince(ctx, userID, time.Now().Add(-window))
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count recent messages")
	}
	return count, nil
}

// CreateStream records a resumption marker for a generation attempt.
func (s *ChatService) CreateStream(ctx context.Context, stream *Stream) error {
	if err := s.streams.Create(ctx, stream); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create stream marker")
	}
	return nil
}

// LatestAssistantMessageWithin returns the chat's most recent assistant turn
// if it was created inside the resumption window, else nil.
func (s *ChatService) LatestAssistantMessageWithin(ctx context.Context, chatPublicID string, window time.Duration) (*Message, error) {
	latest, err := s.messages.LatestByChat(ctx, chatPublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load latest message")
	}
	if latest == nil || latest.Role != MessageRoleAssistant {
		return nil, nil
	}
	if time.Since(latest.CreatedAt) > window {
		return nil, nil
	}
	return latest, nil
}

// PruneStreams removes resumption markers older than ttl and reports how
// many rows went away.
func (s *ChatService) PruneStreams(ctx context.Context, ttl time.Duration) (int64, error) {
	deleted, err := s.streams.DeleteOlderThan(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to prune stream markers")
	}
	return deleted, nil
}

// VoteMessage records an up/down vote on an assistant turn of an owned chat.
func (s *ChatService) VoteMessage(ctx context.Context, userID string, vote *Vote) error {
	if vote.Kind != VoteUp && vote.Kind != VoteDown {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid vote kind", nil, "")
	}
	if _, err := s.GetOwnedChat(ctx, vote.ChatPublicID, userID); err != nil {
		return err
	}
	if err := s.votes.Upsert(ctx, vote); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record vote")
	}
	return nil
}

// ListVotes returns all votes of a readable chat.
func (s *ChatService) ListVotes(ctx context.Context, chatPublicID, userID string) ([]*Vote, error) {
	if _, err := s.GetReadableChat(ctx, chatPublicID, userID); err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByChat(ctx, chatPublicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list votes")
	}
	return votes, nil
}
