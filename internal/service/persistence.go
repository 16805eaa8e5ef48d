package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/metrics"
)

// IsEventProcessed reports whether a webhook event id was already stored.
// The cache answers positives fast; the store stays authoritative.
func (s *IngestService) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if s.cache != nil {
		seen, err := s.cache.Seen(ctx, eventID)
		if err != nil {
			s.logger.Warn("event cache lookup failed", zap.String("event_id", eventID), zap.Error(err))
		} else if seen {
			return true, nil
		}
	}

	exists, err := s.store.EventExists(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	if exists {
		s.markProcessed(ctx, eventID)
	}
	return exists, nil
}

func (s *IngestService) markProcessed(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Mark(ctx, eventID); err != nil {
		s.logger.Warn("failed to cache event id", zap.String("event_id", eventID), zap.Error(err))
	}
}

// StoreMessage persists an inbound user message and updates the conversation summary.
// Returns the generated message id, or core.ErrDuplicateMessage when the platform
// message id already exists. Push notifications are dispatched without waiting.
func (s *IngestService) StoreMessage(ctx context.Context, in *core.InboundMessage, conversationID, senderName string) (string, error) {
	msg := &core.Message{
		ID:                uuid.New().String(),
		ConversationID:    conversationID,
		PlatformUserID:    in.PlatformUserID,
		Platform:          in.Platform,
		PlatformMessageID: in.PlatformMessageID,
		WebhookEventID:    in.WebhookEventID,
		Text:              in.Text,
		Kind:              in.Kind,
		SenderType:        core.SenderUser,
		SenderName:        senderName,
		CreatedAt:         in.Timestamp,
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if len(in.Attachments) > 0 {
		first := in.Attachments[0]
		msg.Attachment = &first
	}
	msg.Reply = s.ResolveReply(ctx, in.ReplyCandidates)

	inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to insert message %s: %w", in.PlatformMessageID, err)
	}
	if !inserted {
		return "", core.ErrDuplicateMessage
	}

	s.markProcessed(ctx, in.WebhookEventID)
	metrics.RecordMessageStored(string(in.Platform))

	s.updateConversation(ctx, conversationID, core.ConversationSnapshot{
		Text:     msg.Text,
		At:       msg.CreatedAt,
		By:       core.SenderUser,
		IsUnread: true,
	})

	if s.publisher != nil {
		s.publisher.PublishNewMessage(msg)
		s.publisher.PublishConversationUpdated(conversationID)
	}
	if s.notifier != nil {
		s.notifier.Dispatch(msg, senderName)
	}

	return msg.ID, nil
}

// updateConversation applies the atomic increment and falls back to read-then-write.
// A failure here never fails the stored message.
func (s *IngestService) updateConversation(ctx context.Context, conversationID string, snapshot core.ConversationSnapshot) {
	err := s.store.IncrementConversation(ctx, conversationID, snapshot)
	if err == nil {
		return
	}
	s.logger.Warn("atomic conversation update failed, falling back",
		zap.String("conversation_id", conversationID), zap.Error(err))

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to load conversation for fallback update",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}

	unread := conv.UnreadCount
	if snapshot.IsUnread {
		unread++
	}
	if err := s.store.UpdateConversationSnapshot(ctx, conversationID, snapshot, unread); err != nil {
		s.logger.Error("fallback conversation update failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
