package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
)

const (
	fallbackPreviewText   = "Original message"
	fallbackPreviewSender = "Unknown"
)

// ResolveReply links a reply to the stored original.
// Returns nil when the message is not a reply. A missing original or a lookup error
// yields the generic preview without an internal id.
func (s *IngestService) ResolveReply(ctx context.Context, candidates core.ReplyCandidates) *core.ReplyLink {
	id := candidates.First()
	if id == "" {
		return nil
	}

	original, err := s.store.FindMessageByPlatformID(ctx, id)
	if err != nil {
		s.logger.Debug("reply lookup failed", zap.String("reply_to", id), zap.Error(err))
		original = nil
	}
	if original == nil {
		return &core.ReplyLink{
			PreviewText:   fallbackPreviewText,
			PreviewSender: fallbackPreviewSender,
		}
	}

	sender := original.SenderName
	if sender == "" {
		sender = fallbackPreviewSender
	}

	return &core.ReplyLink{
		MessageID:     original.ID,
		PreviewText:   ReplyPreview(original),
		PreviewSender: sender,
	}
}

// ReplyPreview summarizes the original message by kind
func ReplyPreview(original *core.Message) string {
	switch original.Kind {
	case core.KindText:
		return original.Text
	case core.KindImage:
		return "📷 Photo"
	case core.KindFile:
		name := ""
		if original.Attachment != nil {
			name = original.Attachment.Filename
		}
		if name == "" {
			name = "File"
		}
		return "📄 " + name
	default:
		return "[" + string(original.Kind) + "]"
	}
}
