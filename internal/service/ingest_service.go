package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/metrics"
	"github.com/lengolf/chat-inbox/pkg/safego"
)

// IngestService turns Meta webhook deliveries into stored inbox messages
type IngestService struct {
	store     core.InboxStore
	cache     core.EventCache           // optional
	profiles  core.ProfileFetcher       // optional
	notifier  *Notifier                 // optional
	publisher core.InboxPublisher       // optional
	logs      core.WebhookLogRepository // optional
	logger    *zap.Logger
	now       func() time.Time
}

// NewIngestService creates the ingestion pipeline. Only the store is required.
func NewIngestService(
	store core.InboxStore,
	cache core.EventCache,
	profiles core.ProfileFetcher,
	notifier *Notifier,
	publisher core.InboxPublisher,
	logs core.WebhookLogRepository,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		store:     store,
		cache:     cache,
		profiles:  profiles,
		notifier:  notifier,
		publisher: publisher,
		logs:      logs,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPayload handles every entry of a delivery in order. An entry that fails to
// decode, fails or panics is logged and counted; the remaining entries are still processed.
func (s *IngestService) ProcessPayload(ctx context.Context, payload *meta.WebhookPayload, raw []byte) core.IngestSummary {
	var summary core.IngestSummary

	for _, rawEntry := range payload.Entry {
		summary.Entries++
		entryID := meta.EntryID(rawEntry)
		platform := classifyWithHint(payload.Object, meta.Entry{}) // until the entry decodes

		err := safego.Call("entry "+entryID, func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := meta.DecodeEntry(rawEntry)
			if err != nil {
				return err
			}
			platform = classifyWithHint(payload.Object, entry)
			if platform == core.PlatformWhatsApp {
				return s.processWhatsAppEntry(ctx, entry, &summary)
			}
			return s.processMessengerEntry(ctx, entry, platform, &summary)
		})
		if err != nil {
			summary.EntriesFailed++
			metrics.RecordEntry(string(platform), metrics.OutcomeFailed)
			s.logger.Error("failed to process webhook entry",
				zap.String("entry_id", entryID),
				zap.String("platform", string(platform)),
				zap.Error(err))
			continue
		}
		metrics.RecordEntry(string(platform), metrics.OutcomeProcessed)
	}

	// The audit row is written even when the request deadline has passed
	s.saveWebhookLog(context.WithoutCancel(ctx), payload, raw, summary)

	s.logger.Info("webhook processed",
		zap.String("object", payload.Object),
		zap.Int("entries", summary.Entries),
		zap.Int("entries_failed", summary.EntriesFailed),
		zap.Int("messages_stored", summary.MessagesStored),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("statuses_applied", summary.StatusesApplied))

	return summary
}

func (s *IngestService) processMessengerEntry(ctx context.Context, entry meta.Entry, platform core.Platform, summary *core.IngestSummary) error {
	var errs []error

	for _, event := range entry.Messaging {
		if event.Delivery != nil {
			s.applyStatuses(ctx, MessengerDeliveryUpdates(event), summary)
			continue
		}
		if event.Read != nil {
			s.logger.Debug("read receipt ignored",
				zap.String("sender_id", event.Sender.ID),
				zap.Int64("watermark", event.Read.Watermark))
			summary.Skipped++
			continue
		}

		eventID, ok := MessengerEventID(event)
		if !ok {
			summary.Skipped++
			continue
		}
		duplicate, err := s.skipDuplicate(ctx, eventID, platform, summary)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if duplicate {
			continue
		}

		if err := s.ingestMessage(ctx, NormalizeMessengerEvent(event, platform), summary); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *IngestService) processWhatsAppEntry(ctx context.Context, entry meta.Entry, summary *core.IngestSummary) error {
	var errs []error

	for _, change := range entry.Changes {
		if change.Field != fieldMessages {
			summary.Skipped++
			continue
		}

		names := WhatsAppContactNames(change.Value)
		for _, m := range change.Value.Messages {
			duplicate, err := s.skipDuplicate(ctx, m.ID, core.PlatformWhatsApp, summary)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if duplicate {
				continue
			}
			if err := s.ingestMessage(ctx, NormalizeWhatsAppMessage(m, names[m.From]), summary); err != nil {
				errs = append(errs, err)
			}
		}
		s.applyStatuses(ctx, WhatsAppStatusUpdates(change.Value), summary)
	}

	return errors.Join(errs...)
}

// skipDuplicate runs the dedup check on the raw event id, ahead of any normalization
func (s *IngestService) skipDuplicate(ctx context.Context, eventID string, platform core.Platform, summary *core.IngestSummary) (bool, error) {
	processed, err := s.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		summary.Duplicates++
		metrics.RecordDuplicate(string(platform))
		s.logger.Debug("duplicate event skipped",
			zap.String("event_id", eventID),
			zap.String("platform", string(platform)))
	}
	return processed, nil
}

// ingestMessage runs identity, conversation, reply and storage for one new message
func (s *IngestService) ingestMessage(ctx context.Context, in *core.InboundMessage, summary *core.IngestSummary) error {
	if in.ReplyCandidates.First() != "" {
		s.logger.Debug("reply fields present",
			zap.String("message_id", in.PlatformMessageID),
			zap.String("reply_to", in.ReplyCandidates.ReplyTo),
			zap.String("quoted_message", in.ReplyCandidates.QuotedMessage),
			zap.String("context", in.ReplyCandidates.Context))
	}

	user, err := s.EnsureUser(ctx, in.PlatformUserID, in.Platform, UserHints{
		DisplayName: in.SenderName,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		return err
	}

	conversationID, err := s.EnsureConversation(ctx, in.PlatformUserID, in.Platform)
	if err != nil {
		return err
	}

	if _, err := s.StoreMessage(ctx, in, conversationID, user.DisplayName); err != nil {
		if errors.Is(err, core.ErrDuplicateMessage) {
			summary.Duplicates++
			metrics.RecordDuplicate(string(in.Platform))
			s.markProcessed(ctx, in.WebhookEventID)
			return nil
		}
		return err
	}

	summary.MessagesStored++
	return nil
}

// applyStatuses updates delivery/read timestamps. Unknown message ids are ignored.
func (s *IngestService) applyStatuses(ctx context.Context, updates []core.StatusUpdate, summary *core.IngestSummary) {
	for _, update := range updates {
		if update.Status != core.StatusDelivered && update.Status != core.StatusRead {
			summary.Skipped++
			continue
		}

		applied, err := s.store.UpdateMessageStatus(ctx, update)
		if err != nil {
			s.logger.Warn("failed to apply message status",
				zap.String("message_id", update.PlatformMessageID),
				zap.String("status", string(update.Status)),
				zap.Error(err))
			continue
		}
		if !applied {
			s.logger.Debug("status for unknown message",
				zap.String("message_id", update.PlatformMessageID),
				zap.String("status", string(update.Status)))
			continue
		}

		summary.StatusesApplied++
		if s.publisher != nil {
			s.publisher.PublishMessageStatus(update)
		}
	}
}

func (s *IngestService) saveWebhookLog(ctx context.Context, payload *meta.WebhookPayload, raw []byte, summary core.IngestSummary) {
	if s.logs == nil {
		return
	}

	entry := &core.WebhookLog{
		ID:         uuid.New().String(),
		Object:     payload.Object,
		EntryCount: summary.Entries,
		Processed:  summary.Entries - summary.EntriesFailed,
		Failed:     summary.EntriesFailed,
		Payload:    raw,
		ReceivedAt: s.now(),
	}
	if err := s.logs.SaveWebhookLog(ctx, entry); err != nil {
		s.logger.Warn("failed to save webhook log", zap.Error(err))
	}
}
