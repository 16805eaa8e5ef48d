package core

import (
	"context"
	"time"
)

// ConversationSnapshot is the last-message summary written on every new message
type ConversationSnapshot struct {
	Text     string
	At       time.Time
	By       SenderType
	IsUnread bool // Increments unread_count when true (inbound user messages)
}

// InboxStore is the relational store the ingestion pipeline writes to
type InboxStore interface {
	UpsertUser(ctx context.Context, user *PlatformUser) error
	GetUser(ctx context.Context, platformUserID string, platform Platform) (*PlatformUser, error)

	FindActiveConversation(ctx context.Context, platformUserID string, platform Platform) (*Conversation, error)
	CreateConversation(ctx context.Context, conversation *Conversation) (string, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	IncrementConversation(ctx context.Context, id string, snapshot ConversationSnapshot) error
	UpdateConversationSnapshot(ctx context.Context, id string, snapshot ConversationSnapshot, unreadCount int) error

	// InsertMessage returns false when a row with the same platform message id already exists.
	InsertMessage(ctx context.Context, message *Message) (bool, error)
	FindMessageByPlatformID(ctx context.Context, platformMessageID string) (*Message, error)
	// UpdateMessageStatus returns false when no message matched.
	UpdateMessageStatus(ctx context.Context, update StatusUpdate) (bool, error)
	EventExists(ctx context.Context, webhookEventID string) (bool, error)
}

// InboxReader backs the operator-facing inbox API
type InboxReader interface {
	ListConversations(ctx context.Context, platform Platform, limit int) ([]*Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	MarkConversationRead(ctx context.Context, id string) error
	DeactivateConversation(ctx context.Context, id string) error
}

// MaintenanceRepository holds the housekeeping queries run by the scheduler
type MaintenanceRepository interface {
	DeactivateIdleConversations(ctx context.Context, idleSince time.Time) (int64, error)
	PruneWebhookLogs(ctx context.Context, before time.Time) (int64, error)
}

// WebhookLogRepository records raw deliveries
type WebhookLogRepository interface {
	SaveWebhookLog(ctx context.Context, log *WebhookLog) error
}

// SubscriptionRepository manages operator push subscriptions
type SubscriptionRepository interface {
	ListActiveSubscriptions(ctx context.Context) ([]*PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *PushSubscription) error
	DeactivateSubscription(ctx context.Context, endpoint string, reason string) error
}

// EventCache is a fast-path record of webhook event ids already persisted
type EventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// ProfileFetcher looks up display data for a platform user
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, platformUserID string, platform Platform) Outcome[ProfileInfo]
}

// PushSender delivers one notification to one subscription.
// ErrSubscriptionGone signals the endpoint should be deactivated.
type PushSender interface {
	Send(ctx context.Context, sub *PushSubscription, notification Notification) error
}

// InboxPublisher broadcasts inbox changes to live dashboards
type InboxPublisher interface {
	PublishNewMessage(message *Message)
	PublishMessageStatus(update StatusUpdate)
	PublishConversationUpdated(conversationID string)
}
