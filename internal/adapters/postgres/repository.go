package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lengolf/chat-inbox/internal/core"
)

// Repository implements the inbox ports using GORM with the pgx driver
type Repository struct {
	db                     *gorm.DB
	inboxRepository        *inboxRepository
	subscriptionRepository *subscriptionRepository
	webhookLogRepository   *webhookLogRepository
}

// inboxRepository implements InboxStore, InboxReader and MaintenanceRepository methods
type inboxRepository struct {
	*Repository
}

// subscriptionRepository implements SubscriptionRepository methods
type subscriptionRepository struct {
	*Repository
}

// webhookLogRepository implements WebhookLogRepository methods
type webhookLogRepository struct {
	*Repository
}

// NewRepository creates a new Postgres repository instance
func NewRepository(dbURL string) (*Repository, error) {
	// GORM with pgx driver (postgres driver uses pgx under the hood)
	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewRepositoryFromDB(db), nil
}

// NewRepositoryFromDB wraps an already opened GORM handle
func NewRepositoryFromDB(db *gorm.DB) *Repository {
	repo := &Repository{db: db}
	// Set up embedded types
	repo.inboxRepository = &inboxRepository{Repository: repo}
	repo.subscriptionRepository = &subscriptionRepository{Repository: repo}
	repo.webhookLogRepository = &webhookLogRepository{Repository: repo}
	return repo
}

// AutoMigrate creates the inbox tables from the GORM models.
// Production schemas are managed by migrations/ through cmd/run_migration.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&PlatformUserModel{},
		&ConversationModel{},
		&MessageModel{},
		&WebhookLogModel{},
		&PushSubscriptionModel{},
	)
}

// InboxStore returns the InboxStore interface implementation
func (r *Repository) InboxStore() core.InboxStore {
	return r.inboxRepository
}

// InboxReader returns the InboxReader interface implementation
func (r *Repository) InboxReader() core.InboxReader {
	return r.inboxRepository
}

// MaintenanceRepository returns the MaintenanceRepository interface implementation
func (r *Repository) MaintenanceRepository() core.MaintenanceRepository {
	return r.inboxRepository
}

// SubscriptionRepository returns the SubscriptionRepository interface implementation
func (r *Repository) SubscriptionRepository() core.SubscriptionRepository {
	return r.subscriptionRepository
}

// WebhookLogRepository returns the WebhookLogRepository interface implementation
func (r *Repository) WebhookLogRepository() core.WebhookLogRepository {
	return r.webhookLogRepository
}

func now() time.Time {
	return time.Now().UTC()
}

// InboxStore implementation

// UpsertUser inserts or refreshes a platform user keyed by platform_user_id
func (r *inboxRepository) UpsertUser(ctx context.Context, user *core.PlatformUser) error {
	ts := now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.LastSeenAt.IsZero() {
		user.LastSeenAt = ts
	}

	model := PlatformUserModel{
		ID:             user.ID,
		PlatformUserID: user.PlatformUserID,
		Platform:       string(user.Platform),
		DisplayName:    user.DisplayName,
		ProfilePicURL:  nullString(user.ProfilePicURL),
		PhoneNumber:    nullString(user.PhoneNumber),
		LastSeenAt:     user.LastSeenAt,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"platform", "display_name", "profile_pic_url", "phone_number", "last_seen_at", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert platform user: %w", err)
	}
	return nil
}

// GetUser retrieves a platform user, returning nil when absent
func (r *inboxRepository) GetUser(ctx context.Context, platformUserID string, platform core.Platform) (*core.PlatformUser, error) {
	var model PlatformUserModel
	err := r.db.WithContext(ctx).
		Where("platform_user_id = ? AND platform = ?", platformUserID, string(platform)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get platform user: %w", err)
	}
	return model.ToDomain(), nil
}

// FindActiveConversation returns the most recent active conversation, or nil when there is none
func (r *inboxRepository) FindActiveConversation(ctx context.Context, platformUserID string, platform core.Platform) (*core.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).
		Where("platform_user_id = ? AND platform = ? AND is_active = ?", platformUserID, string(platform), true).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No active conversation (not an error)
		}
		return nil, fmt.Errorf("failed to find active conversation: %w", err)
	}
	return model.ToDomain(), nil
}

// CreateConversation inserts a new active conversation with zero unread messages
func (r *inboxRepository) CreateConversation(ctx context.Context, conversation *core.Conversation) (string, error) {
	ts := now()
	model := ConversationModel{
		ID:             uuid.NewString(),
		PlatformUserID: conversation.PlatformUserID,
		Platform:       string(conversation.Platform),
		IsActive:       true,
		UnreadCount:    0,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	conversation.ID = model.ID
	conversation.IsActive = true
	conversation.CreatedAt = ts
	conversation.UpdatedAt = ts
	return model.ID, nil
}

// GetConversation retrieves a conversation by its ID
func (r *inboxRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var model ConversationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return model.ToDomain(), nil
}

func snapshotUpdates(snapshot core.ConversationSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"last_message_text": snapshot.Text,
		"last_message_at":   snapshot.At.UTC(),
		"last_message_by":   string(snapshot.By),
		"updated_at":        now(),
	}
}

// IncrementConversation writes the last-message snapshot and bumps unread_count in one statement
func (r *inboxRepository) IncrementConversation(ctx context.Context, id string, snapshot core.ConversationSnapshot) error {
	updates := snapshotUpdates(snapshot)
	if snapshot.IsUnread {
		updates["unread_count"] = gorm.Expr("unread_count + ?", 1)
	}

	result := r.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to increment conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// UpdateConversationSnapshot writes the last-message snapshot with an explicit unread count
func (r *inboxRepository) UpdateConversationSnapshot(ctx context.Context, id string, snapshot core.ConversationSnapshot, unreadCount int) error {
	updates := snapshotUpdates(snapshot)
	updates["unread_count"] = unreadCount

	result := r.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// InsertMessage stores a message unless its platform message id already exists
func (r *inboxRepository) InsertMessage(ctx context.Context, message *core.Message) (bool, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now()
	}

	model := MessageModelFromDomain(message)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "platform_message_id"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert message: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindMessageByPlatformID retrieves a message by its platform message id, or nil when absent
func (r *inboxRepository) FindMessageByPlatformID(ctx context.Context, platformMessageID string) (*core.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("platform_message_id = ?", platformMessageID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return model.ToDomain(), nil
}

// UpdateMessageStatus applies a delivery/read receipt to an existing message
func (r *inboxRepository) UpdateMessageStatus(ctx context.Context, update core.StatusUpdate) (bool, error) {
	ts := update.Timestamp.UTC()
	query := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("platform_message_id = ?", update.PlatformMessageID)

	var result *gorm.DB
	switch update.Status {
	case core.StatusDelivered:
		result = query.Update("delivered_at", ts)
	case core.StatusRead:
		result = query.Updates(map[string]interface{}{
			"read_at":      ts,
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", ts),
		})
	default:
		// sent/failed carry no timestamp column
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return false, fmt.Errorf("failed to check message status: %w", err)
		}
		return count > 0, nil
	}

	if result.Error != nil {
		return false, fmt.Errorf("failed to update message status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// EventExists reports whether a message with the given webhook event id is stored
func (r *inboxRepository) EventExists(ctx context.Context, webhookEventID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).
		Where("webhook_event_id = ?", webhookEventID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return count > 0, nil
}

// InboxReader implementation

// ListConversations returns active conversations, most recently updated first
func (r *inboxRepository) ListConversations(ctx context.Context, platform core.Platform, limit int) ([]*core.Conversation, error) {
	type conversationWithName struct {
		ConversationModel
		CustomerName string `gorm:"column:customer_name"`
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Table("meta_conversations").
		Select("meta_conversations.*, platform_users.display_name AS customer_name").
		Joins("LEFT JOIN platform_users ON platform_users.platform_user_id = meta_conversations.platform_user_id").
		Where("meta_conversations.is_active = ?", true).
		Order("COALESCE(meta_conversations.last_message_at, meta_conversations.created_at) DESC").
		Limit(limit)

	if platform != "" {
		query = query.Where("meta_conversations.platform = ?", string(platform))
	}

	var rows []conversationWithName
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	conversations := make([]*core.Conversation, len(rows))
	for i, row := range rows {
		conv := row.ConversationModel.ToDomain()
		conv.CustomerName = row.CustomerName
		conversations[i] = conv
	}
	return conversations, nil
}

// ListMessages returns the latest messages of a conversation in chronological order
func (r *inboxRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var models []MessageModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*core.Message, len(models))
	for i := range models {
		messages[len(models)-1-i] = models[i].ToDomain()
	}
	return messages, nil
}

// MarkConversationRead resets the unread counter
func (r *inboxRepository) MarkConversationRead(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"updated_at":   now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark conversation read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// DeactivateConversation closes a conversation; conversations are never deleted
func (r *inboxRepository) DeactivateConversation(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// MaintenanceRepository implementation

// DeactivateIdleConversations closes active conversations with no message since idleSince
func (r *inboxRepository) DeactivateIdleConversations(ctx context.Context, idleSince time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&ConversationModel{}).
		Where("is_active = ? AND COALESCE(last_message_at, created_at) < ?", true, idleSince.UTC()).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate idle conversations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PruneWebhookLogs deletes webhook logs received before the cutoff
func (r *inboxRepository) PruneWebhookLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("received_at < ?", before.UTC()).
		Delete(&WebhookLogModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune webhook logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// WebhookLogRepository implementation

// SaveWebhookLog records one received delivery
func (r *webhookLogRepository) SaveWebhookLog(ctx context.Context, log *core.WebhookLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.ReceivedAt.IsZero() {
		log.ReceivedAt = now()
	}

	model := WebhookLogModel{
		ID:         log.ID,
		Object:     log.Object,
		EntryCount: log.EntryCount,
		Processed:  log.Processed,
		Failed:     log.Failed,
		Payload:    string(log.Payload),
		ReceivedAt: log.ReceivedAt.UTC(),
	}
	if model.Payload == "" {
		model.Payload = "{}"
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save webhook log: %w", err)
	}
	return nil
}

// SubscriptionRepository implementation

// ListActiveSubscriptions returns every active push subscription
func (r *subscriptionRepository) ListActiveSubscriptions(ctx context.Context) ([]*core.PushSubscription, error) {
	var models []PushSubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	subs := make([]*core.PushSubscription, len(models))
	for i := range models {
		subs[i] = models[i].ToDomain()
	}
	return subs, nil
}

// UpsertSubscription registers an endpoint, reactivating it when it already exists
func (r *subscriptionRepository) UpsertSubscription(ctx context.Context, sub *core.PushSubscription) error {
	ts := now()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	model := PushSubscriptionModel{
		ID:         sub.ID,
		OperatorID: sub.OperatorID,
		Endpoint:   sub.Endpoint,
		P256dh:     sub.P256dh,
		Auth:       sub.Auth,
		IsActive:   true,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"operator_id": sub.OperatorID,
			"p256dh":      sub.P256dh,
			"auth":        sub.Auth,
			"is_active":   true,
			"last_error":  nil,
			"updated_at":  ts,
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}

	sub.IsActive = true
	return nil
}

// DeactivateSubscription marks an endpoint inactive and records why
func (r *subscriptionRepository) DeactivateSubscription(ctx context.Context, endpoint string, reason string) error {
	result := r.db.WithContext(ctx).Model(&PushSubscriptionModel{}).
		Where("endpoint = ?", endpoint).
		Updates(map[string]interface{}{
			"is_active":  false,
			"last_error": nullString(reason),
			"updated_at": now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate push subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("push subscription: %w", core.ErrNotFound)
	}
	return nil
}
