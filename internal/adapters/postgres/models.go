package postgres

import (
	"database/sql"
	"time"

	"github.com/lengolf/chat-inbox/internal/core"
)

// Database Models (with GORM tags)

// PlatformUserModel represents the platform_users table structure
type PlatformUserModel struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey"`
	PlatformUserID string         `gorm:"column:platform_user_id;type:varchar(64);not null;uniqueIndex"`
	Platform       string         `gorm:"column:platform;type:varchar(20);not null"`
	DisplayName    string         `gorm:"column:display_name;type:varchar(255);not null"`
	ProfilePicURL  sql.NullString `gorm:"column:profile_pic_url;type:text"`
	PhoneNumber    sql.NullString `gorm:"column:phone_number;type:varchar(32)"`
	LastSeenAt     time.Time      `gorm:"column:last_seen_at;type:timestamp;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamp;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;type:timestamp;not null"`
}

func (PlatformUserModel) TableName() string {
	return "platform_users"
}

// ToDomain converts PlatformUserModel to core.PlatformUser
func (m *PlatformUserModel) ToDomain() *core.PlatformUser {
	return &core.PlatformUser{
		ID:             m.ID,
		PlatformUserID: m.PlatformUserID,
		Platform:       core.Platform(m.Platform),
		DisplayName:    m.DisplayName,
		ProfilePicURL:  m.ProfilePicURL.String,
		PhoneNumber:    m.PhoneNumber.String,
		LastSeenAt:     m.LastSeenAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ConversationModel represents the meta_conversations table structure
type ConversationModel struct {
	ID              string         `gorm:"column:id;type:uuid;primaryKey"`
	PlatformUserID  string         `gorm:"column:platform_user_id;type:varchar(64);not null;index:idx_conv_identity"`
	Platform        string         `gorm:"column:platform;type:varchar(20);not null;index:idx_conv_identity"`
	IsActive        bool           `gorm:"column:is_active;type:boolean;not null;default:true"`
	UnreadCount     int            `gorm:"column:unread_count;type:integer;not null;default:0"`
	LastMessageText sql.NullString `gorm:"column:last_message_text;type:text"`
	LastMessageAt   sql.NullTime   `gorm:"column:last_message_at;type:timestamp"`
	LastMessageBy   sql.NullString `gorm:"column:last_message_by;type:varchar(20)"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamp;not null"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamp;not null"`
}

func (ConversationModel) TableName() string {
	return "meta_conversations"
}

// ToDomain converts ConversationModel to core.Conversation
func (m *ConversationModel) ToDomain() *core.Conversation {
	conv := &core.Conversation{
		ID:              m.ID,
		PlatformUserID:  m.PlatformUserID,
		Platform:        core.Platform(m.Platform),
		IsActive:        m.IsActive,
		UnreadCount:     m.UnreadCount,
		LastMessageText: m.LastMessageText.String,
		LastMessageBy:   core.SenderType(m.LastMessageBy.String),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.LastMessageAt.Valid {
		at := m.LastMessageAt.Time
		conv.LastMessageAt = &at
	}
	return conv
}

// MessageModel represents the meta_messages table structure
type MessageModel struct {
	ID                 string         `gorm:"column:id;type:uuid;primaryKey"`
	ConversationID     string         `gorm:"column:conversation_id;type:uuid;not null;index"`
	PlatformUserID     string         `gorm:"column:platform_user_id;type:varchar(64);not null"`
	Platform           string         `gorm:"column:platform;type:varchar(20);not null;uniqueIndex:ux_platform_message,priority:1"`
	PlatformMessageID  string         `gorm:"column:platform_message_id;type:varchar(255);not null;uniqueIndex:ux_platform_message,priority:2"`
	WebhookEventID     string         `gorm:"column:webhook_event_id;type:varchar(255);not null;index"`
	MessageText        string         `gorm:"column:message_text;type:text;not null"`
	MessageType        string         `gorm:"column:message_type;type:varchar(20);not null"`
	SenderType         string         `gorm:"column:sender_type;type:varchar(20);not null"`
	SenderName         sql.NullString `gorm:"column:sender_name;type:varchar(255)"`
	AttachmentURL      sql.NullString `gorm:"column:attachment_url;type:text"`
	FileName           sql.NullString `gorm:"column:file_name;type:varchar(255)"`
	FileSize           sql.NullInt64  `gorm:"column:file_size;type:bigint"`
	FileMimeType       sql.NullString `gorm:"column:file_mime_type;type:varchar(100)"`
	ReplyToMessageID   sql.NullString `gorm:"column:reply_to_message_id;type:uuid"`
	ReplyPreviewText   sql.NullString `gorm:"column:reply_preview_text;type:text"`
	ReplyPreviewSender sql.NullString `gorm:"column:reply_preview_sender;type:varchar(255)"`
	DeliveredAt        sql.NullTime   `gorm:"column:delivered_at;type:timestamp"`
	ReadAt             sql.NullTime   `gorm:"column:read_at;type:timestamp"`
	CreatedAt          time.Time      `gorm:"column:created_at;type:timestamp;not null"`
}

func (MessageModel) TableName() string {
	return "meta_messages"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// MessageModelFromDomain creates MessageModel from core.Message
func MessageModelFromDomain(msg *core.Message) *MessageModel {
	model := &MessageModel{
		ID:                msg.ID,
		ConversationID:    msg.ConversationID,
		PlatformUserID:    msg.PlatformUserID,
		Platform:          string(msg.Platform),
		PlatformMessageID: msg.PlatformMessageID,
		WebhookEventID:    msg.WebhookEventID,
		MessageText:       msg.Text,
		MessageType:       string(msg.Kind),
		SenderType:        string(msg.SenderType),
		SenderName:        nullString(msg.SenderName),
		DeliveredAt:       nullTime(msg.DeliveredAt),
		ReadAt:            nullTime(msg.ReadAt),
		CreatedAt:         msg.CreatedAt,
	}

	if a := msg.Attachment; a != nil {
		model.AttachmentURL = nullString(a.URL)
		model.FileName = nullString(a.Filename)
		model.FileMimeType = nullString(a.MimeType)
		if a.Size > 0 {
			model.FileSize = sql.NullInt64{Int64: a.Size, Valid: true}
		}
	}

	if r := msg.Reply; r != nil {
		model.ReplyToMessageID = nullString(r.MessageID)
		model.ReplyPreviewText = nullString(r.PreviewText)
		model.ReplyPreviewSender = nullString(r.PreviewSender)
	}

	return model
}

// ToDomain converts MessageModel to core.Message
func (m *MessageModel) ToDomain() *core.Message {
	msg := &core.Message{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		PlatformUserID:    m.PlatformUserID,
		Platform:          core.Platform(m.Platform),
		PlatformMessageID: m.PlatformMessageID,
		WebhookEventID:    m.WebhookEventID,
		Text:              m.MessageText,
		Kind:              core.MessageKind(m.MessageType),
		SenderType:        core.SenderType(m.SenderType),
		SenderName:        m.SenderName.String,
		DeliveredAt:       timePtr(m.DeliveredAt),
		ReadAt:            timePtr(m.ReadAt),
		CreatedAt:         m.CreatedAt,
	}

	if m.AttachmentURL.Valid || m.FileName.Valid || m.FileMimeType.Valid {
		msg.Attachment = &core.Attachment{
			URL:      m.AttachmentURL.String,
			Filename: m.FileName.String,
			Size:     m.FileSize.Int64,
			MimeType: m.FileMimeType.String,
		}
	}

	if m.ReplyPreviewText.Valid || m.ReplyToMessageID.Valid {
		msg.Reply = &core.ReplyLink{
			MessageID:     m.ReplyToMessageID.String,
			PreviewText:   m.ReplyPreviewText.String,
			PreviewSender: m.ReplyPreviewSender.String,
		}
	}

	return msg
}

// WebhookLogModel represents the meta_webhook_logs table structure
type WebhookLogModel struct {
	ID         string    `gorm:"column:id;type:uuid;primaryKey"`
	Object     string    `gorm:"column:object;type:varchar(64);not null"`
	EntryCount int       `gorm:"column:entry_count;type:integer;not null"`
	Processed  int       `gorm:"column:processed;type:integer;not null"`
	Failed     int       `gorm:"column:failed;type:integer;not null"`
	Payload    string    `gorm:"column:payload;type:jsonb"`
	ReceivedAt time.Time `gorm:"column:received_at;type:timestamp;not null;index"`
}

func (WebhookLogModel) TableName() string {
	return "meta_webhook_logs"
}

// PushSubscriptionModel represents the push_subscriptions table structure
type PushSubscriptionModel struct {
	ID         string         `gorm:"column:id;type:uuid;primaryKey"`
	OperatorID string         `gorm:"column:operator_id;type:varchar(64);not null;index"`
	Endpoint   string         `gorm:"column:endpoint;type:text;not null;uniqueIndex"`
	P256dh     string         `gorm:"column:p256dh;type:text;not null"`
	Auth       string         `gorm:"column:auth;type:text;not null"`
	IsActive   bool           `gorm:"column:is_active;type:boolean;not null;default:true"`
	LastError  sql.NullString `gorm:"column:last_error;type:text"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;not null"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamp;not null"`
}

func (PushSubscriptionModel) TableName() string {
	return "push_subscriptions"
}

// ToDomain converts PushSubscriptionModel to core.PushSubscription
func (m *PushSubscriptionModel) ToDomain() *core.PushSubscription {
	return &core.PushSubscription{
		ID:         m.ID,
		OperatorID: m.OperatorID,
		Endpoint:   m.Endpoint,
		P256dh:     m.P256dh,
		Auth:       m.Auth,
		IsActive:   m.IsActive,
		LastError:  m.LastError.String,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
