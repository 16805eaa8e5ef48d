package core

import "time"

// Platform identifies the messaging surface a message arrived on
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformWhatsApp  Platform = "whatsapp"
)

// Label returns the human readable platform name ("Facebook", "Instagram", "WhatsApp")
func (p Platform) Label() string {
	switch p {
	case PlatformFacebook:
		return "Facebook"
	case PlatformInstagram:
		return "Instagram"
	case PlatformWhatsApp:
		return "WhatsApp"
	default:
		return string(p)
	}
}

// SenderType tells which side of the conversation produced a message
type SenderType string

const (
	SenderUser     SenderType = "user"
	SenderBusiness SenderType = "business"
)

// MessageKind is the normalized message type stored with every message
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindFile     MessageKind = "file"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindSticker  MessageKind = "sticker"
	KindPostback MessageKind = "postback"
	KindLocation MessageKind = "location"
)

// PlatformUser represents an external identity on one messaging platform
type PlatformUser struct {
	ID             string    `json:"id"`
	PlatformUserID string    `json:"platform_user_id"`
	Platform       Platform  `json:"platform"`
	DisplayName    string    `json:"display_name"`
	ProfilePicURL  string    `json:"profile_pic_url"`
	PhoneNumber    string    `json:"phone_number,omitempty"` // WhatsApp only
	LastSeenAt     time.Time `json:"last_seen_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Conversation is a thread between one platform user and the business
type Conversation struct {
	ID              string     `json:"id"`
	PlatformUserID  string     `json:"platform_user_id"`
	Platform        Platform   `json:"platform"`
	IsActive        bool       `json:"is_active"`
	UnreadCount     int        `json:"unread_count"`
	LastMessageText string     `json:"last_message_text"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastMessageBy   SenderType `json:"last_message_by,omitempty"`
	CustomerName    string     `json:"customer_name,omitempty"` // Joined from platform_users on reads
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Attachment holds the single attachment honored per message
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ReplyLink describes the message a reply points at.
// MessageID is empty when the original could not be resolved.
type ReplyLink struct {
	MessageID     string `json:"message_id,omitempty"`
	PreviewText   string `json:"preview_text"`
	PreviewSender string `json:"preview_sender"`
}

// Message is the normalized unit of communication across all platforms
type Message struct {
	ID                string      `json:"id"`
	ConversationID    string      `json:"conversation_id"`
	PlatformUserID    string      `json:"platform_user_id"`
	Platform          Platform    `json:"platform"`
	PlatformMessageID string      `json:"platform_message_id"`
	WebhookEventID    string      `json:"webhook_event_id"`
	Text              string      `json:"text"`
	Kind              MessageKind `json:"kind"`
	SenderType        SenderType  `json:"sender_type"`
	SenderName        string      `json:"sender_name"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	Reply             *ReplyLink  `json:"reply,omitempty"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty"`
	ReadAt            *time.Time  `json:"read_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// InboundMessage is the platform-neutral result of normalizing one webhook event.
// It carries everything needed to resolve identity, conversation and reply before
// being persisted as a Message.
type InboundMessage struct {
	Platform          Platform
	PlatformUserID    string
	PlatformMessageID string
	WebhookEventID    string
	Text              string
	Kind              MessageKind
	SenderName        string // Optional, supplied by the platform (WhatsApp contacts)
	PhoneNumber       string // WhatsApp only
	Attachments       []Attachment
	ReplyCandidates   ReplyCandidates
	Timestamp         time.Time
}

// ReplyCandidates lists reply target ids in the platform field precedence order.
type ReplyCandidates struct {
	ReplyTo       string // message.reply_to.mid
	QuotedMessage string // message.quoted_message.id
	Context       string // message.context.id (WhatsApp and some Messenger variants)
}

// First returns the first non-empty candidate in precedence order
func (r ReplyCandidates) First() string {
	for _, id := range []string{r.ReplyTo, r.QuotedMessage, r.Context} {
		if id != "" {
			return id
		}
	}
	return ""
}

// StatusKind is a delivery receipt state
type StatusKind string

const (
	StatusSent      StatusKind = "sent"
	StatusDelivered StatusKind = "delivered"
	StatusRead      StatusKind = "read"
	StatusFailed    StatusKind = "failed"
)

// StatusUpdate is a delivery/read receipt for an already stored message
type StatusUpdate struct {
	PlatformMessageID string
	Status            StatusKind
	Timestamp         time.Time
}

// PushSubscription is an operator's browser push endpoint
type PushSubscription struct {
	ID         string    `json:"id"`
	OperatorID string    `json:"operator_id"`
	Endpoint   string    `json:"endpoint"`
	P256dh     string    `json:"p256dh"`
	Auth       string    `json:"auth"`
	IsActive   bool      `json:"is_active"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Notification is the push payload delivered to operator browsers
type Notification struct {
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	ConversationID string   `json:"conversationId"`
	Platform       Platform `json:"platform"`
	CustomerName   string   `json:"customerName"`
	URL            string   `json:"url"`
}

// WebhookLog records one received webhook delivery
type WebhookLog struct {
	ID         string    `json:"id"`
	Object     string    `json:"object"`
	EntryCount int       `json:"entry_count"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Payload    []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// ProfileInfo is what the Graph API returns for a platform user
type ProfileInfo struct {
	Name          string
	Username      string
	ProfilePicURL string
}

// IngestSummary reports what one ProcessPayload call did
type IngestSummary struct {
	Entries         int `json:"entries"`
	EntriesFailed   int `json:"entries_failed"`
	MessagesStored  int `json:"messages_stored"`
	Duplicates      int `json:"duplicates"`
	Skipped         int `json:"skipped"`
	StatusesApplied int `json:"statuses_applied"`
}
