package meta

import (
	"encoding/json"
	"fmt"
)

// WebhookPayload represents the incoming webhook from Meta (Messenger, Instagram, WhatsApp).
// Entries stay raw until DecodeEntry so one malformed entry cannot reject the delivery.
type WebhookPayload struct {
	Object string            `json:"object"` // "page", "instagram" or "whatsapp_business_account"
	Entry  []json.RawMessage `json:"entry"`
}

// DecodeEntry parses one raw entry of a delivery
func DecodeEntry(raw json.RawMessage) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("malformed entry: %w", err)
	}
	return entry, nil
}

// EntryID reads only the id of a raw entry, for logging entries that fail to decode
func EntryID(raw json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.ID
}

// Entry is one notification unit scoped to one platform surface.
// Messenger and Instagram deliver Messaging, WhatsApp delivers Changes.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
	Changes   []Change         `json:"changes,omitempty"`
}

// Messenger / Instagram

// MessagingEvent is a single Messenger-style event: message, postback, delivery or read
type MessagingEvent struct {
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
	Delivery  *Delivery `json:"delivery,omitempty"`
	Read      *Read     `json:"read,omitempty"`
}

// Party is a page-scoped (or Instagram-scoped) identifier
type Party struct {
	ID string `json:"id"`
}

// Message is the Messenger message body
type Message struct {
	MID           string       `json:"mid"`
	Text          string       `json:"text,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	StickerID     int64        `json:"sticker_id,omitempty"`
	IsEcho        bool         `json:"is_echo,omitempty"`
	ReplyTo       *MIDRef      `json:"reply_to,omitempty"`
	QuotedMessage *IDRef       `json:"quoted_message,omitempty"`
	Context       *IDRef       `json:"context,omitempty"`
}

// MIDRef references another message by mid (reply_to)
type MIDRef struct {
	MID string `json:"mid"`
}

// IDRef references another message by id (quoted_message, context)
type IDRef struct {
	ID string `json:"id"`
}

// Attachment is a Messenger media attachment
type Attachment struct {
	Type    string            `json:"type"` // image, video, audio, file, template, fallback
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload carries the media location
type AttachmentPayload struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	StickerID int64  `json:"sticker_id,omitempty"`
}

// Postback is a button click
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Delivery is a delivery receipt for messages the page sent
type Delivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// Read is a read receipt; everything before the watermark was read
type Read struct {
	Watermark int64 `json:"watermark"`
}

// WhatsApp

// Change captures one field-tagged WhatsApp update
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue contains metadata, contacts, messages and statuses
type ChangeValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Metadata         Metadata    `json:"metadata"`
	Contacts         []Contact   `json:"contacts,omitempty"`
	Messages         []WAMessage `json:"messages,omitempty"`
	Statuses         []WAStatus  `json:"statuses,omitempty"`
}

// Metadata contains the business phone identifiers
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the WhatsApp user who wrote to the business
type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

// WAMessage aggregates the inbound WhatsApp message shapes
type WAMessage struct {
	From        string         `json:"from"`
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"` // Unix seconds as a string
	Type        string         `json:"type"`
	Text        *WAText        `json:"text,omitempty"`
	Image       *WAMedia       `json:"image,omitempty"`
	Document    *WAMedia       `json:"document,omitempty"`
	Audio       *WAMedia       `json:"audio,omitempty"`
	Video       *WAMedia       `json:"video,omitempty"`
	Sticker     *WAMedia       `json:"sticker,omitempty"`
	Location    *WALocation    `json:"location,omitempty"`
	Interactive *WAInteractive `json:"interactive,omitempty"`
	Button      *WAButton      `json:"button,omitempty"`
	Context     *WAContext     `json:"context,omitempty"`
}

// WAText contains a text message body
type WAText struct {
	Body string `json:"body"`
}

// WAMedia is the minimal media metadata sent with image/document/audio/video/sticker
type WAMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Sha256   string `json:"sha256,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// WALocation is a shared location pin
type WALocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// WAInteractive represents button/list replies
type WAInteractive struct {
	Type        string `json:"type"`
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"list_reply,omitempty"`
}

// WAButton is a quick-reply button press on a template message
type WAButton struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// WAContext points at the message being replied to
type WAContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// WAStatus is a delivery/read receipt for a message the business sent
type WAStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
