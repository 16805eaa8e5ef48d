package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/core"
)

// MessengerEventID returns the webhook event id of a message or postback, read straight
// off the raw event. ok is false for echoes and receipt-only events, which are never stored.
func MessengerEventID(event meta.MessagingEvent) (id string, ok bool) {
	if event.Postback != nil {
		return fmt.Sprintf("postback_%d", event.Timestamp), true
	}
	if event.Message == nil || event.Message.IsEcho {
		return "", false
	}
	return event.Message.MID, true
}

// NormalizeMessengerEvent converts a Messenger/Instagram message or postback into an
// InboundMessage. Echoes of the page's own messages and receipt-only events yield nil.
func NormalizeMessengerEvent(event meta.MessagingEvent, platform core.Platform) *core.InboundMessage {
	id, ok := MessengerEventID(event)
	if !ok {
		return nil
	}
	ts := messengerTime(event.Timestamp)

	if pb := event.Postback; pb != nil {
		title := pb.Title
		if title == "" {
			title = pb.Payload
		}
		return &core.InboundMessage{
			Platform:          platform,
			PlatformUserID:    event.Sender.ID,
			PlatformMessageID: id,
			WebhookEventID:    id,
			Text:              "Clicked: " + title,
			Kind:              core.KindPostback,
			Timestamp:         ts,
		}
	}

	msg := event.Message
	in := &core.InboundMessage{
		Platform:          platform,
		PlatformUserID:    event.Sender.ID,
		PlatformMessageID: id,
		WebhookEventID:    id,
		Text:              msg.Text,
		Kind:              core.KindText,
		Timestamp:         ts,
	}

	sticker := msg.StickerID != 0
	for _, a := range msg.Attachments {
		if a.Payload.StickerID != 0 {
			sticker = true
		}
		in.Attachments = append(in.Attachments, core.Attachment{
			URL:      a.Payload.URL,
			Filename: a.Payload.Title,
		})
	}

	switch {
	case sticker:
		in.Kind = core.KindSticker
	case len(msg.Attachments) > 0:
		in.Kind = messengerAttachmentKind(msg.Attachments[0].Type)
	}

	if in.Text == "" {
		switch {
		case sticker:
			in.Text = "Sent a sticker"
		case len(msg.Attachments) > 0:
			in.Text = "Sent " + msg.Attachments[0].Type
		default:
			in.Text = "Sent a message"
		}
	}

	if msg.ReplyTo != nil {
		in.ReplyCandidates.ReplyTo = msg.ReplyTo.MID
	}
	if msg.QuotedMessage != nil {
		in.ReplyCandidates.QuotedMessage = msg.QuotedMessage.ID
	}
	if msg.Context != nil {
		in.ReplyCandidates.Context = msg.Context.ID
	}

	return in
}

// MessengerDeliveryUpdates turns a delivery receipt into per-message status updates
func MessengerDeliveryUpdates(event meta.MessagingEvent) []core.StatusUpdate {
	if event.Delivery == nil {
		return nil
	}

	ts := messengerTime(event.Delivery.Watermark)
	updates := make([]core.StatusUpdate, 0, len(event.Delivery.MIDs))
	for _, mid := range event.Delivery.MIDs {
		if mid == "" {
			continue
		}
		updates = append(updates, core.StatusUpdate{
			PlatformMessageID: mid,
			Status:            core.StatusDelivered,
			Timestamp:         ts,
		})
	}
	return updates
}

func messengerAttachmentKind(attachmentType string) core.MessageKind {
	switch attachmentType {
	case "image":
		return core.KindImage
	case "video":
		return core.KindVideo
	case "audio":
		return core.KindAudio
	default:
		return core.KindFile
	}
}

// WhatsAppBatch is the normalized content of one WhatsApp change value
type WhatsAppBatch struct {
	Messages []*core.InboundMessage
	Statuses []core.StatusUpdate
}

// NormalizeWhatsAppChange maps the messages and statuses of a WhatsApp change value.
// The native message id doubles as the webhook event id.
func NormalizeWhatsAppChange(value meta.ChangeValue) WhatsAppBatch {
	names := WhatsAppContactNames(value)

	var batch WhatsAppBatch
	for _, m := range value.Messages {
		batch.Messages = append(batch.Messages, NormalizeWhatsAppMessage(m, names[m.From]))
	}
	batch.Statuses = WhatsAppStatusUpdates(value)
	return batch
}

// WhatsAppContactNames maps wa_id to the profile name carried alongside the messages
func WhatsAppContactNames(value meta.ChangeValue) map[string]string {
	names := make(map[string]string, len(value.Contacts))
	for _, c := range value.Contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

// NormalizeWhatsAppMessage maps one WhatsApp message
func NormalizeWhatsAppMessage(m meta.WAMessage, senderName string) *core.InboundMessage {
	text, kind, attachment := whatsAppContent(m)
	in := &core.InboundMessage{
		Platform:          core.PlatformWhatsApp,
		PlatformUserID:    m.From,
		PlatformMessageID: m.ID,
		WebhookEventID:    m.ID,
		Text:              text,
		Kind:              kind,
		SenderName:        senderName,
		PhoneNumber:       m.From,
		Timestamp:         unixSeconds(m.Timestamp),
	}
	if attachment != nil {
		in.Attachments = []core.Attachment{*attachment}
	}
	if m.Context != nil {
		in.ReplyCandidates.Context = m.Context.ID
	}
	return in
}

// WhatsAppStatusUpdates keeps the sent/delivered/read/failed statuses of a change value
func WhatsAppStatusUpdates(value meta.ChangeValue) []core.StatusUpdate {
	var updates []core.StatusUpdate
	for _, s := range value.Statuses {
		status := core.StatusKind(s.Status)
		switch status {
		case core.StatusSent, core.StatusDelivered, core.StatusRead, core.StatusFailed:
		default:
			continue
		}
		updates = append(updates, core.StatusUpdate{
			PlatformMessageID: s.ID,
			Status:            status,
			Timestamp:         unixSeconds(s.Timestamp),
		})
	}

	return updates
}

func whatsAppContent(m meta.WAMessage) (string, core.MessageKind, *core.Attachment) {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return "", core.KindText, nil
		}
		return m.Text.Body, core.KindText, nil
	case "image":
		return "📷 Image", core.KindImage, whatsAppMedia(m.Image)
	case "document":
		name := ""
		if m.Document != nil {
			name = m.Document.Filename
		}
		if name == "" {
			name = "Document"
		}
		return "📄 " + name, core.KindFile, whatsAppMedia(m.Document)
	case "audio":
		return "🎵 Audio message", core.KindAudio, whatsAppMedia(m.Audio)
	case "video":
		return "🎥 Video", core.KindVideo, whatsAppMedia(m.Video)
	case "sticker":
		return "Sent a sticker", core.KindSticker, nil
	case "location":
		return "📍 Location", core.KindLocation, nil
	case "interactive":
		if i := m.Interactive; i != nil {
			if i.ButtonReply != nil {
				return i.ButtonReply.Title, core.KindText, nil
			}
			if i.ListReply != nil {
				return i.ListReply.Title, core.KindText, nil
			}
		}
	case "button":
		if m.Button != nil {
			return m.Button.Text, core.KindText, nil
		}
	}
	return "[" + m.Type + "]", core.KindText, nil
}

// whatsAppMedia keeps the descriptive metadata; media ids need a separate Graph download
func whatsAppMedia(media *meta.WAMedia) *core.Attachment {
	if media == nil || (media.Filename == "" && media.MimeType == "") {
		return nil
	}
	return &core.Attachment{
		Filename: media.Filename,
		MimeType: media.MimeType,
	}
}

func messengerTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}

func unixSeconds(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
