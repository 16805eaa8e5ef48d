package service

import (
	"strings"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/core"
)

const (
	objectInstagram = "instagram"
	objectPage      = "page"
	productWhatsApp = "whatsapp"
	fieldMessages   = "messages"
)

// ClassifyEntry determines which platform produced a webhook entry.
//
// WhatsApp is recognized by a "messages" change tagged with messaging_product "whatsapp".
// Messenger and Instagram share the messaging[] shape, so the first sender id decides:
// Instagram-scoped ids are longer than 16 characters or start with "1". Anything else is
// treated as Facebook.
func ClassifyEntry(entry meta.Entry) core.Platform {
	if len(entry.Changes) > 0 {
		first := entry.Changes[0]
		if first.Field == fieldMessages && first.Value.MessagingProduct == productWhatsApp {
			return core.PlatformWhatsApp
		}
	}

	if len(entry.Messaging) > 0 {
		senderID := entry.Messaging[0].Sender.ID
		if len(senderID) > 16 || strings.HasPrefix(senderID, "1") {
			return core.PlatformInstagram
		}
	}

	return core.PlatformFacebook
}

// classifyWithHint lets the envelope object decide between Messenger and Instagram
func classifyWithHint(object string, entry meta.Entry) core.Platform {
	platform := ClassifyEntry(entry)
	if platform == core.PlatformWhatsApp {
		return platform
	}
	switch object {
	case objectInstagram:
		return core.PlatformInstagram
	case objectPage:
		return core.PlatformFacebook
	}
	return platform
}
