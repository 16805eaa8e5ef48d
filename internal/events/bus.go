package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lengolf/chat-inbox/internal/core"
)

// EventType represents the type of event
type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventMessageStatus       EventType = "message_status"
	EventConversationUpdated EventType = "conversation_updated"
)

// Event represents a server-sent event
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// EventBus manages SSE subscriptions and broadcasts events
type EventBus struct {
	subscribers map[string]chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (eb *EventBus) Subscribe(ctx context.Context, id string) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Buffered so a slow dashboard never blocks ingestion
	ch := make(chan Event, 32)
	eb.subscribers[id] = ch

	go func() {
		<-ctx.Done()
		eb.Unsubscribe(id)
	}()

	return ch
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, exists := eb.subscribers[id]; exists {
		close(ch)
		delete(eb.subscribers, id)
	}
}

// SubscriberCount returns the number of connected dashboards
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	event := Event{
		Type: eventType,
		Data: data,
	}

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Skip if channel is full
		}
	}
}

// PublishNewMessage publishes a stored inbound message
func (eb *EventBus) PublishNewMessage(message *core.Message) {
	eb.Publish(EventNewMessage, message)
}

// PublishMessageStatus publishes a delivery/read receipt
func (eb *EventBus) PublishMessageStatus(update core.StatusUpdate) {
	eb.Publish(EventMessageStatus, map[string]interface{}{
		"platform_message_id": update.PlatformMessageID,
		"status":              update.Status,
		"timestamp":           update.Timestamp,
	})
}

// PublishConversationUpdated publishes a conversation summary change
func (eb *EventBus) PublishConversationUpdated(conversationID string) {
	eb.Publish(EventConversationUpdated, map[string]string{"conversation_id": conversationID})
}

// FormatSSE formats an event as Server-Sent Event string
func FormatSSE(event Event) (string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return "", err
	}

	return "event: " + string(event.Type) + "\ndata: " + string(data) + "\n\n", nil
}
