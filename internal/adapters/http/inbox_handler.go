package http

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/events"
	"github.com/lengolf/chat-inbox/internal/service"
)

const sseHeartbeat = 30 * time.Second

// InboxHandler handles operator inbox and push subscription requests
type InboxHandler struct {
	inboxService *service.InboxService
	logger       *zap.Logger
}

// NewInboxHandler creates a new inbox handler
func NewInboxHandler(inboxService *service.InboxService, logger *zap.Logger) *InboxHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxHandler{
		inboxService: inboxService,
		logger:       logger,
	}
}

// GetConversations lists active conversations
// GET /api/conversations?platform=&limit=
func (h *InboxHandler) GetConversations(c *fiber.Ctx) error {
	conversations, err := h.inboxService.ListConversations(c.UserContext(), c.Query("platform"), c.QueryInt("limit", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(conversations)
}

// GetMessages lists a conversation's messages
// GET /api/conversations/:id/messages?limit=
func (h *InboxHandler) GetMessages(c *fiber.Ctx) error {
	messages, err := h.inboxService.ListMessages(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(messages)
}

// MarkRead resets the unread counter
// POST /api/conversations/:id/read
func (h *InboxHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.inboxService.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "conversation marked as read"})
}

// CloseConversation deactivates a conversation
// POST /api/conversations/:id/close
func (h *InboxHandler) CloseConversation(c *fiber.Ctx) error {
	if err := h.inboxService.CloseConversation(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "conversation closed"})
}

// GetVAPIDPublicKey returns the key browsers subscribe with
// GET /api/push/vapid-public-key
func (h *InboxHandler) GetVAPIDPublicKey(c *fiber.Ctx) error {
	key := h.inboxService.VAPIDPublicKey()
	if key == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "push notifications are not configured",
		})
	}
	return c.JSON(fiber.Map{"publicKey": key})
}

// pushSubscriptionRequest mirrors the browser PushSubscription JSON
type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe registers a browser push subscription
// POST /api/push/subscriptions
func (h *InboxHandler) Subscribe(c *fiber.Ctx) error {
	var req pushSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	operatorID, _ := c.Locals("user_id").(string)
	sub, err := h.inboxService.RegisterSubscription(c.UserContext(), operatorID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       sub.ID,
		"endpoint": sub.Endpoint,
	})
}

// Unsubscribe deactivates a browser push subscription
// DELETE /api/push/subscriptions
func (h *InboxHandler) Unsubscribe(c *fiber.Ctx) error {
	var req pushSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.inboxService.UnregisterSubscription(c.UserContext(), req.Endpoint); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "unsubscribed"})
}

// SSEEvents streams inbox events to a dashboard
// GET /api/inbox/events
func (h *InboxHandler) SSEEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	bus := h.inboxService.GetEventBus()
	if bus == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "event stream unavailable",
		})
	}

	// Lives as long as the stream writer, not the handler
	ctx, cancel := context.WithCancel(context.Background())
	subscriberID := uuid.New().String()
	eventChan := bus.Subscribe(ctx, subscriberID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if _, err := w.WriteString("event: connected\ndata: {\"message\":\"connected\"}\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-eventChan:
				if !ok {
					return
				}

				sseData, err := events.FormatSSE(event)
				if err != nil {
					h.logger.Warn("failed to format SSE event", zap.Error(err))
					continue
				}

				if _, err := w.WriteString(sseData); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func (h *InboxHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, core.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.Error("inbox request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
	})
}
