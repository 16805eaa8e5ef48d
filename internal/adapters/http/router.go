package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/middleware"
)

// NewRouter wires the Fiber app with webhook, inbox and operational routes.
func NewRouter(webhook *Handler, inbox *InboxHandler, validator middleware.TokenValidator, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "Chat Inbox",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(zapLoggerMiddleware(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"project": "chat-inbox",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Meta webhook
	app.Get("/webhook", webhook.VerifyWebhook)
	app.Post("/webhook", webhook.ReceiveWebhook)

	api := app.Group("/api")
	api.Get("/push/vapid-public-key", inbox.GetVAPIDPublicKey)

	protected := api.Group("", middleware.AuthMiddleware(validator))
	protected.Post("/push/subscriptions", inbox.Subscribe)
	protected.Delete("/push/subscriptions", inbox.Unsubscribe)
	protected.Get("/conversations", inbox.GetConversations)
	protected.Get("/conversations/:id/messages", inbox.GetMessages)
	protected.Post("/conversations/:id/read", inbox.MarkRead)
	protected.Post("/conversations/:id/close", inbox.CloseConversation)
	protected.Get("/inbox/events", inbox.SSEEvents)

	logger.Info("router initialized", zap.Int("routes", len(app.GetRoutes(true))))

	return app
}

func zapLoggerMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// Probes and scrapes would drown the log
		if c.Path() == "/metrics" || c.Path() == "/health" {
			return err
		}

		logger.Info("request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.IP()))

		return err
	}
}
