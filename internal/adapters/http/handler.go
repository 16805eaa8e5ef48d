package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/core"
)

// IngestProcessor defines the interface for the ingestion pipeline
type IngestProcessor interface {
	ProcessPayload(ctx context.Context, payload *meta.WebhookPayload, raw []byte) core.IngestSummary
}

// DefaultProcessTimeout keeps the acknowledgment inside Meta's 20 second redelivery window
const DefaultProcessTimeout = 15 * time.Second

// Handler handles Meta webhook requests
type Handler struct {
	verifyToken    string
	appSecret      string
	processTimeout time.Duration
	ingest         IngestProcessor
	logger         *zap.Logger
}

// NewHandler creates a new webhook handler. An empty appSecret disables signature checks.
// processTimeout bounds the work done before acknowledging; zero means DefaultProcessTimeout.
func NewHandler(ingest IngestProcessor, verifyToken, appSecret string, processTimeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if processTimeout <= 0 {
		processTimeout = DefaultProcessTimeout
	}

	verifyToken = strings.TrimSpace(verifyToken)
	if verifyToken == "" {
		logger.Warn("META_VERIFY_TOKEN is not set; webhook verification will fail")
	}
	if appSecret == "" {
		logger.Warn("META_APP_SECRET is not set; webhook signatures are not verified")
	}

	logger.Info("webhook handler initialized",
		zap.Int("verify_token_length", len(verifyToken)),
		zap.String("verify_token", meta.MaskToken(verifyToken)))

	return &Handler{
		verifyToken:    verifyToken,
		appSecret:      appSecret,
		processTimeout: processTimeout,
		ingest:         ingest,
		logger:         logger,
	}
}

// VerifyWebhook handles GET requests for webhook verification
func (h *Handler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := strings.TrimSpace(c.Query("hub.verify_token"))
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" {
		h.logger.Warn("webhook verification failed: invalid mode", zap.String("mode", mode))
		return c.Status(http.StatusBadRequest).SendString("Invalid mode")
	}

	if h.verifyToken == "" || !hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		h.logger.Warn("webhook verification failed: token mismatch",
			zap.String("provided", meta.MaskToken(token)),
			zap.String("expected", meta.MaskToken(h.verifyToken)))
		return c.Status(http.StatusForbidden).SendString("Invalid verify token")
	}

	h.logger.Info("webhook verification successful")
	// Plain text challenge, not JSON
	return c.SendString(challenge)
}

// ReceiveWebhook handles POST deliveries from Messenger, Instagram and WhatsApp.
// Once the envelope parses the answer is always 200; malformed entries and processing
// failures are only logged so Meta does not disable the subscription. Entries still
// pending when processTimeout expires are counted as failed.
func (h *Handler) ReceiveWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)

	if h.appSecret != "" {
		signature := c.Get("X-Hub-Signature-256")
		if signature == "" {
			h.logger.Warn("webhook rejected: missing signature")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing signature",
			})
		}
		if !VerifySignature(h.appSecret, signature, body) {
			h.logger.Warn("webhook rejected: invalid signature")
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
	}

	var payload meta.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.processTimeout)
	defer cancel()

	summary := h.ingest.ProcessPayload(ctx, &payload, body)

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":  "EVENT_RECEIVED",
		"summary": summary,
	})
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>") against the raw body
func VerifySignature(appSecret, signature string, body []byte) bool {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}

	expectedSig, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computedSig := mac.Sum(nil)

	return hmac.Equal(expectedSig, computedSig)
}

// Sign returns the X-Hub-Signature-256 value for a body
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
