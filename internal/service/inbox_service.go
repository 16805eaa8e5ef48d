package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/events"
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
	defaultMessageLimit      = 100
	maxMessageLimit          = 500
)

// InboxService handles operator-facing inbox operations
type InboxService struct {
	reader         core.InboxReader
	subscriptions  core.SubscriptionRepository
	eventBus       *events.EventBus
	vapidPublicKey string
	jwtSecret      string
}

// NewInboxService creates a new inbox service
func NewInboxService(
	reader core.InboxReader,
	subscriptions core.SubscriptionRepository,
	eventBus *events.EventBus,
	vapidPublicKey string,
	jwtSecret string,
) *InboxService {
	return &InboxService{
		reader:         reader,
		subscriptions:  subscriptions,
		eventBus:       eventBus,
		vapidPublicKey: vapidPublicKey,
		jwtSecret:      jwtSecret,
	}
}

// ListConversations returns active conversations, newest activity first
func (s *InboxService) ListConversations(ctx context.Context, platform string, limit int) ([]*core.Conversation, error) {
	p, err := ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	return s.reader.ListConversations(ctx, p, clampLimit(limit, defaultConversationLimit, maxConversationLimit))
}

// ListMessages returns a conversation's messages in chronological order
func (s *InboxService) ListMessages(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	return s.reader.ListMessages(ctx, conversationID, clampLimit(limit, defaultMessageLimit, maxMessageLimit))
}

// MarkRead resets the unread counter
func (s *InboxService) MarkRead(ctx context.Context, conversationID string) error {
	if err := s.reader.MarkConversationRead(ctx, conversationID); err != nil {
		return err
	}
	if s.eventBus != nil {
		s.eventBus.PublishConversationUpdated(conversationID)
	}
	return nil
}

// CloseConversation deactivates a conversation; the next inbound message opens a new one
func (s *InboxService) CloseConversation(ctx context.Context, conversationID string) error {
	if err := s.reader.DeactivateConversation(ctx, conversationID); err != nil {
		return err
	}
	if s.eventBus != nil {
		s.eventBus.PublishConversationUpdated(conversationID)
	}
	return nil
}

// RegisterSubscription stores (or reactivates) an operator's browser push endpoint
func (s *InboxService) RegisterSubscription(ctx context.Context, operatorID, endpoint, p256dh, auth string) (*core.PushSubscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
		return nil, fmt.Errorf("%w: push endpoint must be an http(s) URL", core.ErrInvalidInput)
	}
	if p256dh == "" || auth == "" {
		return nil, fmt.Errorf("%w: subscription keys are required", core.ErrInvalidInput)
	}

	sub := &core.PushSubscription{
		ID:         uuid.New().String(),
		OperatorID: operatorID,
		Endpoint:   endpoint,
		P256dh:     p256dh,
		Auth:       auth,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.subscriptions.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	return sub, nil
}

// UnregisterSubscription deactivates an endpoint at the operator's request
func (s *InboxService) UnregisterSubscription(ctx context.Context, endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", core.ErrInvalidInput)
	}
	return s.subscriptions.DeactivateSubscription(ctx, endpoint, "unsubscribed by operator")
}

// VAPIDPublicKey returns the application server key ("" when push is disabled)
func (s *InboxService) VAPIDPublicKey() string {
	return s.vapidPublicKey
}

// GetEventBus returns the event bus for SSE
func (s *InboxService) GetEventBus() *events.EventBus {
	return s.eventBus
}

// ValidateJWT validates an operator token and returns the claims
func (s *InboxService) ValidateJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GenerateJWT issues an operator token; used by ops tooling and tests
func (s *InboxService) GenerateJWT(operatorID, name, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": operatorID,
		"name":    name,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParsePlatform accepts "", "facebook", "instagram" or "whatsapp"
func ParsePlatform(value string) (core.Platform, error) {
	switch p := core.Platform(strings.ToLower(strings.TrimSpace(value))); p {
	case "", core.PlatformFacebook, core.PlatformInstagram, core.PlatformWhatsApp:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown platform %q", core.ErrInvalidInput, value)
	}
}

func clampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	if limit > upper {
		return upper
	}
	return limit
}
