package webpush

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpushgo "github.com/SherClockHolmes/webpush-go"

	"github.com/lengolf/chat-inbox/internal/core"
)

const (
	publicKeyLen  = 65 // uncompressed P-256 point
	privateKeyLen = 32
)

// Sender delivers encrypted web push messages authorized with VAPID
type Sender struct {
	httpClient *http.Client
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
}

// NewSender checks the base64url VAPID key pair. subject is a mailto: or https: contact.
func NewSender(publicKey, privateKey, subject string, ttlSeconds int, timeout time.Duration) (*Sender, error) {
	if err := checkKey(publicKey, publicKeyLen); err != nil {
		return nil, fmt.Errorf("invalid VAPID public key: %w", err)
	}
	if err := checkKey(privateKey, privateKeyLen); err != nil {
		return nil, fmt.Errorf("invalid VAPID private key: %w", err)
	}

	return &Sender{
		httpClient: &http.Client{Timeout: timeout},
		publicKey:  publicKey,
		privateKey: privateKey,
		// the library adds mailto: to anything that is not an https URL
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		ttl:        ttlSeconds,
	}, nil
}

// PublicKey returns the application server key browsers subscribe with
func (s *Sender) PublicKey() string {
	return s.publicKey
}

// Send encrypts the notification for the subscription and posts it to the push service
// (implements core.PushSender)
func (s *Sender) Send(ctx context.Context, sub *core.PushSubscription, notification core.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := webpushgo.SendNotificationWithContext(ctx, payload, &webpushgo.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpushgo.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpushgo.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.subscriber,
		TTL:             s.ttl,
		Urgency:         webpushgo.UrgencyHigh,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	switch status := resp.StatusCode; {
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("push endpoint returned %d: %w", status, core.ErrSubscriptionGone)
	case status >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push service error: status %d, body: %s", status, body)
	}

	return nil
}

// GenerateVAPIDKeys creates a new base64url encoded key pair
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpushgo.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}

func checkKey(key string, size int) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return err
	}
	if len(raw) != size {
		return fmt.Errorf("want %d bytes, got %d", size, len(raw))
	}
	return nil
}
