package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/metrics"
	"github.com/lengolf/chat-inbox/pkg/safego"
)

const maxNotificationBody = 120

// FanoutResult counts the outcome of one notification fan-out
type FanoutResult struct {
	Sent   int
	Gone   int
	Failed int
}

// Notifier pushes new-message notifications to every active operator subscription
type Notifier struct {
	subscriptions core.SubscriptionRepository
	sender        core.PushSender // nil disables push
	baseURL       string
	timeout       time.Duration
	logger        *zap.Logger

	wg sync.WaitGroup
}

// NewNotifier creates a notifier. A nil sender turns every dispatch into a logged no-op.
func NewNotifier(subscriptions core.SubscriptionRepository, sender core.PushSender, baseURL string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		subscriptions: subscriptions,
		sender:        sender,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		timeout:       timeout,
		logger:        logger,
	}
}

// Dispatch starts a detached fan-out for a stored message
func (n *Notifier) Dispatch(msg *core.Message, customerName string) {
	if n.sender == nil {
		n.logger.Debug("push disabled, notification skipped", zap.String("message_id", msg.ID))
		return
	}

	notification := n.BuildNotification(msg, customerName)

	n.wg.Add(1)
	safego.Execute(context.Background(), n.logger, "push-fanout", func(ctx context.Context) {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		n.Notify(ctx, notification)
	})
}

// Wait blocks until in-flight fan-outs finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Notify sends the notification to every active subscription concurrently.
// Errors are logged per subscriber; endpoints reported gone are deactivated.
func (n *Notifier) Notify(ctx context.Context, notification core.Notification) FanoutResult {
	var result FanoutResult
	if n.sender == nil {
		return result
	}

	subs, err := n.subscriptions.ListActiveSubscriptions(ctx)
	if err != nil {
		n.logger.Error("failed to list push subscriptions", zap.Error(err))
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *core.PushSubscription) {
			defer wg.Done()
			defer safego.Recover(n.logger, "push-send")

			outcome := n.sendOne(ctx, sub, notification)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.PushSent:
				result.Sent++
			case metrics.PushGone:
				result.Gone++
			default:
				result.Failed++
			}
		}(sub)
	}
	wg.Wait()

	n.logger.Debug("push fan-out finished",
		zap.String("conversation_id", notification.ConversationID),
		zap.Int("sent", result.Sent),
		zap.Int("gone", result.Gone),
		zap.Int("failed", result.Failed))
	return result
}

func (n *Notifier) sendOne(ctx context.Context, sub *core.PushSubscription, notification core.Notification) string {
	err := n.sender.Send(ctx, sub, notification)
	switch {
	case err == nil:
		metrics.RecordPush(metrics.PushSent)
		return metrics.PushSent
	case errors.Is(err, core.ErrSubscriptionGone):
		metrics.RecordPush(metrics.PushGone)
		n.logger.Info("push subscription gone, deactivating", zap.String("subscription_id", sub.ID))
		if derr := n.subscriptions.DeactivateSubscription(ctx, sub.Endpoint, err.Error()); derr != nil {
			n.logger.Warn("failed to deactivate push subscription", zap.String("subscription_id", sub.ID), zap.Error(derr))
		}
		return metrics.PushGone
	default:
		metrics.RecordPush(metrics.PushError)
		n.logger.Warn("push delivery failed", zap.String("subscription_id", sub.ID), zap.Error(err))
		return metrics.PushError
	}
}

// BuildNotification renders the push payload for a message
func (n *Notifier) BuildNotification(msg *core.Message, customerName string) core.Notification {
	if customerName == "" {
		customerName = PlaceholderName(msg.PlatformUserID, msg.Platform)
	}

	body := customerName + ": " + msg.Text
	if utf8.RuneCountInString(body) > maxNotificationBody {
		runes := []rune(body)
		body = string(runes[:maxNotificationBody-1]) + "…"
	}

	return core.Notification{
		Title:          fmt.Sprintf("New %s message", msg.Platform.Label()),
		Body:           body,
		ConversationID: msg.ConversationID,
		Platform:       msg.Platform,
		CustomerName:   customerName,
		URL:            fmt.Sprintf("%s?conversation=%s", n.baseURL, msg.ConversationID),
	}
}
