package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lengolf/chat-inbox/internal/core"
)

// fakeStore is an in-memory InboxStore with failure injection
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]*core.PlatformUser
	conversations []*core.Conversation
	messages      []*core.Message

	eventExistsCalls int
	upsertCalls      int

	insertErr      map[string]error // keyed by platform message id
	panicOnUser    string
	incrementErr   error
	findMessageErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]*core.PlatformUser{},
		insertErr: map[string]error{},
	}
}

func (f *fakeStore) UpsertUser(_ context.Context, user *core.PlatformUser) error {
	if f.panicOnUser != "" && user.PlatformUserID == f.panicOnUser {
		panic("boom: " + user.PlatformUserID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if existing, ok := f.users[user.PlatformUserID]; ok {
		user.ID = existing.ID
	} else if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stored := *user
	f.users[user.PlatformUserID] = &stored
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, platformUserID string, _ core.Platform) (*core.PlatformUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[platformUserID]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) FindActiveConversation(_ context.Context, platformUserID string, platform core.Platform) (*core.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.conversations) - 1; i >= 0; i-- {
		c := f.conversations[i]
		if c.PlatformUserID == platformUserID && c.Platform == platform && c.IsActive {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, conversation *core.Conversation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *conversation
	c.ID = uuid.NewString()
	f.conversations = append(f.conversations, &c)
	return c.ID, nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*core.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", id, core.ErrNotFound)
}

func (f *fakeStore) IncrementConversation(_ context.Context, id string, snapshot core.ConversationSnapshot) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ID == id {
			applySnapshot(c, snapshot)
			if snapshot.IsUnread {
				c.UnreadCount++
			}
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) UpdateConversationSnapshot(_ context.Context, id string, snapshot core.ConversationSnapshot, unreadCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ID == id {
			applySnapshot(c, snapshot)
			c.UnreadCount = unreadCount
			return nil
		}
	}
	return core.ErrNotFound
}

func applySnapshot(c *core.Conversation, snapshot core.ConversationSnapshot) {
	at := snapshot.At
	c.LastMessageText = snapshot.Text
	c.LastMessageAt = &at
	c.LastMessageBy = snapshot.By
}

func (f *fakeStore) InsertMessage(_ context.Context, message *core.Message) (bool, error) {
	if err := f.insertErr[message.PlatformMessageID]; err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.Platform == message.Platform && m.PlatformMessageID == message.PlatformMessageID {
			return false, nil
		}
	}
	m := *message
	f.messages = append(f.messages, &m)
	return true, nil
}

func (f *fakeStore) FindMessageByPlatformID(_ context.Context, platformMessageID string) (*core.Message, error) {
	if f.findMessageErr != nil {
		return nil, f.findMessageErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.PlatformMessageID == platformMessageID {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateMessageStatus(_ context.Context, update core.StatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.PlatformMessageID != update.PlatformMessageID {
			continue
		}
		ts := update.Timestamp
		switch update.Status {
		case core.StatusDelivered:
			m.DeliveredAt = &ts
		case core.StatusRead:
			m.ReadAt = &ts
			if m.DeliveredAt == nil {
				m.DeliveredAt = &ts
			}
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) EventExists(_ context.Context, webhookEventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventExistsCalls++
	for _, m := range f.messages {
		if m.WebhookEventID == webhookEventID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) messagesFor(conversationID string) []*core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*core.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) messageByPlatformID(id string) *core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.PlatformMessageID == id {
			return m
		}
	}
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: map[string]bool{}}
}

func (c *fakeCache) Seen(_ context.Context, eventID string) (bool, error) {
	if c.seenErr != nil {
		return false, c.seenErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[eventID], nil
}

func (c *fakeCache) Mark(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[eventID] = true
	return nil
}

type fakeProfiles struct {
	mu      sync.Mutex
	calls   int
	outcome core.Outcome[core.ProfileInfo]
}

func (p *fakeProfiles) FetchProfile(_ context.Context, _ string, _ core.Platform) core.Outcome[core.ProfileInfo] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.outcome
}

type fakeSubscriptions struct {
	mu          sync.Mutex
	subs        []*core.PushSubscription
	deactivated []string
	listErr     error
}

func (s *fakeSubscriptions) ListActiveSubscriptions(_ context.Context) ([]*core.PushSubscription, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.PushSubscription
	for _, sub := range s.subs {
		if sub.IsActive {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeSubscriptions) UpsertSubscription(_ context.Context, sub *core.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
	return nil
}

func (s *fakeSubscriptions) DeactivateSubscription(_ context.Context, endpoint string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, endpoint)
	for _, sub := range s.subs {
		if sub.Endpoint == endpoint {
			sub.IsActive = false
		}
	}
	return nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []core.Notification
	errs    map[string]error // keyed by endpoint
	panicOn string
}

func (s *fakeSender) Send(_ context.Context, sub *core.PushSubscription, notification core.Notification) error {
	if sub.Endpoint == s.panicOn {
		panic("sender exploded")
	}
	if err := s.errs[sub.Endpoint]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notification)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*core.Message
	statuses []core.StatusUpdate
	updated  []string
}

func (p *fakePublisher) PublishNewMessage(message *core.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *fakePublisher) PublishMessageStatus(update core.StatusUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, update)
}

func (p *fakePublisher) PublishConversationUpdated(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, conversationID)
}

type fakeWebhookLogs struct {
	logs []*core.WebhookLog
}

func (l *fakeWebhookLogs) SaveWebhookLog(_ context.Context, log *core.WebhookLog) error {
	l.logs = append(l.logs, log)
	return nil
}

type fakeMaintenance struct {
	idleSince time.Time
	before    time.Time
	err       error
}

func (m *fakeMaintenance) DeactivateIdleConversations(_ context.Context, idleSince time.Time) (int64, error) {
	m.idleSince = idleSince
	return 3, m.err
}

func (m *fakeMaintenance) PruneWebhookLogs(_ context.Context, before time.Time) (int64, error) {
	m.before = before
	return 7, m.err
}
