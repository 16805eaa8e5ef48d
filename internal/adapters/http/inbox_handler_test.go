package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/service"
)

// fakeInbox implements core.InboxReader and core.SubscriptionRepository
type fakeInbox struct {
	mu            sync.Mutex
	conversations []*core.Conversation
	messages      map[string][]*core.Message
	read          []string
	closed        []string
	subs          []*core.PushSubscription
	deactivated   []string

	listPlatform core.Platform
	listLimit    int
}

func (f *fakeInbox) ListConversations(_ context.Context, platform core.Platform, limit int) ([]*core.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPlatform, f.listLimit = platform, limit
	return f.conversations, nil
}

func (f *fakeInbox) ListMessages(_ context.Context, conversationID string, _ int) ([]*core.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.messages[conversationID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return msgs, nil
}

func (f *fakeInbox) MarkConversationRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known(id) {
		return core.ErrNotFound
	}
	f.read = append(f.read, id)
	return nil
}

func (f *fakeInbox) DeactivateConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.known(id) {
		return core.ErrNotFound
	}
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeInbox) known(id string) bool {
	for _, c := range f.conversations {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeInbox) ListActiveSubscriptions(context.Context) ([]*core.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, nil
}

func (f *fakeInbox) UpsertSubscription(_ context.Context, sub *core.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeInbox) DeactivateSubscription(_ context.Context, endpoint, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, endpoint)
	return nil
}

func newInboxApp(t *testing.T, vapidKey string) (*fakeInbox, func(method, path, body string, auth bool) (int, []byte)) {
	t.Helper()

	inbox := &fakeInbox{
		conversations: []*core.Conversation{
			{ID: "c-1", Platform: core.PlatformInstagram, IsActive: true, UnreadCount: 2},
		},
		messages: map[string][]*core.Message{
			"c-1": {{ID: "m-1", ConversationID: "c-1", Text: "hello"}},
		},
	}
	svc := service.NewInboxService(inbox, inbox, nil, vapidKey, testJWTSecret)
	app := NewRouter(NewHandler(&fakeIngest{}, testVerifyToken, "", 0, nil), NewInboxHandler(svc, nil), svc, nil)

	token, err := svc.GenerateJWT("op-7", "Front Desk", "staff", time.Hour)
	require.NoError(t, err)

	do := func(method, path, body string, auth bool) (int, []byte) {
		req := httptest.NewRequest(method, path, nil)
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		if auth {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return resp.StatusCode, []byte(buf.String())
	}
	return inbox, do
}

func TestInboxRoutes_RequireAuth(t *testing.T) {
	_, do := newInboxApp(t, "BKey")

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/conversations"},
		{"GET", "/api/conversations/c-1/messages"},
		{"POST", "/api/conversations/c-1/read"},
		{"POST", "/api/conversations/c-1/close"},
		{"POST", "/api/push/subscriptions"},
		{"DELETE", "/api/push/subscriptions"},
		{"GET", "/api/inbox/events"},
	} {
		status, _ := do(route.method, route.path, "", false)
		assert.Equal(t, 401, status, "%s %s", route.method, route.path)
	}
}

func TestListConversations(t *testing.T) {
	inbox, do := newInboxApp(t, "BKey")

	status, body := do("GET", "/api/conversations?platform=instagram&limit=1000", "", true)
	require.Equal(t, 200, status)

	var got []core.Conversation
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c-1", got[0].ID)
	assert.Equal(t, core.PlatformInstagram, inbox.listPlatform)
	assert.Equal(t, 200, inbox.listLimit)

	status, _ = do("GET", "/api/conversations?platform=telegram", "", true)
	assert.Equal(t, 400, status)
}

func TestListMessages(t *testing.T) {
	_, do := newInboxApp(t, "BKey")

	status, body := do("GET", "/api/conversations/c-1/messages", "", true)
	require.Equal(t, 200, status)
	assert.Contains(t, string(body), "hello")

	status, _ = do("GET", "/api/conversations/missing/messages", "", true)
	assert.Equal(t, 404, status)
}

func TestMarkReadAndClose(t *testing.T) {
	inbox, do := newInboxApp(t, "BKey")

	status, _ := do("POST", "/api/conversations/c-1/read", "", true)
	assert.Equal(t, 200, status)
	status, _ = do("POST", "/api/conversations/c-1/close", "", true)
	assert.Equal(t, 200, status)
	status, _ = do("POST", "/api/conversations/nope/close", "", true)
	assert.Equal(t, 404, status)

	assert.Equal(t, []string{"c-1"}, inbox.read)
	assert.Equal(t, []string{"c-1"}, inbox.closed)
}

func TestPushSubscriptionLifecycle(t *testing.T) {
	inbox, do := newInboxApp(t, "BKey")

	status, body := do("GET", "/api/push/vapid-public-key", "", false)
	require.Equal(t, 200, status)
	assert.JSONEq(t, `{"publicKey":"BKey"}`, string(body))

	sub := `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","keys":{"p256dh":"BP","auth":"AU"}}`
	status, _ = do("POST", "/api/push/subscriptions", sub, true)
	require.Equal(t, 201, status)
	require.Len(t, inbox.subs, 1)
	assert.Equal(t, "op-7", inbox.subs[0].OperatorID)
	assert.Equal(t, "BP", inbox.subs[0].P256dh)

	status, _ = do("POST", "/api/push/subscriptions", `{"endpoint":"ftp://x","keys":{"p256dh":"a","auth":"b"}}`, true)
	assert.Equal(t, 400, status)

	status, _ = do("DELETE", "/api/push/subscriptions", `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc"}`, true)
	assert.Equal(t, 200, status)
	assert.Equal(t, []string{"https://fcm.googleapis.com/fcm/send/abc"}, inbox.deactivated)
}

func TestVAPIDKey_PushDisabled(t *testing.T) {
	_, do := newInboxApp(t, "")

	status, _ := do("GET", "/api/push/vapid-public-key", "", false)
	assert.Equal(t, 503, status)
}
