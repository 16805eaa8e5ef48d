package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/core"
	"github.com/lengolf/chat-inbox/internal/service"
)

const (
	testVerifyToken = "lengolf-verify"
	testAppSecret   = "app-secret"
	testJWTSecret   = "jwt-secret"
)

type fakeIngest struct {
	mu        sync.Mutex
	payloads  []*meta.WebhookPayload
	raw       [][]byte
	deadlines []time.Time
	summary   core.IngestSummary
}

func (f *fakeIngest) ProcessPayload(ctx context.Context, payload *meta.WebhookPayload, raw []byte) core.IngestSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	f.raw = append(f.raw, raw)
	deadline, _ := ctx.Deadline()
	f.deadlines = append(f.deadlines, deadline)
	return f.summary
}

func (f *fakeIngest) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newWebhookApp(ingest IngestProcessor, appSecret string) *fiber.App {
	inbox := &fakeInbox{}
	svc := service.NewInboxService(inbox, inbox, nil, "BPublicKey", testJWTSecret)
	return NewRouter(NewHandler(ingest, testVerifyToken, appSecret, time.Second, nil), NewInboxHandler(svc, nil), svc, nil)
}

func TestVerifyWebhook(t *testing.T) {
	app := newWebhookApp(&fakeIngest{}, "")

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=lengolf-verify&hub.challenge=12345", 200, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", 403, "Invalid verify token"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=lengolf-verify&hub.challenge=1", 400, "Invalid mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/webhook?"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.body, string(body))
		})
	}
}

func TestReceiveWebhook_Signature(t *testing.T) {
	payload := `{"object":"page","entry":[{"id":"2345","time":1700000000000,"messaging":[]}]}`

	tests := []struct {
		name      string
		signature string
		status    int
		processed bool
	}{
		{"valid signature", Sign(testAppSecret, []byte(payload)), 200, true},
		{"missing signature", "", 401, false},
		{"wrong secret", Sign("other", []byte(payload)), 401, false},
		{"malformed header", "sha1=abcd", 401, false},
		{"non hex", "sha256=zz", 401, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest := &fakeIngest{}
			app := newWebhookApp(ingest, testAppSecret)

			req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			if tt.signature != "" {
				req.Header.Set("X-Hub-Signature-256", tt.signature)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.processed, ingest.calls() == 1)
		})
	}
}

func TestReceiveWebhook_AlwaysAcknowledges(t *testing.T) {
	ingest := &fakeIngest{summary: core.IngestSummary{Entries: 2, EntriesFailed: 2}}
	app := newWebhookApp(ingest, "")

	payload := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[]},{"id":"2","changes":[]}]}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Status  string             `json:"status"`
		Summary core.IngestSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "EVENT_RECEIVED", body.Status)
	assert.Equal(t, 2, body.Summary.EntriesFailed)

	require.Equal(t, 1, ingest.calls())
	assert.Equal(t, "whatsapp_business_account", ingest.payloads[0].Object)
	assert.Len(t, ingest.payloads[0].Entry, 2)
	assert.JSONEq(t, payload, string(ingest.raw[0]))
}

func TestReceiveWebhook_MalformedEntryStillAcknowledged(t *testing.T) {
	ingest := &fakeIngest{summary: core.IngestSummary{Entries: 2, EntriesFailed: 1, MessagesStored: 1}}
	app := newWebhookApp(ingest, "")

	payload := `{"object":"page","entry":[
	  {"id":"e1","messaging":[{"sender":{"id":"2001"},"timestamp":"not-a-number","message":{"mid":"m_e1","text":"a"}}]},
	  {"id":"e2","messaging":[{"sender":{"id":"2002"},"timestamp":1718000000002,"message":{"mid":"m_e2","text":"b"}}]}
	]}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	require.Equal(t, 1, ingest.calls())
	entries := ingest.payloads[0].Entry
	require.Len(t, entries, 2)

	_, err = meta.DecodeEntry(entries[0])
	assert.Error(t, err)
	assert.Equal(t, "e1", meta.EntryID(entries[0]))

	second, err := meta.DecodeEntry(entries[1])
	require.NoError(t, err)
	require.Len(t, second.Messaging, 1)
	assert.Equal(t, "m_e2", second.Messaging[0].Message.MID)
}

func TestReceiveWebhook_ProcessingIsBounded(t *testing.T) {
	ingest := &fakeIngest{}
	app := newWebhookApp(ingest, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"object":"page","entry":[]}`))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	require.Equal(t, 1, ingest.calls())
	deadline := ingest.deadlines[0]
	require.False(t, deadline.IsZero(), "ingest must run under a deadline")
	assert.WithinDuration(t, start.Add(time.Second), deadline, 500*time.Millisecond)
}

func TestReceiveWebhook_InvalidJSON(t *testing.T) {
	ingest := &fakeIngest{}
	app := newWebhookApp(ingest, "")

	resp, err := app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json")))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Zero(t, ingest.calls())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"instagram"}`)
	sig := Sign("s3cret", body)

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, VerifySignature("s3cret", sig, body))
	assert.False(t, VerifySignature("s3cret", sig, []byte(`{"object":"page"}`)))
	assert.False(t, VerifySignature("s3cret", strings.TrimPrefix(sig, "sha256="), body))
}

func TestHealthAndMetrics(t *testing.T) {
	app := newWebhookApp(&fakeIngest{}, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")
}
