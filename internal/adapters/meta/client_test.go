package meta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lengolf/chat-inbox/internal/core"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "v19.0", "page-token", 2*time.Second), srv
}

func TestFetchProfile_Facebook(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/12345", r.URL.Path)
		assert.Equal(t, "name,profile_pic", r.URL.Query().Get("fields"))
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":          "12345",
			"name":        "Jane Golfer",
			"profile_pic": "https://cdn.example/jane.jpg",
		})
	})

	out := client.FetchProfile(context.Background(), "12345", core.PlatformFacebook)
	require.True(t, out.OK())
	assert.Equal(t, "Jane Golfer", out.Value.Name)
	assert.Equal(t, "https://cdn.example/jane.jpg", out.Value.ProfilePicURL)
}

func TestFetchProfile_InstagramFields(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name,username", r.URL.Query().Get("fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"17841400000000000","username":"swinger"}`))
	})

	out := client.FetchProfile(context.Background(), "17841400000000000", core.PlatformInstagram)
	require.True(t, out.OK())
	assert.Equal(t, "swinger", out.Value.Username)
}

func TestFetchProfile_APIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
	})

	out := client.FetchProfile(context.Background(), "1", core.PlatformFacebook)
	assert.Equal(t, core.OutcomeFailed, out.State)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "code=190")
}

func TestFetchProfile_NoToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "v19.0", "", time.Second)
	out := client.FetchProfile(context.Background(), "1", core.PlatformFacebook)
	assert.Equal(t, core.OutcomeFailed, out.State)
	assert.True(t, errors.Is(out.Err, core.ErrNotConfigured))
}

func TestFetchProfile_EmptyNameIsDegraded(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1"}`))
	})

	out := client.FetchProfile(context.Background(), "1", core.PlatformFacebook)
	assert.Equal(t, core.OutcomeDegraded, out.State)
}

func TestSubscribePage(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v19.0/999/subscribed_apps", r.URL.Path)
		assert.Equal(t, "messages,messaging_postbacks", r.URL.Query().Get("subscribed_fields"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, client.SubscribePage(context.Background(), "999", []string{"messages", "messaging_postbacks"}))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "<empty>", MaskToken(""))
	assert.Equal(t, "***", MaskToken("abc"))
	assert.Equal(t, "EAA***xyz", MaskToken("EAAsecretxyz"))
}
