package meta

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lengolf/chat-inbox/internal/core"
)

// Client handles Meta Graph API communication
type Client struct {
	httpClient *resty.Client
	token      string
}

// NewClient creates a Graph API client. An empty token is allowed: every call then
// reports core.ErrNotConfigured instead of reaching the network.
func NewClient(baseURL, version, token string, timeout time.Duration) *Client {
	base := strings.TrimSuffix(baseURL, "/")

	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, version)).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{
		httpClient: restyClient,
		token:      token,
	}
}

// profileResponse mirrors the Graph user profile fields we request
type profileResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic"`
}

// apiError represents a Graph API error payload
type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func (e *apiError) describe(status int) error {
	code := status
	if e != nil && e.Error.Code != 0 {
		code = e.Error.Code
	}
	message := ""
	if e != nil {
		message = e.Error.Message
	}
	return fmt.Errorf("graph api error: status=%d code=%d message=%s", status, code, message)
}

// profileFields returns the Graph fields available per platform
func profileFields(platform core.Platform) string {
	if platform == core.PlatformInstagram {
		return "name,username"
	}
	return "name,profile_pic"
}

// FetchProfile looks up a user's display data (implements core.ProfileFetcher)
func (c *Client) FetchProfile(ctx context.Context, platformUserID string, platform core.Platform) core.Outcome[core.ProfileInfo] {
	if c.token == "" {
		return core.Failed[core.ProfileInfo](core.ErrNotConfigured)
	}

	result := new(profileResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("fields", profileFields(platform)).
		SetQueryParam("access_token", c.token).
		SetResult(result).
		SetError(apiErr).
		Get(platformUserID)
	if err != nil {
		return core.Failed[core.ProfileInfo](fmt.Errorf("fetch profile: %w", err))
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return core.Failed[core.ProfileInfo](apiErr.describe(resp.StatusCode()))
	}

	info := core.ProfileInfo{
		Name:          result.Name,
		Username:      result.Username,
		ProfilePicURL: result.ProfilePic,
	}
	if info.Name == "" && info.Username == "" {
		return core.Degraded(info, fmt.Errorf("profile %s has no name", platformUserID))
	}

	return core.Succeeded(info)
}

// SubscribePage subscribes the app to webhook fields for a page
func (c *Client) SubscribePage(ctx context.Context, pageID string, fields []string) error {
	if c.token == "" {
		return core.ErrNotConfigured
	}

	var result struct {
		Success bool `json:"success"`
	}
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("subscribed_fields", strings.Join(fields, ",")).
		SetQueryParam("access_token", c.token).
		SetResult(&result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/subscribed_apps", pageID))
	if err != nil {
		return fmt.Errorf("subscribe page: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return apiErr.describe(resp.StatusCode())
	}
	if !result.Success {
		return fmt.Errorf("subscribe page %s: graph api returned success=false", pageID)
	}

	return nil
}

// MaskToken masks a token for logging (shows first 3 and last 3 chars)
func MaskToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	if len(token) <= 6 {
		return "***"
	}
	return token[:3] + "***" + token[len(token)-3:]
}
