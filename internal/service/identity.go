package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
)

// UserHints carries identity data the platform already supplied with the event
type UserHints struct {
	DisplayName   string
	ProfilePicURL string
	PhoneNumber   string
}

// EnsureUser upserts the platform user and refreshes last_seen.
//
// Without a supplied display name the stored name is reused, then a Graph profile lookup
// is attempted for Facebook and Instagram. When everything fails a placeholder name is used.
func (s *IngestService) EnsureUser(ctx context.Context, platformUserID string, platform core.Platform, hints UserHints) (*core.PlatformUser, error) {
	user := &core.PlatformUser{
		PlatformUserID: platformUserID,
		Platform:       platform,
		DisplayName:    hints.DisplayName,
		ProfilePicURL:  hints.ProfilePicURL,
		PhoneNumber:    hints.PhoneNumber,
		LastSeenAt:     s.now(),
	}

	existing, err := s.store.GetUser(ctx, platformUserID, platform)
	if err != nil {
		s.logger.Warn("failed to load platform user", zap.String("platform_user_id", platformUserID), zap.Error(err))
	}
	if existing != nil {
		user.ID = existing.ID
		if user.ProfilePicURL == "" {
			user.ProfilePicURL = existing.ProfilePicURL
		}
		if user.PhoneNumber == "" {
			user.PhoneNumber = existing.PhoneNumber
		}
		if user.DisplayName == "" && !isPlaceholderName(existing.DisplayName) {
			user.DisplayName = existing.DisplayName
		}
	}

	if user.DisplayName == "" && platform != core.PlatformWhatsApp {
		profile := s.fetchProfile(ctx, platformUserID, platform)
		user.DisplayName = profile.Name
		if profile.ProfilePicURL != "" {
			user.ProfilePicURL = profile.ProfilePicURL
		}
	}

	if user.DisplayName == "" {
		user.DisplayName = PlaceholderName(platformUserID, platform)
	}

	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", platformUserID, err)
	}
	return user, nil
}

// fetchProfile is best effort; a failed lookup returns an empty profile
func (s *IngestService) fetchProfile(ctx context.Context, platformUserID string, platform core.Platform) core.ProfileInfo {
	if s.profiles == nil {
		return core.ProfileInfo{}
	}

	out := s.profiles.FetchProfile(ctx, platformUserID, platform)
	switch out.State {
	case core.OutcomeFailed:
		if errors.Is(out.Err, core.ErrNotConfigured) {
			s.logger.Debug("profile lookup skipped, no page access token")
		} else {
			s.logger.Warn("profile lookup failed",
				zap.String("platform_user_id", platformUserID),
				zap.String("platform", string(platform)),
				zap.Error(out.Err))
		}
		return core.ProfileInfo{}
	case core.OutcomeDegraded:
		s.logger.Debug("profile lookup degraded", zap.String("platform_user_id", platformUserID), zap.Error(out.Err))
	}

	profile := out.Value
	if profile.Name == "" {
		profile.Name = profile.Username
	}
	return profile
}

// PlaceholderName is the display name used when no real name is known
func PlaceholderName(platformUserID string, platform core.Platform) string {
	if platform == core.PlatformInstagram {
		suffix := platformUserID
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		return "Instagram User " + suffix
	}
	return platform.Label() + " User"
}

func isPlaceholderName(name string) bool {
	return name == "" ||
		strings.HasPrefix(name, "Instagram User") ||
		name == core.PlatformFacebook.Label()+" User" ||
		name == core.PlatformWhatsApp.Label()+" User"
}

// EnsureConversation returns the most recent active conversation for the identity,
// creating one when none is open.
func (s *IngestService) EnsureConversation(ctx context.Context, platformUserID string, platform core.Platform) (string, error) {
	conv, err := s.store.FindActiveConversation(ctx, platformUserID, platform)
	if err != nil {
		return "", fmt.Errorf("failed to find conversation: %w", err)
	}
	if conv != nil {
		return conv.ID, nil
	}

	id, err := s.store.CreateConversation(ctx, &core.Conversation{
		PlatformUserID: platformUserID,
		Platform:       platform,
		IsActive:       true,
		UnreadCount:    0,
		CreatedAt:      s.now(),
		UpdatedAt:      s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", id),
		zap.String("platform", string(platform)),
		zap.String("platform_user_id", platformUserID))
	return id, nil
}
