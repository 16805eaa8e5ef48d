package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceService_Cutoffs(t *testing.T) {
	repo := &fakeMaintenance{}
	svc := NewMaintenanceService(repo, 30, 14, nil)
	fixed := time.Date(2026, 3, 31, 3, 15, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	n, err := svc.DeactivateIdleConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 15, 0, 0, time.UTC), repo.idleSince)

	n, err = svc.PruneWebhookLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, time.Date(2026, 3, 17, 3, 15, 0, 0, time.UTC), repo.before)
}

func TestMaintenanceService_Disabled(t *testing.T) {
	repo := &fakeMaintenance{}
	svc := NewMaintenanceService(repo, 0, 0, nil)

	n, err := svc.DeactivateIdleConversations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, repo.idleSince.IsZero())

	n, err = svc.PruneWebhookLogs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMaintenanceService_Errors(t *testing.T) {
	repo := &fakeMaintenance{err: errors.New("db down")}
	svc := NewMaintenanceService(repo, 30, 14, nil)

	_, err := svc.DeactivateIdleConversations(context.Background())
	assert.ErrorContains(t, err, "db down")

	// RunAll keeps going after a failed job
	svc.RunAll(context.Background())
	assert.False(t, repo.before.IsZero())
}
