package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/core"
)

// MaintenanceService runs the periodic housekeeping jobs
type MaintenanceService struct {
	repo          core.MaintenanceRepository
	idleDays      int
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
}

// NewMaintenanceService creates a maintenance service
func NewMaintenanceService(repo core.MaintenanceRepository, idleDays, retentionDays int, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		repo:          repo,
		idleDays:      idleDays,
		retentionDays: retentionDays,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// DeactivateIdleConversations closes conversations without activity for idleDays.
// Zero or negative idleDays disables the job.
func (m *MaintenanceService) DeactivateIdleConversations(ctx context.Context) (int64, error) {
	if m.idleDays <= 0 {
		return 0, nil
	}

	cutoff := m.now().AddDate(0, 0, -m.idleDays)
	n, err := m.repo.DeactivateIdleConversations(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate idle conversations: %w", err)
	}

	m.logger.Info("idle conversations deactivated", zap.Int64("count", n), zap.Time("idle_since", cutoff))
	return n, nil
}

// PruneWebhookLogs removes webhook logs older than retentionDays
func (m *MaintenanceService) PruneWebhookLogs(ctx context.Context) (int64, error) {
	if m.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := m.now().AddDate(0, 0, -m.retentionDays)
	n, err := m.repo.PruneWebhookLogs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook logs: %w", err)
	}

	m.logger.Info("webhook logs pruned", zap.Int64("count", n), zap.Time("before", cutoff))
	return n, nil
}

// RunAll executes every job, continuing past failures
func (m *MaintenanceService) RunAll(ctx context.Context) {
	if _, err := m.DeactivateIdleConversations(ctx); err != nil {
		m.logger.Error("maintenance job failed", zap.String("job", "idle_conversations"), zap.Error(err))
	}
	if _, err := m.PruneWebhookLogs(ctx); err != nil {
		m.logger.Error("maintenance job failed", zap.String("job", "webhook_log_retention"), zap.Error(err))
	}
}
