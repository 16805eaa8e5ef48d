package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

// MaintenanceRunner runs the housekeeping jobs
type MaintenanceRunner interface {
	RunAll(ctx context.Context)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron        *cron.Cron
	schedule    string
	maintenance MaintenanceRunner
	logger      *zap.Logger
}

// NewScheduler creates a new scheduler instance. schedule is a standard 5-field cron expression.
func NewScheduler(schedule string, maintenance MaintenanceRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:        cron.New(),
		schedule:    schedule,
		maintenance: maintenance,
		logger:      logger,
	}
}

// Start registers the maintenance job and starts the scheduler.
// An invalid cron expression leaves the scheduler stopped.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("maintenance_cron", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runMaintenance); err != nil {
		s.logger.Error("failed to schedule maintenance", zap.Error(err))
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runMaintenance() {
	s.logger.Info("running maintenance")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.maintenance.RunAll(ctx)
}
