package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

// RetentionSchedule runs the submission cleanup daily at 3:14 AM
const RetentionSchedule = "14 3 * * *"

// Scheduler manages background jobs
type Scheduler struct {
	cron          *cron.Cron
	store         store.Store
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time

	// retentionOff is set once the backend reports it cannot prune
	retentionOff atomic.Bool
}

// NewScheduler creates a new job scheduler. retentionDays <= 0 disables the
// retention job.
func NewScheduler(st store.Store, retentionDays int, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:          cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		store:         st,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if s.retentionDays > 0 {
		_, err := s.cron.AddFunc(RetentionSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			s.PruneSubmissions(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule retention job: %w", err)
		}
	} else {
		s.logger.Info("Submission retention disabled")
	}

	s.cron.Start()
	s.logger.Info("Job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Job scheduler stopped")
}

// PruneSubmissions deletes submissions older than the retention window
func (s *Scheduler) PruneSubmissions(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 || s.retentionOff.Load() {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.DeleteSubmissionsBefore(ctx, cutoff)
	if errors.Is(err, errors.ErrUnsupported) {
		s.retentionOff.Store(true)
		s.logger.Info("Store does not support retention, disabling cleanup")
		return 0, nil
	}
	if err != nil {
		s.logger.Error("Failed to cleanup old submissions", zap.Error(err))
		return 0, err
	}

	s.logger.Info("Cleaned up old submissions", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// cronLogger adapts zap to cron's logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
