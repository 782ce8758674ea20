// Package scheduler runs housekeeping jobs on a fixed interval.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultPruneInterval is used when no interval is configured.
const DefaultPruneInterval = 10 * time.Minute

// Pruner drops expired history. *history.MemoryStore implements it.
type Pruner interface {
	Prune() int
}

// Scheduler prunes history retention on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler. A non-positive interval uses DefaultPruneInterval.
func New(pruner Pruner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pruner:    pruner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the prune job and starts the underlying scheduler.
// The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	if s.pruner == nil {
		s.logger.Info("scheduler: no history store configured; nothing to schedule")
		return nil
	}
	_, err := s.scheduler.Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(s.prune)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) prune() {
	start := time.Now()
	removed := s.pruner.Prune()
	s.logger.Debug("history retention pruned",
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(start)))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
