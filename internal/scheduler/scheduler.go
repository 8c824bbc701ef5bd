package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/parks-context/internal/resilience"
)

// TokenGauge receives rate limiter snapshots.
type TokenGauge interface {
	SetAvailableTokens(provider string, tokens float64)
}

// Pruner drops expired provider outcomes.
type Pruner interface {
	Prune() int
}

// Scheduler periodically publishes rate limiter state and prunes the
// provider health history.
type Scheduler struct {
	scheduler *gocron.Scheduler
	limiters  []*resilience.RateLimiter
	gauge     TokenGauge
	pruner    Pruner
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(limiters []*resilience.RateLimiter, gauge TokenGauge, pruner Pruner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		limiters:  limiters,
		gauge:     gauge,
		pruner:    pruner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 15
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler_started", zap.Int("interval_seconds", seconds))
	return nil
}

// RunOnce publishes every limiter's token count and prunes the history.
func (s *Scheduler) RunOnce() {
	if s.gauge != nil {
		for _, l := range s.limiters {
			s.gauge.SetAvailableTokens(l.Name(), l.Tokens())
		}
	}
	if s.pruner != nil {
		if n := s.pruner.Prune(); n > 0 {
			s.logger.Debug("provider_history_pruned", zap.Int("removed", n))
		}
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
