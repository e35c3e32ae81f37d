// Package sweeper periodically inspects the task pool. Expired unassigned
// tasks are already unselectable, so a sweep only reports what it sees.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/robfig/cron/v3"
)

type StatsSource interface {
	TaskStats(ctx context.Context) (tasks.Stats, error)
}

type Sweeper struct {
	log      *slog.Logger
	source   StatsSource
	metrics  *metrics.Collector
	schedule string
	timeout  time.Duration
	now      func() time.Time
}

type Config struct {
	logger   *slog.Logger
	metrics  *metrics.Collector
	schedule string
	timeout  time.Duration
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Config) {
		c.metrics = collector
	}
}

// WithSchedule sets the cron expression, e.g. "@every 1m" or "*/5 * * * *".
func WithSchedule(schedule string) Option {
	return func(c *Config) {
		c.schedule = schedule
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.timeout = timeout
	}
}

func New(source StatsSource, opts ...Option) *Sweeper {
	cfg := &Config{
		logger:   slog.Default(),
		schedule: "@every 1m",
		timeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.metrics == nil {
		cfg.metrics = metrics.NewCollector()
	}

	return &Sweeper{
		log:      cfg.logger.With(slog.String("module", "sweeper")),
		source:   source,
		metrics:  cfg.metrics,
		schedule: cfg.schedule,
		timeout:  cfg.timeout,
		now:      time.Now,
	}
}

// Run schedules sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	if _, err := c.AddFunc(s.schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if _, err := s.Sweep(sweepCtx); err != nil {
			s.log.Error("sweep failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.log.Info("Start task pool sweeper", slog.String("schedule", s.schedule))

	c.Start()

	<-ctx.Done()

	s.log.Info("Context done, stopping task pool sweeper")

	<-c.Stop().Done()

	return nil
}

// Sweep reads the pool state once and exports it.
func (s *Sweeper) Sweep(ctx context.Context) (tasks.Stats, error) {
	stats, err := s.source.TaskStats(ctx)
	if err != nil {
		return tasks.Stats{}, fmt.Errorf("source.TaskStats: %w", err)
	}

	s.metrics.PoolSwept(stats.Open, stats.ExpiredUnclaimed, stats.Held, stats.HoldElapsed, s.now())

	s.log.Info("task pool swept",
		slog.Int64("open", stats.Open),
		slog.Int64("expired_unclaimed", stats.ExpiredUnclaimed),
		slog.Int64("held", stats.Held),
		slog.Int64("hold_elapsed", stats.HoldElapsed))

	if stats.HoldElapsed > 0 {
		// Assignments past their hold that were never submitted stay with
		// their assignee; surface them so an operator can follow up.
		s.log.Warn("assigned tasks past their hold period", slog.Int64("count", stats.HoldElapsed))
	}

	return stats, nil
}
