package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger removes expired keys from a store
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Scheduler runs periodic maintenance such as sweeping expired session keys
type Scheduler struct {
	cron     *cron.Cron
	store    Purger
	schedule string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler that sweeps store on the given cron schedule.
// Schedules accept five-field expressions and descriptors such as "@every 5m".
func NewScheduler(store Purger, schedule, timezone string, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(
			cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
	)

	return &Scheduler{
		cron:     c,
		store:    store,
		schedule: schedule,
		timeout:  30 * time.Second,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start registers the sweep job and runs the scheduler until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Str("schedule", s.schedule).Msg("Starting scheduler...")

	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Msg("Scheduler started and running")

	<-ctx.Done()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(s.timeout):
		s.logger.Warn().Msg("Timed out waiting for running jobs")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// Sweep purges expired keys once
func (s *Scheduler) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	removed, err := s.store.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to purge expired keys")
		return
	}

	s.logger.Debug().
		Int("removed", removed).
		Dur("duration", time.Since(startTime)).
		Msg("Expired keys purged")
}
