package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one publish check. bucket is the wall-clock boundary that
// triggered it, truncated to the interval when alignment is on.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune the publish loop cadence.
type Options struct {
	// Interval between publish checks. The daily publish-hour gate lives in
	// the publisher; the scheduler only provides the heartbeat.
	Interval time.Duration
	// AlignToStart snaps ticks to interval boundaries (e.g. the top of the
	// hour) so restarts land on the same check times.
	AlignToStart bool
	// StartupDelay postpones the first check after process start.
	StartupDelay time.Duration
}

// Scheduler fires publish checks on an aligned wall-clock cadence.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks until ctx is cancelled, invoking tick on every boundary. A
// failing tick is logged and the loop keeps going; one bad check must not
// stop the daily publication.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextBoundary(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			// Fell behind (slow tick or clock jump); realign instead of
			// firing a burst of stale checks.
			next = s.nextBoundary(time.Now().UTC())
			delay = time.Until(next)
		}

		s.logger.Debug().Time("next_check", next).Msg("waiting for next publish check")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		bucket := next
		if s.opts.AlignToStart {
			bucket = next.Truncate(s.opts.Interval)
		}
		s.logger.Info().Time("bucket", bucket).Msg("running publish check")

		if err := tick(ctx, bucket); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("publish check failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextBoundary(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	boundary := now.Truncate(s.opts.Interval)
	if !boundary.After(now) {
		boundary = boundary.Add(s.opts.Interval)
	}
	return boundary
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
