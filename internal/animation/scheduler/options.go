package scheduler

import (
	"time"

	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDurations sets the beam draw-in, bullet travel and beam fade durations.
// Non-positive values keep the defaults.
func WithDurations(beam, bullet, fade time.Duration) Option {
	return func(s *Scheduler) {
		if beam > 0 {
			s.beamDur = beam
		}
		if bullet > 0 {
			s.bulletDur = bullet
		}
		if fade > 0 {
			s.fadeDur = fade
		}
	}
}

// WithTravelTime derives the bullet travel duration per job instead of
// using the fixed one.
func WithTravelTime(fn func(model.MarkerJob) time.Duration) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.travel = fn
		}
	}
}

// WithPollInterval sets the retry delay used while the pool is saturated.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAccounting selects how completed jobs credit batches.
func WithAccounting(a Accounting) Option {
	return func(s *Scheduler) {
		s.accounting = a
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPath sets how a job's trajectory is computed.
func WithPath(fn PathFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.path = fn
		}
	}
}

// WithSlots sets the roster size the default path lays slots out among.
// It has no effect together with WithPath.
func WithSlots(total int) Option {
	return func(s *Scheduler) {
		if total > 0 {
			s.slots = total
		}
	}
}

// WithBatchDone registers the per-batch completion callback.
func WithBatchDone(fn func(count int)) Option {
	return func(s *Scheduler) {
		s.onBatchDone = fn
	}
}

// WithMarkerDone registers the per-job completion callback. It is only used
// when no batch callback is registered, and then runs count times per batch.
func WithMarkerDone(fn func()) Option {
	return func(s *Scheduler) {
		s.onMarkerDone = fn
	}
}

// WithShot registers a callback for jobs entering the drawing phase.
func WithShot(fn func(model.MarkerJob)) Option {
	return func(s *Scheduler) {
		s.onShot = fn
	}
}

// WithImpact registers a callback for jobs reaching their defender.
func WithImpact(fn func(model.MarkerJob)) Option {
	return func(s *Scheduler) {
		s.onImpact = fn
	}
}

// WithSound plays shotURL and impactURL through p. Either URL may be empty.
func WithSound(p Player, shotURL, impactURL string) Option {
	return func(s *Scheduler) {
		s.player = p
		s.shotURL = shotURL
		s.impactURL = impactURL
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
