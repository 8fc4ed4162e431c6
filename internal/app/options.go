package service

import (
	"time"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/animation/panel"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
)

// Option configures the Service.
type Option func(*Service)

// WithQueueSize sets the ingest queue bound.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered. Zero or less
// remembers all of them.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLogCapacity sets how many attacks the log keeps.
func WithLogCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.logCapacity = n
		}
	}
}

// WithDebounce sets the quiet window that closes an arrival.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithTeams sets the initial roster.
func WithTeams(teams []model.Team) Option {
	return func(s *Service) {
		s.teams = teams
	}
}

// WithPanelOptions passes options to the animation panel.
func WithPanelOptions(opts ...panel.Option) Option {
	return func(s *Service) {
		s.panelOpts = append(s.panelOpts, opts...)
	}
}

// WithSources adds push sources started with the service.
func WithSources(sources ...stream.Source) Option {
	return func(s *Service) {
		s.sources = append(s.sources, sources...)
	}
}

// WithClock replaces the wall clock of the debouncer.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSystemMetrics toggles the runtime metrics collector.
func WithSystemMetrics(enabled bool) Option {
	return func(s *Service) {
		s.systemMetrics = enabled
	}
}

// WithLogger sets the service logger.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
