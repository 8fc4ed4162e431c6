package panel

import (
	"github.com/okian/attackmap/internal/animation/pool"
	"github.com/okian/attackmap/internal/animation/scheduler"
	"github.com/okian/attackmap/internal/domain/geometry"
	"github.com/okian/attackmap/internal/domain/marker"
	"github.com/okian/attackmap/pkg/logger"
)

type settings struct {
	poolSize  int
	layout    geometry.Layout
	palette   marker.Palette
	logger    logger.Logger
	scheduler []scheduler.Option
}

// Option configures a Panel.
type Option func(*settings)

// WithPoolSize sets the number of animation slots.
func WithPoolSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

// WithLayout replaces the default 1500x750 layout.
func WithLayout(l geometry.Layout) Option {
	return func(s *settings) {
		s.layout = l
	}
}

// WithPalette sets the marker colour source.
func WithPalette(p marker.Palette) Option {
	return func(s *settings) {
		s.palette = p
	}
}

// WithLogger sets the logger of the panel and its scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchedulerOptions passes options through to the scheduler: durations,
// accounting, callbacks, sound and clock.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *settings) {
		s.scheduler = append(s.scheduler, opts...)
	}
}

func defaults() settings {
	return settings{
		poolSize: pool.DefaultSize,
		layout:   geometry.DefaultLayout(),
		logger:   logger.Nop(),
	}
}
