package service

import (
	"time"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/internal/adapters/stream/natsource"
	"github.com/okian/attackmap/internal/adapters/stream/wssource"
	"github.com/okian/attackmap/internal/animation/panel"
	"github.com/okian/attackmap/internal/animation/scheduler"
	"github.com/okian/attackmap/internal/config"
	"github.com/okian/attackmap/pkg/logger"
)

// Sources reconnect until shutdown, backing off up to a minute.
const (
	sourceRetryDelay    = 500 * time.Millisecond
	sourceRetryMaxDelay = time.Minute
)

// OptionsFromConfig maps a loaded configuration onto service options.
// player may be nil, in which case no sound cues are played.
func OptionsFromConfig(cfg *config.Config, player scheduler.Player, l logger.Logger) []Option {
	if l == nil {
		l = logger.Nop()
	}

	sched := []scheduler.Option{
		scheduler.WithDurations(cfg.BeamDuration(), cfg.BulletDuration(), cfg.FadeDuration()),
		scheduler.WithPollInterval(cfg.PollInterval()),
		scheduler.WithAccounting(scheduler.ParseAccounting(cfg.Accounting)),
	}
	if player != nil && (cfg.ShotSFX != "" || cfg.ImpactSFX != "") {
		sched = append(sched, scheduler.WithSound(player, cfg.ShotSFX, cfg.ImpactSFX))
	}

	var sources []stream.Source
	if cfg.NATSURL != "" {
		sources = append(sources, natsource.New(cfg.NATSURL,
			natsource.WithSubject(cfg.NATSSubject),
			natsource.WithRetry(0, sourceRetryDelay, sourceRetryMaxDelay),
			natsource.WithLogger(l.Named("nats")),
		))
	}
	if cfg.FeedURL != "" {
		sources = append(sources, wssource.New(cfg.FeedURL,
			wssource.WithEvent(cfg.FeedEvent),
			wssource.WithRetry(0, sourceRetryDelay, sourceRetryMaxDelay),
			wssource.WithLogger(l.Named("socket")),
		))
	}

	return []Option{
		WithLogger(l),
		WithQueueSize(cfg.EventQueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithLogCapacity(cfg.LogCapacity),
		WithDebounce(cfg.DebounceWindow()),
		WithTeams(cfg.Teams),
		WithSources(sources...),
		WithPanelOptions(
			panel.WithPoolSize(cfg.PoolSize),
			panel.WithSchedulerOptions(sched...),
		),
	}
}
