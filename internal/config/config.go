// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and ATTACKMAP_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/attackmap/internal/domain/model"
)

// Accounting modes for batch completion.
const (
	AccountingOwner = "owner"
	AccountingHead  = "head"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory ingest queue.
	EventQueueSize int `koanf:"queue_size"`

	// DedupeSize sets the number of event ids remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`

	// LogCapacity bounds the attack log.
	LogCapacity int `koanf:"log_capacity"`

	// PoolSize is the number of animation slots.
	PoolSize int `koanf:"pool_size"`

	// Animation phase durations and the saturated-pool poll interval.
	BeamMS   int `koanf:"beam_ms"`
	BulletMS int `koanf:"bullet_ms"`
	FadeMS   int `koanf:"fade_ms"`
	PollMS   int `koanf:"poll_ms"`

	// DebounceMS is the quiet window that groups arrivals into one batch.
	DebounceMS int `koanf:"debounce_ms"`

	// Accounting selects batch crediting: "owner" or "head".
	Accounting string `koanf:"accounting"`

	// ShotSFX and ImpactSFX are optional audio cue paths or URLs.
	ShotSFX   string `koanf:"shot_sfx"`
	ImpactSFX string `koanf:"impact_sfx"`

	// Teams is the ordered roster; a team's index is its layout slot.
	Teams []model.Team `koanf:"teams"`

	// NATSURL enables the NATS source when set.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// FeedURL enables the socket.io feed client when set.
	FeedURL   string `koanf:"feed_url"`
	FeedEvent string `koanf:"feed_event"`

	// RateLimitPerMin caps POST /events per client IP; 0 disables it.
	RateLimitPerMin int `koanf:"rate_limit_per_min"`

	// FrameFPS is the terminal client's redraw rate.
	FrameFPS int `koanf:"frame_fps"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		EventQueueSize:  10_000,
		DedupeSize:      50_000,
		LogCapacity:     500,
		PoolSize:        24,
		BeamMS:          300,
		BulletMS:        700,
		FadeMS:          150,
		PollMS:          16,
		DebounceMS:      1000,
		Accounting:      AccountingOwner,
		NATSSubject:     "attack-event",
		FeedEvent:       "attack-event",
		RateLimitPerMin: 600,
		FrameFPS:        30,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	positive := map[string]int{
		"queue_size":   c.EventQueueSize,
		"log_capacity": c.LogCapacity,
		"pool_size":    c.PoolSize,
		"beam_ms":      c.BeamMS,
		"bullet_ms":    c.BulletMS,
		"fade_ms":      c.FadeMS,
		"poll_ms":      c.PollMS,
		"frame_fps":    c.FrameFPS,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, key, v)
		}
	}
	if c.DedupeSize < 0 || c.DebounceMS < 0 || c.RateLimitPerMin < 0 {
		return fmt.Errorf("%w: dedupe_size, debounce_ms and rate_limit_per_min must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Accounting) {
	case AccountingOwner, AccountingHead:
	default:
		return fmt.Errorf("%w: accounting must be %q or %q, got %q", ErrInvalidConfig, AccountingOwner, AccountingHead, c.Accounting)
	}
	seen := make(map[int]struct{}, len(c.Teams))
	for _, t := range c.Teams {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate team id %d", ErrInvalidConfig, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// BeamDuration is the beam draw-in duration.
func (c *Config) BeamDuration() time.Duration { return ms(c.BeamMS) }

// BulletDuration is the bullet travel duration.
func (c *Config) BulletDuration() time.Duration { return ms(c.BulletMS) }

// FadeDuration is the beam fade-out duration.
func (c *Config) FadeDuration() time.Duration { return ms(c.FadeMS) }

// PollInterval is the pump retry delay while the pool is saturated.
func (c *Config) PollInterval() time.Duration { return ms(c.PollMS) }

// DebounceWindow is the arrival grouping window.
func (c *Config) DebounceWindow() time.Duration { return ms(c.DebounceMS) }
