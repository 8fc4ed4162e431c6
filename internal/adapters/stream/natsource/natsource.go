// Package natsource subscribes to attack events published on NATS.
package natsource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/pkg/logger"
	"github.com/okian/attackmap/pkg/metrics"
)

const (
	sourceName     = "nats"
	defaultSubject = "attack-event"
	defaultDelay   = 500 * time.Millisecond
	defaultMaxWait = 30 * time.Second
)

// ErrNoURL is returned by Run when the source has no server URL.
var ErrNoURL = errors.New("nats url is empty")

// Source is a NATS subscriber delivering decoded attacks.
type Source struct {
	url      string
	subject  string
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	logger   logger.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithSubject overrides the subject, "attack-event" by default.
func WithSubject(subject string) Option {
	return func(s *Source) {
		if subject != "" {
			s.subject = subject
		}
	}
}

// WithRetry bounds the connection attempts. Zero attempts retries until the
// context is cancelled.
func WithRetry(attempts uint, delay, maxDelay time.Duration) Option {
	return func(s *Source) {
		s.attempts = attempts
		if delay > 0 {
			s.delay = delay
		}
		if maxDelay > 0 {
			s.maxDelay = maxDelay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a subscriber for url.
func New(url string, opts ...Option) *Source {
	s := &Source{
		url:      url,
		subject:  defaultSubject,
		delay:    defaultDelay,
		maxDelay: defaultMaxWait,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements stream.Source.
func (s *Source) Name() string { return sourceName }

// Run connects, subscribes and blocks until ctx is done. The NATS client
// reconnects on its own once the first connection is up.
func (s *Source) Run(ctx context.Context, h stream.Handler) error {
	if s.url == "" {
		return ErrNoURL
	}

	nc, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe(s.subject, func(m *nats.Msg) {
		s.handle(ctx, m.Data, h)
	})
	if err != nil {
		metrics.RecordSourceError(sourceName, "subscribe")
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	if err := nc.Flush(); err != nil {
		metrics.RecordSourceError(sourceName, "flush")
		return fmt.Errorf("flush subscription: %w", err)
	}
	s.logger.Info(ctx, "listening", logger.String("subject", s.subject))

	<-ctx.Done()

	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		s.logger.Debug(ctx, "unsubscribe failed", logger.Error(err))
	}
	return ctx.Err()
}

func (s *Source) connect(ctx context.Context) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			nc, err = nats.Connect(s.url,
				nats.Name("attackmap"),
				nats.MaxReconnects(-1),
				nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
					if err != nil {
						metrics.RecordSourceError(sourceName, "disconnect")
						s.logger.Warn(ctx, "disconnected", logger.Error(err))
					}
				}),
				nats.ReconnectHandler(func(c *nats.Conn) {
					metrics.RecordSourceConnect(sourceName)
					s.logger.Info(ctx, "reconnected", logger.String("url", c.ConnectedUrl()))
				}),
			)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.MaxDelay(s.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.RecordSourceError(sourceName, "connect")
			s.logger.Warn(ctx, "connect failed, retrying", logger.Int("attempt", int(n)+1), logger.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.url, err)
	}
	metrics.RecordSourceConnect(sourceName)
	return nc, nil
}

func (s *Source) handle(ctx context.Context, data []byte, h stream.Handler) {
	events, err := stream.Decode(data)
	if err != nil {
		metrics.RecordEventRejected("decode")
		s.logger.Debug(ctx, "dropping message", logger.Error(err))
		return
	}
	for _, ev := range events {
		metrics.RecordEventReceived(sourceName)
		h(ctx, ev)
	}
}
