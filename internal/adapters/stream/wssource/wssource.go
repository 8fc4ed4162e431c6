// Package wssource follows the contest's Socket.IO feed over a plain
// WebSocket and delivers every "attack-event" it receives.
package wssource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"

	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/pkg/logger"
	"github.com/okian/attackmap/pkg/metrics"
)

const (
	sourceName       = "socket"
	defaultEvent     = "attack-event"
	defaultDelay     = time.Second
	defaultMaxDelay  = time.Minute
	fallbackDeadline = 60 * time.Second
	stableAfter      = 30 * time.Second
)

// Errors returned by Run.
var (
	ErrNoURL        = errors.New("feed url is empty")
	ErrProtocol     = errors.New("socket.io protocol error")
	ErrDisconnected = errors.New("server closed the session")
)

// Source is a Socket.IO client for the attack feed.
type Source struct {
	url      string
	event    string
	dialer   *websocket.Dialer
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	// stableAfter is how long a session must last to reset the backoff.
	stableAfter time.Duration
	logger      logger.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithEvent overrides the event name, "attack-event" by default.
func WithEvent(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.event = name
		}
	}
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Source) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithRetry bounds the consecutive failed connections, counting dial errors
// and sessions that drop early. Zero attempts retries until the context is
// cancelled.
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

// New creates a client for the feed at rawURL (http, https, ws or wss).
func New(rawURL string, opts ...Option) *Source {
	s := &Source{
		url:      rawURL,
		event:    defaultEvent,
		dialer:   websocket.DefaultDialer,
		delay:    defaultDelay,
		maxDelay: defaultMaxDelay,
		logger:   logger.Nop(),

		stableAfter: stableAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements stream.Source.
func (s *Source) Name() string { return sourceName }

// Run keeps a session open until ctx is cancelled. Failed dials and
// sessions that drop before stableAfter are retried with exponential
// backoff; the backoff starts over after a session that stayed up.
func (s *Source) Run(ctx context.Context, h stream.Handler) error {
	if s.url == "" {
		return ErrNoURL
	}
	endpoint, err := socketURL(s.url)
	if err != nil {
		return err
	}

	for {
		err := retry.Do(
			func() error { return s.cycle(ctx, endpoint, h) },
			retry.Context(ctx),
			retry.Attempts(s.attempts),
			retry.Delay(s.delay),
			retry.MaxDelay(s.maxDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				s.logger.Warn(ctx, "feed unavailable, retrying", logger.Int("attempt", int(n)+1), logger.Error(err))
			}),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
	}
}

// cycle dials once and runs a session. It returns nil only when the session
// stayed up for stableAfter before it ended.
func (s *Source) cycle(ctx context.Context, endpoint string, h stream.Handler) error {
	conn, resp, err := s.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		metrics.RecordSourceError(sourceName, "dial")
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	began := time.Now()
	err = s.session(ctx, conn, h)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	metrics.RecordSourceError(sourceName, "session")
	if time.Since(began) >= s.stableAfter {
		s.logger.Warn(ctx, "session ended, reconnecting", logger.Error(err))
		return nil
	}
	return fmt.Errorf("session ended early: %w", err)
}

// session speaks the protocol on one connection until it fails or ctx ends.
func (s *Source) session(ctx context.Context, conn *websocket.Conn, h stream.Handler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	deadline := fallbackDeadline
	for {
		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return err
		}
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}

		p, err := decodePacket(string(frame))
		if err != nil {
			metrics.RecordSourceError(sourceName, "protocol")
			s.logger.Debug(ctx, "ignoring frame", logger.Error(err))
			continue
		}

		switch p.engine {
		case engineOpen:
			var hs handshake
			if err := json.Unmarshal([]byte(p.data), &hs); err == nil && hs.PingInterval > 0 {
				deadline = time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte{engineMessage, socketConnect}); err != nil {
				return err
			}
		case enginePing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{enginePong}); err != nil {
				return err
			}
		case engineClose:
			return ErrDisconnected
		case engineMessage:
			if err := s.message(ctx, p, h); err != nil {
				return err
			}
		}
	}
}

func (s *Source) message(ctx context.Context, p packet, h stream.Handler) error { //nolint:gocritic // hugeParam
	switch p.socket {
	case socketConnect:
		metrics.RecordSourceConnect(sourceName)
		s.logger.Info(ctx, "connected", logger.String("event", s.event))
	case socketConnectError:
		return fmt.Errorf("%w: connect refused: %s", ErrProtocol, p.data)
	case socketDisconnect:
		return ErrDisconnected
	case socketEvent:
		if p.event != s.event || len(p.args) == 0 {
			return nil
		}
		events, err := stream.Decode(p.args[0])
		if err != nil {
			metrics.RecordEventRejected("decode")
			s.logger.Debug(ctx, "dropping event", logger.Error(err))
			return nil
		}
		for _, ev := range events {
			metrics.RecordEventReceived(sourceName)
			h(ctx, ev)
		}
	}
	return nil
}

// socketURL turns a feed base URL into the Engine.IO websocket endpoint.
func socketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("parse feed url: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	} else if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
