// Package service wires the attack map together: ingest queue, worker,
// attack log, debounced marker state and the animation panel.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	eventqueue "github.com/okian/attackmap/internal/adapters/mq/queue"
	"github.com/okian/attackmap/internal/adapters/mq/worker"
	"github.com/okian/attackmap/internal/adapters/stream"
	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/animation/panel"
	"github.com/okian/attackmap/internal/animation/scheduler"
	"github.com/okian/attackmap/internal/domain/dedupe"
	"github.com/okian/attackmap/internal/domain/feed"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
	"github.com/okian/attackmap/pkg/metrics"
)

const drainPoll = time.Millisecond

// ErrNotStarted is returned by calls that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service is the attack map application.
type Service struct {
	mu sync.RWMutex

	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	worker    *worker.InMemoryWorker
	log       *feed.Log
	state     *feed.State
	debouncer *feed.Debouncer
	panel     *panel.Panel

	queueSize     int
	dedupeSize    int
	logCapacity   int
	debounce      time.Duration
	teams         []model.Team
	panelOpts     []panel.Option
	sources       []stream.Source
	clock         clock.Clock
	systemMetrics bool

	enqueued  atomic.Int64
	processed atomic.Int64

	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	logger logger.Logger
}

// New creates a service; nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:   10_000,
		dedupeSize:  dedupe.DefaultMaxSize,
		logCapacity: feed.DefaultLogCapacity,
		debounce:    feed.DefaultDebounce,
		clock:       clock.Real(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and runs the worker, the sources and the
// system collector until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting attack map service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.log = feed.NewLog(s.logCapacity)
	s.state = feed.NewState()

	// A completed batch removes its markers from the upstream state.
	state := s.state
	popts := append([]panel.Option{panel.WithLogger(s.logger.Named("panel"))}, s.panelOpts...)
	popts = append(popts, panel.WithSchedulerOptions(scheduler.WithBatchDone(func(count int) {
		state.Drop(count)
	})))
	s.panel = panel.New(s.teams, popts...)
	s.state.Subscribe(s.panel.Observe)

	s.debouncer = feed.NewDebouncer(s.debounce, func(events []model.AttackEvent) {
		state.Append(events...)
	}, feed.WithDebounceClock(s.clock))

	s.worker = worker.NewInMemoryWorker(s.queue, worker.SinkFunc(s.accept),
		worker.WithLogger(s.logger.Named("worker")))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		s.worker.Run(gctx)
		return nil
	})
	for _, src := range s.sources {
		g.Go(func() error {
			s.runSource(gctx, src)
			return nil
		})
	}
	if s.systemMetrics {
		g.Go(func() error {
			if err := metrics.RunSystemCollector(gctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn(gctx, "system collector stopped", logger.Error(err))
			}
			return nil
		})
	}
	s.cancel = cancel
	s.group = g

	s.started = true
	s.logger.Info(ctx, "attack map service started",
		logger.Int("teams", len(s.teams)),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("sources", len(s.sources)),
	)
	return nil
}

func (s *Service) runSource(ctx context.Context, src stream.Source) {
	err := src.Run(ctx, s.Ingest)
	if err == nil || ctx.Err() != nil {
		return
	}
	metrics.RecordSourceError(src.Name(), "stopped")
	s.logger.Error(ctx, "source stopped", logger.String("source", src.Name()), logger.Error(err))
}

// Stop closes the queue, waits for the worker and sources, then tears the
// animation down. No callback fires after Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	// Sources call Enqueue while we wait for them; release the lock first.
	s.started = false
	q, cancel, g, debouncer, p := s.queue, s.cancel, s.group, s.debouncer, s.panel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping attack map service...")

	_ = q.Close()
	cancel()
	_ = g.Wait()
	debouncer.Close()
	p.Close()

	s.logger.Info(ctx, "attack map service stopped")
}

// accept is the worker's sink: log the attack and feed the debouncer.
func (s *Service) accept(_ context.Context, ev model.AttackEvent) error { //nolint:gocritic // hugeParam
	defer s.processed.Add(1)
	s.log.Add(ev, s.clock.Now())
	metrics.UpdateAttackLogSize(s.log.Len())
	s.debouncer.Add(ev)
	return nil
}

// SeenAndRecord implements dedupe.Deduper.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	d := s.dedup()
	if d == nil {
		return false
	}
	return d.SeenAndRecord(ctx, id)
}

// Unrecord implements dedupe.Deduper.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if d := s.dedup(); d != nil {
		d.Unrecord(ctx, id)
	}
}

// Size implements dedupe.Deduper.
func (s *Service) Size() int64 {
	d := s.dedup()
	if d == nil {
		return 0
	}
	return d.Size()
}

func (s *Service) dedup() dedupe.Deduper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper
}

// Enqueue queues an attack. Attacks without an id get a generated one so
// log entries stay addressable. Returns false on backpressure or when the
// service is not running.
func (s *Service) Enqueue(ctx context.Context, ev model.AttackEvent) bool { //nolint:gocritic // hugeParam
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if !s.queue.Enqueue(ctx, ev) {
		return false
	}
	s.enqueued.Add(1)
	return true
}

// Ingest is the stream.Handler for push sources: deduplicate, then queue.
// Events refused by a full queue are dropped and counted.
func (s *Service) Ingest(ctx context.Context, ev model.AttackEvent) { //nolint:gocritic // hugeParam
	if ev.EventID != "" && s.SeenAndRecord(ctx, ev.EventID) {
		metrics.RecordEventDuplicate()
		return
	}
	if !s.Enqueue(ctx, ev) {
		if ev.EventID != "" {
			s.Unrecord(ctx, ev.EventID)
		}
		metrics.RecordEventRejected("backpressure")
		s.logger.Warn(ctx, "attack dropped, queue full",
			logger.Int("attacker", ev.Attacker.ID), logger.Int("defender", ev.Defender.ID))
	}
}

// Log returns up to limit attacks, newest first.
func (s *Service) Log(limit int) []feed.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.log == nil {
		return nil
	}
	return s.log.Entries(limit)
}

// Frame samples the animation.
func (s *Service) Frame() panel.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.panel == nil {
		return panel.Frame{}
	}
	return s.panel.Frame()
}

// SetRoster replaces the team roster.
func (s *Service) SetRoster(teams []model.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = teams
	if s.panel != nil {
		s.panel.SetRoster(teams)
	}
}

// Drain waits until every queued attack reached the feed, closes the open
// arrival and waits for pending animation callbacks.
func (s *Service) Drain(ctx context.Context) error {
	s.mu.RLock()
	started, debouncer, p := s.started, s.debouncer, s.panel
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for s.processed.Load() < s.enqueued.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	debouncer.Flush()
	p.Flush()
	return nil
}

// GetStats reports the pipeline's counters.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"logCapacity": s.logCapacity,
		"teams":       len(s.teams),
		"sources":     len(s.sources),
	}

	if s.panel != nil {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["enqueued"] = s.enqueued.Load()
		stats["processed"] = s.processed.Load()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["logLength"] = s.log.Len()
		stats["markers"] = s.state.Len()
		stats["buffered"] = s.debouncer.Buffered()
		stats["animation"] = s.panel.Stats()
	}

	return stats
}
