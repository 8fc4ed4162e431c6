// Package scheduler matches queued marker jobs to free animation slots and
// drives each job through its draw, impact and fade phases.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/okian/attackmap/internal/animation/clock"
	"github.com/okian/attackmap/internal/animation/pool"
	"github.com/okian/attackmap/internal/domain/geometry"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/logger"
	"github.com/okian/attackmap/pkg/metrics"
)

// Default animation timings.
const (
	DefaultBeamDuration   = 300 * time.Millisecond
	DefaultBulletDuration = 700 * time.Millisecond
	DefaultFadeDuration   = 150 * time.Millisecond
	DefaultPollInterval   = 16 * time.Millisecond
)

// Sound cue names used in logs and metrics.
const (
	cueShot   = "shot"
	cueImpact = "impact"
)

// Phase is the lifecycle position of a job.
type Phase int

// Job phases.
const (
	Queued Phase = iota
	Drawing
	Impacted
	Fading
	Done
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Drawing:
		return "drawing"
	case Impacted:
		return "impacted"
	case Fading:
		return "fading"
	case Done:
		return "done"
	}
	return "unknown"
}

// Accounting selects which batch a completed job credits.
type Accounting int

const (
	// CreditOwner credits the batch the job arrived with. Batches are still
	// reported strictly in arrival order: a drained batch waits for every
	// earlier batch to drain.
	CreditOwner Accounting = iota
	// CreditHead credits the oldest open batch whatever batch the job came
	// from. A job overtaking an earlier batch's jobs completes that earlier
	// batch early.
	CreditHead
)

func (a Accounting) String() string {
	if a == CreditHead {
		return "head"
	}
	return "owner"
}

// ParseAccounting maps "owner" and "head" to a mode. Anything else is
// CreditOwner.
func ParseAccounting(s string) Accounting {
	if s == "head" {
		return CreditHead
	}
	return CreditOwner
}

// Player plays an audio cue. Failures are ignored by the scheduler.
type Player interface {
	Play(ctx context.Context, url string) error
}

// PathFunc returns the trajectory between two layout slots.
type PathFunc func(attacker, defender int) geometry.Curve

type batch struct {
	count     int
	remaining int
}

type job struct {
	marker   model.MarkerJob
	batch    *batch
	enqueued time.Time
}

type flight struct {
	slot   int
	job    job
	phase  Phase
	joins  int
	timers []clock.Timer
}

// Flight describes a job holding a slot.
type Flight struct {
	Slot  int             `json:"slot"`
	Job   model.MarkerJob `json:"job"`
	Phase Phase           `json:"phase"`
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	PoolSize         int    `json:"pool_size"`
	Busy             int    `json:"busy"`
	Pending          int    `json:"pending"`
	Drawing          int    `json:"drawing"`
	Fading           int    `json:"fading"`
	OpenBatches      int    `json:"open_batches"`
	Shots            uint64 `json:"shots"`
	Impacts          uint64 `json:"impacts"`
	CompletedJobs    uint64 `json:"completed_jobs"`
	CompletedBatches uint64 `json:"completed_batches"`
	Polls            uint64 `json:"polls"`
	Accounting       string `json:"accounting"`
	Closed           bool   `json:"closed"`
}

// Scheduler owns the slot pool and the batch list. All of their mutations
// happen under one mutex; callbacks run on a separate notifier goroutine in
// the order their events occurred.
type Scheduler struct {
	mu sync.Mutex

	pool    *pool.Pool
	clock   clock.Clock
	path    PathFunc
	slots   int
	travel  func(model.MarkerJob) time.Duration
	logger  logger.Logger
	notify  *notifier
	ctx     context.Context
	cancel  context.CancelFunc
	pending []job
	batches []*batch
	flights map[int]*flight
	poll    clock.Timer
	closed  bool

	beamDur      time.Duration
	bulletDur    time.Duration
	fadeDur      time.Duration
	pollInterval time.Duration
	accounting   Accounting

	onBatchDone  func(count int)
	onMarkerDone func()
	onShot       func(model.MarkerJob)
	onImpact     func(model.MarkerJob)

	player    Player
	shotURL   string
	impactURL string

	shots            uint64
	impacts          uint64
	completedJobs    uint64
	completedBatches uint64
	polls            uint64
}

// New creates a Scheduler driving p. The pool belongs to the scheduler from
// now on.
func New(p *pool.Pool, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:         p,
		clock:        clock.Real(),
		flights:      make(map[int]*flight, p.Size()),
		logger:       logger.Nop(),
		beamDur:      DefaultBeamDuration,
		bulletDur:    DefaultBulletDuration,
		fadeDur:      DefaultFadeDuration,
		pollInterval: DefaultPollInterval,
		accounting:   CreditOwner,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.path == nil {
		s.path = defaultPath(s.slots)
	}
	if s.travel == nil {
		fixed := s.bulletDur
		s.travel = func(model.MarkerJob) time.Duration { return fixed }
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.notify = newNotifier()

	metrics.UpdatePoolSize(p.Size())
	return s
}

// Enqueue queues jobs as one batch and dispatches as many as slots allow.
// An empty delta, or any call after Close, does nothing.
func (s *Scheduler) Enqueue(jobs []model.MarkerJob) {
	if len(jobs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	b := &batch{count: len(jobs), remaining: len(jobs)}
	s.batches = append(s.batches, b)
	now := s.clock.Now()
	for _, m := range jobs {
		s.pending = append(s.pending, job{marker: m, batch: b, enqueued: now})
	}

	s.logger.Debug(s.ctx, "batch queued",
		logger.Int("count", b.count),
		logger.Int("pending", len(s.pending)),
		logger.Int("open_batches", len(s.batches)),
	)
	s.pump()
}

// pump dispatches queued jobs FIFO while slots are free. When nothing could
// be dispatched it leaves a single poll outstanding. Callers hold s.mu.
func (s *Scheduler) pump() {
	dispatched := false
	for len(s.pending) > 0 {
		id, ok := s.pool.Acquire()
		if !ok {
			break
		}
		j := s.pending[0]
		s.pending[0] = job{}
		s.pending = s.pending[1:]
		s.launch(id, j)
		dispatched = true
	}

	if len(s.pending) == 0 {
		s.pending = nil
	} else if !dispatched && s.poll == nil {
		s.poll = s.clock.AfterFunc(s.pollInterval, s.onPoll)
		s.polls++
		metrics.RecordPumpPoll()
	}
	metrics.UpdateSlotUsage(s.pool.Busy(), len(s.pending))
}

func (s *Scheduler) onPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll = nil
	if s.closed {
		return
	}
	s.pump()
}

// defaultPath lays participants out on the default layout among total
// slots. Without a total it assumes the highest slot seen is the last one,
// which only matches a full roster; callers that know the roster pass
// WithSlots or WithPath.
func defaultPath(total int) PathFunc {
	layout := geometry.DefaultLayout()
	return func(a, d int) geometry.Curve {
		n := total
		if hi := max(a, d); n <= hi {
			n = hi + 1
		}
		return layout.Path(a, d, n)
	}
}

// launch starts the draw phase of j on slot id. Callers hold s.mu.
func (s *Scheduler) launch(id int, j job) {
	slot := s.pool.Slot(id)
	curve := s.path(j.marker.AttackerSlot, j.marker.DefenderSlot)
	now := s.clock.Now()
	travel := s.travel(j.marker)

	slot.Beam.Setup(curve, j.marker.Color)
	slot.Bullet.Setup(curve, j.marker.Color)
	slot.Beam.StartDraw(now, s.beamDur)
	slot.Bullet.StartTravel(now, travel)

	f := &flight{slot: id, job: j, phase: Drawing, joins: 2}
	s.flights[id] = f
	f.timers = []clock.Timer{
		s.clock.AfterFunc(s.beamDur, func() { s.join(f) }),
		s.clock.AfterFunc(travel, func() { s.join(f) }),
	}

	s.shots++
	metrics.RecordMarkerShot()
	marker := j.marker
	s.notify.push(func() {
		if s.onShot != nil && s.open() {
			s.onShot(marker)
		}
		s.play(cueShot, s.shotURL)
	})
}

// join counts one finished draw-phase animation. The second one moves the
// job to Impacted and then Fading.
func (s *Scheduler) join(f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.flights[f.slot] != f {
		return
	}
	f.joins--
	if f.joins > 0 {
		return
	}

	f.phase = Impacted
	s.impacts++
	metrics.RecordMarkerImpact()
	marker := f.job.marker
	s.notify.push(func() {
		if s.onImpact != nil && s.open() {
			s.onImpact(marker)
		}
		s.play(cueImpact, s.impactURL)
	})

	slot := s.pool.Slot(f.slot)
	slot.Beam.StartFade(s.clock.Now(), s.fadeDur)
	slot.Bullet.Hide()
	f.phase = Fading
	f.timers = []clock.Timer{s.clock.AfterFunc(s.fadeDur, func() { s.finish(f) })}
}

// finish releases the slot, updates batch accounting and pumps again.
func (s *Scheduler) finish(f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.flights[f.slot] != f {
		return
	}

	s.pool.Release(f.slot)
	delete(s.flights, f.slot)
	f.phase = Done
	f.timers = nil
	s.completedJobs++
	metrics.RecordMarkerDone(s.clock.Now().Sub(f.job.enqueued))

	s.account(f.job.batch)
	s.pump()
}

// account credits one completed job and reports drained batches in order.
// Callers hold s.mu.
func (s *Scheduler) account(owner *batch) {
	if len(s.batches) == 0 {
		return
	}

	switch s.accounting {
	case CreditHead:
		s.batches[0].remaining--
	default:
		owner.remaining--
	}

	for len(s.batches) > 0 && s.batches[0].remaining <= 0 {
		b := s.batches[0]
		s.batches[0] = nil
		s.batches = s.batches[1:]
		s.completedBatches++
		metrics.RecordBatchCompleted(b.count)
		s.reportBatch(b.count)
	}
	if len(s.batches) == 0 {
		s.batches = nil
	}
}

func (s *Scheduler) reportBatch(count int) {
	switch {
	case s.onBatchDone != nil:
		s.notify.push(func() {
			if s.open() {
				s.onBatchDone(count)
			}
		})
	case s.onMarkerDone != nil:
		s.notify.push(func() {
			for i := 0; i < count && s.open(); i++ {
				s.onMarkerDone()
			}
		})
	}
}

// open reports whether Close has not started yet. A delivery checks it
// before each step because Close does not wait for a running callback.
func (s *Scheduler) open() bool {
	return s.ctx.Err() == nil
}

// play runs on the notifier goroutine. Failures and panics are swallowed.
func (s *Scheduler) play(cue, url string) {
	if s.player == nil || url == "" || !s.open() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSoundError(cue)
			s.logger.Debug(s.ctx, "sound cue panicked", logger.String("cue", cue), logger.Any("panic", r))
		}
	}()
	if err := s.player.Play(s.ctx, url); err != nil {
		metrics.RecordSoundError(cue)
		s.logger.Debug(s.ctx, "sound cue failed", logger.String("cue", cue), logger.String("url", url), logger.Error(err))
	}
}

// Flush waits until every callback caused so far has run. It must not be
// called from a callback.
func (s *Scheduler) Flush() {
	s.notify.flush()
}

// Close cancels every animation and the poll, frees all slots and drops
// queued jobs and batches. No callback or sound cue starts after Close
// returns. A callback already running is not waited for, but the rest of its
// delivery is skipped. Close is idempotent and may be called from a callback.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	for id, f := range s.flights {
		for _, t := range f.timers {
			t.Stop()
		}
		s.pool.Release(id)
		delete(s.flights, id)
	}
	dropped := len(s.pending)
	s.pending = nil
	s.batches = nil
	s.cancel()
	metrics.UpdateSlotUsage(0, 0)
	s.mu.Unlock()

	s.notify.stop()
	s.logger.Debug(context.Background(), "scheduler closed", logger.Int("dropped", dropped))
}

// Stats returns counters and occupancy.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		PoolSize:         s.pool.Size(),
		Busy:             s.pool.Busy(),
		Pending:          len(s.pending),
		OpenBatches:      len(s.batches),
		Shots:            s.shots,
		Impacts:          s.impacts,
		CompletedJobs:    s.completedJobs,
		CompletedBatches: s.completedBatches,
		Polls:            s.polls,
		Accounting:       s.accounting.String(),
		Closed:           s.closed,
	}
	for _, f := range s.flights {
		switch f.phase {
		case Drawing:
			st.Drawing++
		case Fading:
			st.Fading++
		}
	}
	return st
}

// Batches returns the open batches, oldest first.
func (s *Scheduler) Batches() []model.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Batch, len(s.batches))
	for i, b := range s.batches {
		out[i] = model.Batch{Count: b.count, Remaining: b.remaining}
	}
	return out
}

// Pending returns the queued jobs in dispatch order.
func (s *Scheduler) Pending() []model.MarkerJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MarkerJob, len(s.pending))
	for i, j := range s.pending {
		out[i] = j.marker
	}
	return out
}

// Flights returns the jobs holding slots, in slot order.
func (s *Scheduler) Flights() []Flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Flight, 0, len(s.flights))
	for id := 0; id < s.pool.Size(); id++ {
		if f, ok := s.flights[id]; ok {
			out = append(out, Flight{Slot: id, Job: f.job.marker, Phase: f.phase})
		}
	}
	return out
}

// Snapshot samples every busy slot at the scheduler's current time.
func (s *Scheduler) Snapshot() (time.Time, []pool.SlotFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return now, s.pool.Snapshot(now)
}
