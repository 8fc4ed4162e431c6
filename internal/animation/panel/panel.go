// Package panel is the attack map's animation root: it owns the slot pool
// resources, turns upstream marker state into jobs and exposes frames for
// renderers.
package panel

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/okian/attackmap/internal/animation/pool"
	"github.com/okian/attackmap/internal/animation/scheduler"
	"github.com/okian/attackmap/internal/domain/geometry"
	"github.com/okian/attackmap/internal/domain/marker"
	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/internal/domain/roster"
	"github.com/okian/attackmap/pkg/logger"
)

// TeamFrame is a participant as drawn on the map.
type TeamFrame struct {
	Slot     int    `json:"slot"`
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Position r2.Vec `json:"position"` // icon top-left
	Anchor   r2.Vec `json:"anchor"`   // beam endpoint
}

// Frame is everything a renderer needs for one picture.
type Frame struct {
	At      time.Time        `json:"at"`
	Width   float64          `json:"width"`
	Height  float64          `json:"height"`
	Icon    float64          `json:"icon"`
	Teams   []TeamFrame      `json:"teams"`
	Markers []pool.SlotFrame `json:"markers"`
	Stats   scheduler.Stats  `json:"stats"`
}

// Panel composes roster, marker queue, slot pool and scheduler.
type Panel struct {
	mu     sync.Mutex
	roster *roster.Roster
	layout geometry.Layout
	queue  *marker.Queue
	sched  *scheduler.Scheduler
	logger logger.Logger
}

// New creates a panel for teams and attaches every slot's resources.
func New(teams []model.Team, opts ...Option) *Panel {
	st := defaults()
	for _, opt := range opts {
		opt(&st)
	}

	p := &Panel{
		roster: roster.New(teams),
		layout: st.layout,
		logger: st.logger,
	}

	slots := pool.New(st.poolSize)
	for i := 0; i < slots.Size(); i++ {
		// Attach cannot fail for in-range slots with non-nil resources.
		_ = slots.Attach(i, &pool.Beam{}, &pool.Bullet{})
	}

	var qopts []marker.Option
	if st.palette != nil {
		qopts = append(qopts, marker.WithPalette(st.palette))
	}
	p.queue = marker.NewQueue(p.roster, qopts...)

	sopts := append([]scheduler.Option{
		scheduler.WithLogger(st.logger.Named("scheduler")),
		scheduler.WithPath(p.path),
	}, st.scheduler...)
	p.sched = scheduler.New(slots, sopts...)

	return p
}

func (p *Panel) path(attacker, defender int) geometry.Curve {
	return p.layout.Path(attacker, defender, p.roster.Len())
}

// Observe receives the current upstream marker collection. Events appended
// since the last call are queued as one batch; a shrunk collection only
// resynchronises.
func (p *Panel) Observe(events []model.AttackEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobs := p.queue.Observe(events)
	if len(jobs) == 0 {
		return
	}
	p.sched.Enqueue(jobs)
	p.logger.Debug(context.Background(), "markers queued", logger.Int("count", len(jobs)))
}

// SetRoster replaces the team roster. Jobs already queued keep their slots.
func (p *Panel) SetRoster(teams []model.Team) {
	p.roster.Replace(teams)
}

// Roster returns the teams in slot order.
func (p *Panel) Roster() []model.Team {
	return p.roster.Teams()
}

// Frame samples the map now.
func (p *Panel) Frame() Frame {
	now, markers := p.sched.Snapshot()
	total := p.roster.Len()
	teams := lo.Map(p.roster.Teams(), func(t model.Team, i int) TeamFrame {
		return TeamFrame{
			Slot:     i,
			ID:       t.ID,
			Name:     t.Name,
			Position: p.layout.Position(i, total),
			Anchor:   p.layout.Anchor(i, total),
		}
	})
	return Frame{
		At:      now,
		Width:   p.layout.Width,
		Height:  p.layout.Height,
		Icon:    p.layout.Icon,
		Teams:   teams,
		Markers: markers,
		Stats:   p.sched.Stats(),
	}
}

// Stats returns the scheduler's counters.
func (p *Panel) Stats() scheduler.Stats {
	return p.sched.Stats()
}

// Flush waits for pending callbacks. It must not be called from a callback.
func (p *Panel) Flush() {
	p.sched.Flush()
}

// Close tears the animation down; no callback fires afterwards.
func (p *Panel) Close() {
	p.sched.Close()
}
