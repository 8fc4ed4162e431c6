// Package marker turns the upstream attack collection into marker jobs.
package marker

import (
	"sync"

	"github.com/okian/attackmap/internal/domain/model"
)

// SlotResolver maps a team id to a layout slot.
type SlotResolver interface {
	Slot(teamID int) int
}

// Queue tracks how much of the upstream collection it has already turned
// into jobs. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	slots   SlotResolver
	palette Palette
	seen    int
}

// Option configures a Queue.
type Option func(*Queue)

// WithPalette overrides the colour source.
func WithPalette(p Palette) Option {
	return func(q *Queue) {
		if p != nil {
			q.palette = p
		}
	}
}

// NewQueue creates a Queue resolving slots through slots.
func NewQueue(slots SlotResolver, opts ...Option) *Queue {
	q := &Queue{slots: slots, palette: RandomPalette()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Observe returns jobs for the events appended to the collection since the
// previous call. A collection shorter than last seen is an external reset:
// the cursor follows it and nothing is returned.
func (q *Queue) Observe(events []model.AttackEvent) []model.MarkerJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(events) < q.seen {
		q.seen = len(events)
		return nil
	}
	if len(events) == q.seen {
		return nil
	}

	added := events[q.seen:]
	q.seen = len(events)

	jobs := make([]model.MarkerJob, len(added))
	for i, ev := range added {
		jobs[i] = q.job(ev)
	}
	return jobs
}

// Seen is the collection length observed last.
func (q *Queue) Seen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen
}

func (q *Queue) job(ev model.AttackEvent) model.MarkerJob {
	return model.MarkerJob{
		AttackerSlot: q.slots.Slot(ev.Attacker.ID),
		DefenderSlot: q.slots.Slot(ev.Defender.ID),
		Color:        q.palette.Next(),
	}
}
