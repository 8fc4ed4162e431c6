package feed

import (
	"sync"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/metrics"
)

// Observer receives the full collection after each mutation.
type Observer func(events []model.AttackEvent)

// State is the marker collection the panel observes. Arrivals are appended
// at the back, completed batches dropped from the front. Every mutation is
// published to observers on its own, in order.
type State struct {
	mu        sync.Mutex
	events    []model.AttackEvent
	observers []Observer
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// Subscribe registers fn. Observers run synchronously while the state is
// locked and must not call back into it.
func (s *State) Subscribe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Append adds an arrival.
func (s *State) Append(events ...model.AttackEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.AttackEvent, 0, len(s.events)+len(events))
	next = append(next, s.events...)
	s.events = append(next, events...)
	s.publish()
}

// Drop removes the n oldest events. n beyond the length empties the state.
func (s *State) Drop(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.events))
	s.events = append([]model.AttackEvent(nil), s.events[n:]...)
	s.publish()
}

// Len is the collection length.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Snapshot returns the collection.
func (s *State) Snapshot() []model.AttackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AttackEvent(nil), s.events...)
}

// publish hands every observer the current collection. The slice is never
// mutated afterwards. Callers hold s.mu.
func (s *State) publish() {
	metrics.UpdateMarkerState(len(s.events))
	for _, fn := range s.observers {
		fn(s.events)
	}
}
