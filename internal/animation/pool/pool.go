// Package pool holds the fixed set of reusable beam and bullet resources
// that render in-flight markers.
package pool

import (
	"fmt"
	"time"
)

// None is returned by Acquire when no slot is available.
const None = -1

// DefaultSize is the default number of slots.
const DefaultSize = 24

// Slot is one beam and bullet pair.
type Slot struct {
	ID     int
	Beam   *Beam
	Bullet *Bullet
	busy   bool
}

// Ready reports whether both resources are attached.
func (s *Slot) Ready() bool { return s.Beam != nil && s.Bullet != nil }

// SlotFrame is one busy slot sampled at an instant.
type SlotFrame struct {
	Slot   int         `json:"slot"`
	Beam   BeamFrame   `json:"beam"`
	Bullet BulletFrame `json:"bullet"`
}

// Pool is a fixed-size slot set with an O(1) free list. It is not safe for
// concurrent use; its owner serialises access.
type Pool struct {
	slots []Slot
	free  []int
	busy  int
}

// New creates a pool of size slots, none attached. size below 1 is raised
// to 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{slots: make([]Slot, size), free: make([]int, 0, size)}
	for i := range p.slots {
		p.slots[i].ID = i
	}
	return p
}

// Attach assigns the resources of slot id. A slot becomes acquirable once
// both are attached.
func (p *Pool) Attach(id int, beam *Beam, bullet *Bullet) error {
	if id < 0 || id >= len(p.slots) {
		return fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, id, len(p.slots))
	}
	if beam == nil || bullet == nil {
		return fmt.Errorf("%w: slot %d", ErrNilResource, id)
	}
	s := &p.slots[id]
	wasReady := s.Ready()
	s.Beam, s.Bullet = beam, bullet
	if !wasReady && !s.busy {
		p.free = append(p.free, id)
	}
	return nil
}

// Acquire marks a free, ready slot busy and returns it, or None.
func (p *Pool) Acquire() (int, bool) {
	n := len(p.free)
	if n == 0 {
		return None, false
	}
	id := p.free[n-1]
	p.free = p.free[:n-1]
	p.slots[id].busy = true
	p.busy++
	return id, true
}

// Release resets the resources of slot id and frees it. Releasing a free
// or unknown slot does nothing.
func (p *Pool) Release(id int) {
	if id < 0 || id >= len(p.slots) {
		return
	}
	s := &p.slots[id]
	if !s.busy {
		return
	}
	s.Beam.Reset()
	s.Bullet.Reset()
	s.busy = false
	p.busy--
	p.free = append(p.free, id)
}

// Slot returns slot id. The pointer stays valid for the pool's lifetime.
func (p *Pool) Slot(id int) *Slot {
	if id < 0 || id >= len(p.slots) {
		return nil
	}
	return &p.slots[id]
}

// Size is the fixed slot count.
func (p *Pool) Size() int { return len(p.slots) }

// Busy is the number of busy slots.
func (p *Pool) Busy() int { return p.busy }

// Available is the number of slots Acquire can still hand out.
func (p *Pool) Available() int { return len(p.free) }

// IsBusy reports whether slot id is busy.
func (p *Pool) IsBusy(id int) bool {
	s := p.Slot(id)
	return s != nil && s.busy
}

// Snapshot samples every busy slot at now, in slot order.
func (p *Pool) Snapshot(now time.Time) []SlotFrame {
	frames := make([]SlotFrame, 0, p.busy)
	for i := range p.slots {
		s := &p.slots[i]
		if !s.busy {
			continue
		}
		frames = append(frames, SlotFrame{Slot: s.ID, Beam: s.Beam.Frame(now), Bullet: s.Bullet.Frame(now)})
	}
	return frames
}
