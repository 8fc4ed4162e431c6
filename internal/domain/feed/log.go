package feed

import (
	"sync"
	"time"

	"github.com/okian/attackmap/internal/domain/model"
	"github.com/okian/attackmap/pkg/metrics"
)

// DefaultLogCapacity bounds the attack log.
const DefaultLogCapacity = 500

// Entry is one attack log row.
type Entry struct {
	EventID    string       `json:"event_id,omitempty"`
	Attacker   model.Entity `json:"attacker"`
	Defender   model.Entity `json:"defender"`
	SolvedAt   *time.Time   `json:"solved_at,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Log keeps the most recent attacks. Older entries are evicted once the
// capacity is reached.
type Log struct {
	mu      sync.RWMutex
	entries []Entry // ring, oldest at head
	head    int
	size    int
}

// NewLog creates a Log holding up to capacity entries.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Add records ev as received at at.
func (l *Log) Add(ev model.AttackEvent, at time.Time) {
	e := Entry{
		EventID:    ev.EventID,
		Attacker:   ev.Attacker,
		Defender:   ev.Defender,
		SolvedAt:   ev.SolvedAt,
		ReceivedAt: at,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	c := len(l.entries)
	if l.size < c {
		l.entries[(l.head+l.size)%c] = e
		l.size++
	} else {
		l.entries[l.head] = e
		l.head = (l.head + 1) % c
	}
	metrics.UpdateAttackLogSize(l.size)
}

// Entries returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	c := len(l.entries)
	for i := 0; i < n; i++ {
		out[i] = l.entries[(l.head+l.size-1-i)%c]
	}
	return out
}

// Len is the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity is the maximum number of entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}
