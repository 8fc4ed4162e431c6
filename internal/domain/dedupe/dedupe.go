// Package dedupe remembers event ids so a redelivered attack is only shown once.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultMaxSize is the default number of ids remembered.
const DefaultMaxSize = 50_000

// Deduper records seen event IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a later delivery is accepted again. Used when
	// an event was recorded but could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// lruDeduper keeps the most recently seen ids; the least recently seen is
// evicted once the window is full.
type lruDeduper struct {
	cache *lru.Cache
}

// mapDeduper remembers every id.
type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates a deduper. With a positive max size ids live in
// an LRU window; otherwise the set is unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := settings{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxSize <= 0 {
		return &mapDeduper{seen: make(map[string]struct{})}
	}
	cache, err := lru.New(cfg.maxSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &lruDeduper{cache: cache}
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}

func (d *mapDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *mapDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *mapDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
