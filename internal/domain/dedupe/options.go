package dedupe

type settings struct {
	maxSize int
}

// Option applies a configuration option to the deduper.
type Option func(*settings)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize > 0: bounded LRU window.
// If maxSize <= 0: unbounded mode (no eviction, no size limit).
func WithMaxSize(maxSize int) Option {
	return func(s *settings) {
		s.maxSize = maxSize
	}
}
