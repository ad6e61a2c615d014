// Package sequencer discards superseded asynchronous responses.
//
// Every named operation owns a monotonically increasing generation counter.
// A caller captures a generation with Begin before issuing its request and
// asks IsCurrent once the response arrives; only the most recently begun call
// for that name may apply its result, whatever order responses complete in.
package sequencer

import (
	"context"
	"sync"
)

// Sequencer tracks one generation counter per operation name. The zero value
// is not usable; call New.
type Sequencer struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func New() *Sequencer {
	return &Sequencer{counters: make(map[string]uint64)}
}

// Begin increments and returns the counter for key.
func (s *Sequencer) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key]
}

// IsCurrent reports whether gen is still the newest generation for key.
func (s *Sequencer) IsCurrent(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[key] == gen
}

// Current returns the newest generation issued for key, 0 if none.
func (s *Sequencer) Current(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[key]
}

// Reset advances every counter so that all calls begun so far are stale.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.counters {
		s.counters[key]++
	}
}

// Run begins a generation for key, performs fetch, and hands its outcome to
// apply only if no newer call for key began in the meantime. Errors from
// superseded calls are dropped as well. It reports whether apply ran.
func Run[T any](ctx context.Context, s *Sequencer, key string, fetch func(context.Context) (T, error), apply func(T, error)) bool {
	gen := s.Begin(key)
	v, err := fetch(ctx)
	if !s.IsCurrent(key, gen) {
		return false
	}
	apply(v, err)
	return true
}
