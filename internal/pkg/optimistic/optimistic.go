// Package optimistic keeps a local view of record states that can be updated
// ahead of remote confirmation and reverted per record when confirmation fails.
package optimistic

import "sync"

// Change is a proposed transition of one record
type Change[K comparable, S any] struct {
	Key      K
	Previous S
	Next     S
	hadPrev  bool
	seq      uint64
}

type slot[S any] struct {
	state S
	seq   uint64
}

// Store holds the last known state per record
type Store[K comparable, S any] struct {
	mu     sync.Mutex
	states map[K]slot[S]
	seq    uint64
}

// New creates an empty Store
func New[K comparable, S any]() *Store[K, S] {
	return &Store[K, S]{states: make(map[K]slot[S])}
}

// Set records an authoritative state for key
func (s *Store[K, S]) Set(key K, state S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.states[key] = slot[S]{state: state, seq: s.seq}
}

// Get returns the current local state of key
func (s *Store[K, S]) Get(key K) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[key]
	return v.state, ok
}

// Apply moves key to next immediately and returns the change, tagged with the previous state
func (s *Store[K, S]) Apply(key K, next S) Change[K, S] {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.states[key]
	s.seq++
	s.states[key] = slot[S]{state: next, seq: s.seq}
	return Change[K, S]{Key: key, Previous: prev.state, Next: next, hadPrev: had, seq: s.seq}
}

// Commit accepts the change. The state already reflects it, so this only exists for symmetry
// with Rollback and reports whether the change is still the latest for its record.
func (s *Store[K, S]) Commit(c Change[K, S]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.states[c.Key]
	return ok && cur.seq == c.seq
}

// Rollback restores the previous state of the change's record only.
// A record that has moved on since the change was applied is left alone.
func (s *Store[K, S]) Rollback(c Change[K, S]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.states[c.Key]
	if !ok || cur.seq != c.seq {
		return false
	}
	if !c.hadPrev {
		delete(s.states, c.Key)
		return true
	}
	s.seq++
	s.states[c.Key] = slot[S]{state: c.Previous, seq: s.seq}
	return true
}
