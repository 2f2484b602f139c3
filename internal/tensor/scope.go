package tensor

import (
	"sync"

	"github.com/rs/zerolog"
)

// Scope owns every Releaser acquired during one unit of work. Close releases
// all of them in reverse acquisition order. Release failures are logged and
// never returned, so cleanup cannot mask the error that ended the work.
//
//	scope := tensor.NewScope(log)
//	defer scope.Close()
type Scope struct {
	mu     sync.Mutex
	items  []Releaser
	closed bool
	log    zerolog.Logger
}

// NewScope creates an empty scope that logs release failures to log.
func NewScope(log zerolog.Logger) *Scope {
	return &Scope{log: log}
}

// Track hands r to the scope. Tracking on a closed scope releases r at once.
func (s *Scope) Track(r Releaser) {
	if r == nil {
		return
	}
	if t, ok := r.(*Tensor); ok && t == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.release(r)
		return
	}
	s.items = append(s.items, r)
	s.mu.Unlock()
}

// New allocates a tensor owned by the scope.
func (s *Scope) New(shape ...int) *Tensor {
	t := New(shape...)
	s.Track(t)
	return t
}

// Forget removes r from the scope without releasing it, transferring
// ownership to the caller. It reports whether r was tracked.
func (s *Scope) Forget(r Releaser) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i] == r {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of tracked items.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close releases everything tracked. It is safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.closed = true
	s.mu.Unlock()
	for i := len(items) - 1; i >= 0; i-- {
		s.release(items[i])
	}
}

func (s *Scope) release(r Releaser) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Warn().Interface("panic", p).Msg("tensor release panicked")
		}
	}()
	if err := r.Release(); err != nil {
		s.log.Warn().Err(err).Msg("failed to release tensor")
	}
}
