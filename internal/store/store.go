package store

import (
	"errors"
	"sync"
)

var ErrDisposed = errors.New("store: disposed")

// Store is the shared diagram state of one editor instance.
type Store struct {
	mu       sync.RWMutex
	state    State
	subs     []subscription
	nextSub  int
	disposed bool
}

type subscription struct {
	id int
	fn func(State)
}

func New() *Store {
	return &Store{state: Initial()}
}

// Dispatch applies the actions in order as one atomic update, then calls
// every subscriber with the resulting state.
func (s *Store) Dispatch(actions ...Action) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	next := s.state.Clone()
	for _, a := range actions {
		next = a.apply(next)
	}
	s.state = next
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next.Clone())
	}
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe registers fn for every later Dispatch and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Init seeds the store when an editor mounts.
func (s *Store) Init(seed Seed) error {
	return s.Dispatch(seed)
}

// Reset restores the initial state, e.g. when switching diagrams.
func (s *Store) Reset() error {
	return s.Dispatch(Reset{})
}

// Dispose drops all subscribers; later dispatches fail with ErrDisposed.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.subs = nil
	s.state = Initial()
}

func (s *Store) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}
