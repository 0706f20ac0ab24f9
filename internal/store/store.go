package store

import (
	"sync"

	"go.uber.org/zap"
)

// Listener is notified after every transition. Listeners run while the
// store is locked and must not call Dispatch.
type Listener func(st State, a Action)

// Store owns the process state and applies actions one at a time in
// dispatch order.
type Store struct {
	log *zap.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func New(initial State, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if initial.Settings == nil {
		initial.Settings = DefaultSettings()
	}
	return &Store{
		log:       log.Named("store"),
		state:     initial,
		listeners: map[int]Listener{},
	}
}

// Dispatch reduces a into the current state and returns the new snapshot.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Reduce(s.state, a)
	next.Revision = s.state.Revision + 1
	s.state = next
	s.log.Debug("dispatch",
		zap.String("action", ActionName(a)),
		zap.Uint64("revision", next.Revision),
		zap.Uint64("epoch", next.Epoch),
	)
	for _, l := range s.listeners {
		l(next, a)
	}
	return next
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch is a shortcut for Snapshot().Epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Epoch
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
