// Package fragment holds the per-session fragment registry. A fragment is a
// section of an app wrapped so it can be rerun on its own: the registry maps
// fragment IDs to rerunnable closures that replay the fragment against the
// cursor position it was declared at.
package fragment

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a fragment ID has no registered closure,
// typically because a full rerun produced a different layout and the
// fragment was pruned.
var ErrNotFound = errors.New("fragment: not found")

// Func is a rerunnable fragment body. The closure captures everything it
// needs to replay: the user function and an immutable cursor snapshot.
type Func func() error

// Storage stores fragment closures keyed by fragment ID for one session.
type Storage interface {
	// Get returns the closure for id, or ErrNotFound.
	Get(id string) (Func, error)
	// Set registers or replaces the closure for id.
	Set(id string, fn Func)
	// Delete removes id. Deleting an absent id is a no-op.
	Delete(id string)
	// Clear drops every fragment whose ID is not in keep. A nil keep set
	// empties the storage.
	Clear(keep []string)
	// Contains reports whether id is registered.
	Contains(id string) bool
}

// MemoryStorage is the in-process Storage used for live sessions.
type MemoryStorage struct {
	mu    sync.RWMutex
	frags map[string]Func
}

// NewMemoryStorage returns an empty registry.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{frags: make(map[string]Func)}
}

func (s *MemoryStorage) Get(id string) (Func, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.frags[id]
	if !ok {
		return nil, ErrNotFound
	}
	return fn, nil
}

func (s *MemoryStorage) Set(id string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frags[id] = fn
}

func (s *MemoryStorage) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frags, id)
}

func (s *MemoryStorage) Clear(keep []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keep) == 0 {
		s.frags = make(map[string]Func)
		return
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	for id := range s.frags {
		if _, ok := keepSet[id]; !ok {
			delete(s.frags, id)
		}
	}
}

func (s *MemoryStorage) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.frags[id]
	return ok
}

// Len reports the number of registered fragments.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frags)
}
