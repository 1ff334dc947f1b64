package repository

import (
	"sync"
)

// CharacterStore pins the protagonist's visual descriptor per story so that
// every scene's image prompt renders the same character. The descriptor is
// written once when scene 1 is generated and survives until the story is
// restarted, which rebinds it.
type CharacterStore struct {
	mu          sync.RWMutex
	descriptors map[string]string
}

// NewCharacterStore creates an empty descriptor store.
func NewCharacterStore() *CharacterStore {
	return &CharacterStore{descriptors: make(map[string]string)}
}

// Remember stores the descriptor for the story unless one is already bound,
// and returns the descriptor in effect.
func (s *CharacterStore) Remember(storyID, descriptor string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.descriptors[storyID]; ok && existing != "" {
		return existing
	}
	s.descriptors[storyID] = descriptor
	return descriptor
}

// Lookup returns the bound descriptor, if any.
func (s *CharacterStore) Lookup(storyID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[storyID]
	return d, ok && d != ""
}

// Rebind replaces the descriptor for a freshly restarted story.
func (s *CharacterStore) Rebind(storyID, descriptor string) {
	s.mu.Lock()
	s.descriptors[storyID] = descriptor
	s.mu.Unlock()
}
