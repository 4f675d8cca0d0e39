package memory

import (
	"context"
	"sync"

	audit "veridata/pkg/platform/audit"
)

type entityKey struct {
	entity   string
	entityID string
}

// InMemoryStore keeps audit events in process memory. Used by unit tests and
// single-node development runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[entityKey][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[entityKey][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey{entity: event.Entity, entityID: event.EntityID}
	s.events[key] = append(s.events[key], event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entity, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[entityKey{entity: entity, entityID: entityID}]...), nil
}

// ListAll returns every event across all entities (operator tooling).
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[entityKey][]audit.Event)
}
