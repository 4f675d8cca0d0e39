package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
)

// InMemory keeps form instances in process memory.
type InMemory struct {
	mu        sync.RWMutex
	instances map[id.FormInstanceID]*models.FormInstance
}

func NewInMemory() *InMemory {
	return &InMemory{instances: make(map[id.FormInstanceID]*models.FormInstance)}
}

func (s *InMemory) Create(_ context.Context, instance *models.FormInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[instance.ID]; exists {
		return sentinel.ErrConflict
	}
	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	s.instances[instance.ID] = cloneInstance(instance)
	return nil
}

func (s *InMemory) Get(_ context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	instance, ok := s.instances[formInstanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneInstance(instance), nil
}

func (s *InMemory) Update(_ context.Context, instance *models.FormInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[instance.ID]; !ok {
		return sentinel.ErrNotFound
	}
	instance.UpdatedAt = time.Now()
	s.instances[instance.ID] = cloneInstance(instance)
	return nil
}

func (s *InMemory) ListByStatus(_ context.Context, status id.EntryStatus, site *id.SiteID) ([]*models.FormInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.FormInstance
	for _, instance := range s.instances {
		if instance.Status != status {
			continue
		}
		if site != nil && instance.SiteID != *site {
			continue
		}
		matched = append(matched, cloneInstance(instance))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	return matched, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[id.EntryStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.EntryStatus]int)
	for _, instance := range s.instances {
		counts[instance.Status]++
	}
	return counts, nil
}

// cloneInstance keeps callers from sharing mutable state with the store.
func cloneInstance(in *models.FormInstance) *models.FormInstance {
	out := *in
	if in.SecondEntry != nil {
		out.SecondEntry = make(map[id.FieldID]string, len(in.SecondEntry))
		for k, v := range in.SecondEntry {
			out.SecondEntry[k] = v
		}
	}
	return &out
}
