package store

import (
	"context"
	"sort"
	"sync"

	"veridata/internal/discrepancy/models"
	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
)

// InMemory keeps discrepancy records in process memory.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.DiscrepancyID]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.DiscrepancyID]*models.Record)}
}

func (s *InMemory) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

func (s *InMemory) Get(_ context.Context, discrepancyID id.DiscrepancyID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[discrepancyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *InMemory) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

func (s *InMemory) FindOpenByField(_ context.Context, formInstanceID id.FormInstanceID, fieldID id.FieldID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.FormInstanceID == formInstanceID && record.FieldID == fieldID && record.IsOpen() {
			return cloneRecord(record), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) CountOpenForFormInstance(_ context.Context, formInstanceID id.FormInstanceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.records {
		if record.FormInstanceID == formInstanceID && record.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) ListByFormInstance(_ context.Context, formInstanceID id.FormInstanceID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Record
	for _, record := range s.records {
		if record.FormInstanceID == formInstanceID {
			matched = append(matched, cloneRecord(record))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DetectedAt.Before(matched[j].DetectedAt)
	})
	return matched, nil
}

func cloneRecord(in *models.Record) *models.Record {
	out := *in
	return &out
}
