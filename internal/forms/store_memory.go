package forms

import (
	"context"
	"sort"
	"sync"
	"time"

	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
)

// InMemory keeps field entries and form configs in process memory. Unit tests
// and development runs use it in place of Postgres.
type InMemory struct {
	mu      sync.RWMutex
	fields  map[id.FieldID]*FieldEntry
	configs map[id.FormInstanceID]FormConfig
}

func NewInMemory() *InMemory {
	return &InMemory{
		fields:  make(map[id.FieldID]*FieldEntry),
		configs: make(map[id.FormInstanceID]FormConfig),
	}
}

// SeedField registers a field entry. Test/setup helper; the engine itself
// never creates field entries.
func (s *InMemory) SeedField(entry FieldEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := entry
	s.fields[entry.FieldID] = &copied
}

// SeedConfig registers a form config.
func (s *InMemory) SeedConfig(cfg FormConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.FormInstanceID] = cfg
}

func (s *InMemory) GetFieldValues(_ context.Context, formInstanceID id.FormInstanceID) ([]FieldEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []FieldEntry
	for _, entry := range s.fields {
		if entry.FormInstanceID == formInstanceID {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *InMemory) GetFieldValue(_ context.Context, fieldID id.FieldID) (*FieldEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.fields[fieldID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *InMemory) SetFieldValue(_ context.Context, fieldID id.FieldID, value string, actingUserID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.fields[fieldID]
	if !ok {
		return sentinel.ErrNotFound
	}
	entry.Value = value
	entry.UpdatedBy = actingUserID
	entry.UpdatedAt = time.Now()
	return nil
}

func (s *InMemory) IsDoubleEntryRequired(_ context.Context, formInstanceID id.FormInstanceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[formInstanceID]
	if !ok {
		return false, nil
	}
	return cfg.DoubleEntryRequired, nil
}
