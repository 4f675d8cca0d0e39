package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veridata/internal/discrepancy/models"
	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
)

type DiscrepancyStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestDiscrepancyStoreSuite(t *testing.T) {
	suite.Run(t, new(DiscrepancyStoreSuite))
}

func (s *DiscrepancyStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *DiscrepancyStoreSuite) newRecord(instanceID id.FormInstanceID) *models.Record {
	return &models.Record{
		ID:             id.NewDiscrepancyID(),
		FormInstanceID: instanceID,
		FieldID:        id.FieldID(uuid.New()),
		FieldName:      "weight_kg",
		FirstValue:     "82",
		SecondValue:    "28",
		Status:         models.StatusOpen,
		DetectedAt:     time.Now(),
	}
}

func (s *DiscrepancyStoreSuite) resolve(record *models.Record) {
	strategy := id.ResolutionFirstCorrect
	value := record.FirstValue
	now := time.Now()
	record.Status = models.StatusResolved
	record.Strategy = &strategy
	record.ResolvedValue = &value
	record.ResolvedAt = &now
	s.Require().NoError(s.store.Update(s.ctx, record))
}

func (s *DiscrepancyStoreSuite) TestCreateAndGet() {
	s.Run("stores and retrieves a record", func() {
		record := s.newRecord(id.NewFormInstanceID())
		s.Require().NoError(s.store.Create(s.ctx, record))

		found, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.FieldID, found.FieldID)
		s.True(found.IsOpen())
	})

	s.Run("rejects duplicate ID with ErrConflict", func() {
		record := s.newRecord(id.NewFormInstanceID())
		s.Require().NoError(s.store.Create(s.ctx, record))
		s.Require().ErrorIs(s.store.Create(s.ctx, record), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Get(s.ctx, id.NewDiscrepancyID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DiscrepancyStoreSuite) TestFindOpenByField() {
	instanceID := id.NewFormInstanceID()
	record := s.newRecord(instanceID)
	s.Require().NoError(s.store.Create(s.ctx, record))

	s.Run("finds the open record for the field", func() {
		found, err := s.store.FindOpenByField(s.ctx, instanceID, record.FieldID)
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)
	})

	s.Run("ignores other fields and instances", func() {
		_, err := s.store.FindOpenByField(s.ctx, instanceID, id.FieldID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindOpenByField(s.ctx, id.NewFormInstanceID(), record.FieldID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("resolved records no longer match", func() {
		s.resolve(record)
		_, err := s.store.FindOpenByField(s.ctx, instanceID, record.FieldID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DiscrepancyStoreSuite) TestCountAndList() {
	instanceID := id.NewFormInstanceID()
	first := s.newRecord(instanceID)
	second := s.newRecord(instanceID)
	second.DetectedAt = first.DetectedAt.Add(time.Second)
	unrelated := s.newRecord(id.NewFormInstanceID())
	for _, record := range []*models.Record{first, second, unrelated} {
		s.Require().NoError(s.store.Create(s.ctx, record))
	}

	s.Run("counts open records for the instance only", func() {
		count, err := s.store.CountOpenForFormInstance(s.ctx, instanceID)
		s.Require().NoError(err)
		s.Equal(2, count)

		s.resolve(first)
		count, err = s.store.CountOpenForFormInstance(s.ctx, instanceID)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("lists all records oldest first, resolved included", func() {
		records, err := s.store.ListByFormInstance(s.ctx, instanceID)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal(first.ID, records[0].ID)
		s.Equal(second.ID, records[1].ID)
	})
}
