package forms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
)

type FormsStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestFormsStoreSuite(t *testing.T) {
	suite.Run(t, new(FormsStoreSuite))
}

func (s *FormsStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *FormsStoreSuite) TestFieldValues() {
	instanceID := id.NewFormInstanceID()
	weightID := id.FieldID(uuid.New())
	s.store.SeedField(FieldEntry{
		FieldID:        weightID,
		FormInstanceID: instanceID,
		Name:           "weight_kg",
		Value:          "82",
	})
	s.store.SeedField(FieldEntry{
		FieldID:        id.FieldID(uuid.New()),
		FormInstanceID: instanceID,
		Name:           "sex",
		Value:          "Male",
	})
	s.store.SeedField(FieldEntry{
		FieldID:        id.FieldID(uuid.New()),
		FormInstanceID: id.NewFormInstanceID(),
		Name:           "weight_kg",
		Value:          "64",
	})

	s.Run("lists the instance's fields ordered by name", func() {
		entries, err := s.store.GetFieldValues(s.ctx, instanceID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal("sex", entries[0].Name)
		s.Equal("weight_kg", entries[1].Name)
	})

	s.Run("gets a single field", func() {
		entry, err := s.store.GetFieldValue(s.ctx, weightID)
		s.Require().NoError(err)
		s.Equal("82", entry.Value)
	})

	s.Run("unknown field is ErrNotFound", func() {
		_, err := s.store.GetFieldValue(s.ctx, id.FieldID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("SetFieldValue rewrites value and provenance", func() {
		userID := id.UserID(uuid.New())
		s.Require().NoError(s.store.SetFieldValue(s.ctx, weightID, "83", userID))

		entry, err := s.store.GetFieldValue(s.ctx, weightID)
		s.Require().NoError(err)
		s.Equal("83", entry.Value)
		s.Equal(userID, entry.UpdatedBy)
		s.False(entry.UpdatedAt.IsZero())
	})

	s.Run("SetFieldValue on unknown field is ErrNotFound", func() {
		s.Require().ErrorIs(
			s.store.SetFieldValue(s.ctx, id.FieldID(uuid.New()), "x", id.UserID(uuid.New())),
			sentinel.ErrNotFound,
		)
	})
}

func (s *FormsStoreSuite) TestDoubleEntryFlag() {
	instanceID := id.NewFormInstanceID()

	s.Run("defaults to false without a config", func() {
		required, err := s.store.IsDoubleEntryRequired(s.ctx, instanceID)
		s.Require().NoError(err)
		s.False(required)
	})

	s.Run("reflects the seeded config", func() {
		s.store.SeedConfig(FormConfig{FormInstanceID: instanceID, DoubleEntryRequired: true})
		required, err := s.store.IsDoubleEntryRequired(s.ctx, instanceID)
		s.Require().NoError(err)
		s.True(required)
	})
}
