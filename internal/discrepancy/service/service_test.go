package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veridata/internal/compare"
	"veridata/internal/discrepancy/models"
	"veridata/internal/discrepancy/store"
	entryservice "veridata/internal/entry/service"
	"veridata/internal/forms"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/audit"
	auditmemory "veridata/pkg/platform/audit/store/memory"
)

// The discrepancy manager owns two invariants that need precise exercise:
// resolution is monotonic (a record closes exactly once), and value-bearing
// strategies are validated before any state is touched. Both are awkward to
// reach through full lifecycle tests, so they get unit coverage here.

type DiscrepancyServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	fields   *forms.InMemory
	auditLog *auditmemory.InMemoryStore
	service  *Service

	instanceID id.FormInstanceID
	fieldID    id.FieldID
	resolverID id.UserID
}

func TestDiscrepancyServiceSuite(t *testing.T) {
	suite.Run(t, new(DiscrepancyServiceSuite))
}

func (s *DiscrepancyServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.fields = forms.NewInMemory()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.service = NewService(
		s.store,
		s.fields,
		audit.NewPublisher(s.auditLog),
		entryservice.NewShardedTx(),
		nil,
		slog.Default(),
	)

	s.resolverID = id.UserID(uuid.New())
}

// openDiscrepancy seeds a fresh instance and field, then records a mismatch
// against them. Fresh IDs per call keep the suite's subtests independent.
func (s *DiscrepancyServiceSuite) openDiscrepancy(second string) *models.Record {
	s.instanceID = id.NewFormInstanceID()
	s.fieldID = id.FieldID(uuid.New())
	s.fields.SeedField(forms.FieldEntry{
		FieldID:        s.fieldID,
		FormInstanceID: s.instanceID,
		Name:           "surname",
		Value:          "Smith",
	})
	s.Require().NoError(s.service.EnsureOpen(s.ctx, s.instanceID, compare.FieldVerdict{
		FieldID:     s.fieldID,
		FieldName:   "surname",
		FirstValue:  "Smith",
		SecondValue: second,
	}))
	records, err := s.store.ListByFormInstance(s.ctx, s.instanceID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	return records[0]
}

func (s *DiscrepancyServiceSuite) TestEnsureOpen() {
	s.Run("records a mismatch with both values snapshotted", func() {
		record := s.openDiscrepancy("Smyth")
		s.Equal(models.StatusOpen, record.Status)
		s.Equal("Smith", record.FirstValue)
		s.Equal("Smyth", record.SecondValue)
		s.False(record.DetectedAt.IsZero())

		events, err := s.auditLog.ListByEntity(s.ctx, "discrepancy", record.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventDiscrepancyOpened), events[0].Action)
	})

	s.Run("is idempotent per field while a record stays open", func() {
		record := s.openDiscrepancy("Smyth")

		s.Require().NoError(s.service.EnsureOpen(s.ctx, s.instanceID, compare.FieldVerdict{
			FieldID:     s.fieldID,
			FieldName:   "surname",
			FirstValue:  "Smith",
			SecondValue: "Smyth",
		}))

		records, err := s.store.ListByFormInstance(s.ctx, s.instanceID)
		s.Require().NoError(err)
		s.Len(records, 1)
		s.Equal(record.ID, records[0].ID)
	})
}

func (s *DiscrepancyServiceSuite) TestResolve() {
	s.Run("second_correct adopts the second entrant's value", func() {
		record := s.openDiscrepancy("Smyth")

		err := s.service.Resolve(s.ctx, record.ID, id.ResolutionSecondCorrect, nil, s.resolverID, "")
		s.Require().NoError(err)

		field, err := s.fields.GetFieldValue(s.ctx, s.fieldID)
		s.Require().NoError(err)
		s.Equal("Smyth", field.Value)
		s.Equal(s.resolverID, field.UpdatedBy)

		resolved, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, resolved.Status)
		s.Require().NotNil(resolved.Strategy)
		s.Equal(id.ResolutionSecondCorrect, *resolved.Strategy)
		s.Require().NotNil(resolved.ResolvedValue)
		s.Equal("Smyth", *resolved.ResolvedValue)
		s.Require().NotNil(resolved.ResolvedBy)
		s.Equal(s.resolverID, *resolved.ResolvedBy)
		s.NotNil(resolved.ResolvedAt)
	})

	s.Run("first_correct keeps the authoritative value unchanged", func() {
		record := s.openDiscrepancy("Smyth")

		s.Require().NoError(s.service.Resolve(s.ctx, record.ID, id.ResolutionFirstCorrect, nil, s.resolverID, ""))

		field, err := s.fields.GetFieldValue(s.ctx, s.fieldID)
		s.Require().NoError(err)
		s.Equal("Smith", field.Value)

		// The field was not superseded, so only the resolution is audited.
		events, err := s.auditLog.ListByEntity(s.ctx, "field_entry", s.fieldID.String())
		s.Require().NoError(err)
		s.Empty(events)
	})

	s.Run("new_value replaces both transcriptions", func() {
		record := s.openDiscrepancy("Smyth")
		corrected := "Smythe"

		s.Require().NoError(s.service.Resolve(s.ctx, record.ID, id.ResolutionNewValue, &corrected, s.resolverID, "verified against source document"))

		field, err := s.fields.GetFieldValue(s.ctx, s.fieldID)
		s.Require().NoError(err)
		s.Equal("Smythe", field.Value)

		events, err := s.auditLog.ListByEntity(s.ctx, "field_entry", s.fieldID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventFieldValueSuperseded), events[0].Action)
		s.Equal("Smith", events[0].OldValue)
		s.Equal("Smythe", events[0].NewValue)
	})

	s.Run("value-bearing strategy without a value changes nothing", func() {
		record := s.openDiscrepancy("Smyth")

		err := s.service.Resolve(s.ctx, record.ID, id.ResolutionNewValue, nil, s.resolverID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		empty := ""
		err = s.service.Resolve(s.ctx, record.ID, id.ResolutionAdjudicated, &empty, s.resolverID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		// Record still open, field untouched, nothing audited beyond the open.
		reloaded, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.True(reloaded.IsOpen())
		field, err := s.fields.GetFieldValue(s.ctx, s.fieldID)
		s.Require().NoError(err)
		s.Equal("Smith", field.Value)
		events, err := s.auditLog.ListByEntity(s.ctx, "discrepancy", record.ID.String())
		s.Require().NoError(err)
		s.Len(events, 1) // just the open, no resolution
		fieldEvents, err := s.auditLog.ListByEntity(s.ctx, "field_entry", s.fieldID.String())
		s.Require().NoError(err)
		s.Empty(fieldEvents)
	})

	s.Run("resolution is monotonic", func() {
		record := s.openDiscrepancy("Smyth")

		s.Require().NoError(s.service.Resolve(s.ctx, record.ID, id.ResolutionSecondCorrect, nil, s.resolverID, ""))

		err := s.service.Resolve(s.ctx, record.ID, id.ResolutionFirstCorrect, nil, s.resolverID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		// First resolution stands.
		reloaded, err := s.store.Get(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(id.ResolutionSecondCorrect, *reloaded.Strategy)
	})

	s.Run("unknown discrepancy is a not-found error", func() {
		err := s.service.Resolve(s.ctx, id.NewDiscrepancyID(), id.ResolutionFirstCorrect, nil, s.resolverID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid strategy is rejected before any lookup", func() {
		err := s.service.Resolve(s.ctx, id.NewDiscrepancyID(), id.ResolutionStrategy("both_correct"), nil, s.resolverID, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *DiscrepancyServiceSuite) TestCountOpen() {
	s.Run("counts only open records", func() {
		record := s.openDiscrepancy("Smyth")

		count, err := s.service.CountOpen(s.ctx, s.instanceID)
		s.Require().NoError(err)
		s.Equal(1, count)

		s.Require().NoError(s.service.Resolve(s.ctx, record.ID, id.ResolutionFirstCorrect, nil, s.resolverID, ""))

		count, err = s.service.CountOpen(s.ctx, s.instanceID)
		s.Require().NoError(err)
		s.Equal(0, count)
	})

	s.Run("zero for an instance with no discrepancies", func() {
		count, err := s.service.CountOpen(s.ctx, id.NewFormInstanceID())
		s.Require().NoError(err)
		s.Equal(0, count)
	})
}
