// Package service implements the discrepancy manager: opening records for
// detected mismatches and applying resolutions back onto the authoritative
// field values.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veridata/internal/compare"
	"veridata/internal/discrepancy/metrics"
	"veridata/internal/discrepancy/models"
	"veridata/internal/discrepancy/store"
	"veridata/internal/forms"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/audit"
	"veridata/pkg/platform/sentinel"
)

// TxRunner provides the per-form-instance mutual-exclusion scope. Resolutions
// serialize on the discrepancy's owning instance, which also closes the race
// between a resolve and a concurrent finalize.
type TxRunner interface {
	RunInstanceTx(ctx context.Context, formInstanceID id.FormInstanceID, fn func(ctx context.Context) error) error
}

type Service struct {
	store   store.Store
	fields  forms.Store
	auditor *audit.Publisher
	runner  TxRunner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(st store.Store, fields forms.Store, auditor *audit.Publisher, runner TxRunner, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, fields: fields, auditor: auditor, runner: runner, metrics: m, logger: logger}
}

// EnsureOpen records a mismatch unless the field already has an open
// discrepancy. Called by the comparison engine inside the submit transaction,
// so the instance lock is already held.
func (s *Service) EnsureOpen(ctx context.Context, formInstanceID id.FormInstanceID, verdict compare.FieldVerdict) error {
	_, err := s.store.FindOpenByField(ctx, formInstanceID, verdict.FieldID)
	if err == nil {
		// Detection is idempotent per field: leave the existing record as-is.
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up open discrepancy")
	}

	record := &models.Record{
		ID:             id.NewDiscrepancyID(),
		FormInstanceID: formInstanceID,
		FieldID:        verdict.FieldID,
		FieldName:      verdict.FieldName,
		FirstValue:     verdict.FirstValue,
		SecondValue:    verdict.SecondValue,
		Status:         models.StatusOpen,
		DetectedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "create discrepancy")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:   string(audit.EventDiscrepancyOpened),
		Entity:   "discrepancy",
		EntityID: record.ID.String(),
		OldValue: verdict.FirstValue,
		NewValue: verdict.SecondValue,
		Reason:   "first and second entry disagree on field " + verdict.FieldName,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit discrepancy creation")
	}

	s.metrics.IncrementOpened()
	return nil
}

// Resolve closes a discrepancy with the given strategy and writes the
// resolved value back onto the authoritative field entry. Resolution is
// monotonic: a record resolves exactly once.
func (s *Service) Resolve(ctx context.Context, discrepancyID id.DiscrepancyID, strategy id.ResolutionStrategy, newValue *string, resolverID id.UserID, notes string) error {
	if !strategy.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown resolution strategy: "+strategy.String())
	}
	if strategy.RequiresValue() && (newValue == nil || *newValue == "") {
		return dErrors.New(dErrors.CodeInvalidInput, "strategy "+strategy.String()+" requires a replacement value")
	}

	// First load only discovers the owning instance for the lock scope; the
	// record is reloaded under the lock before any decision is made.
	record, err := s.store.Get(ctx, discrepancyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "discrepancy not found: "+discrepancyID.String())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load discrepancy")
	}

	return s.runner.RunInstanceTx(ctx, record.FormInstanceID, func(ctx context.Context) error {
		record, err := s.store.Get(ctx, discrepancyID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "discrepancy not found: "+discrepancyID.String())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load discrepancy")
		}
		if !record.IsOpen() {
			return dErrors.New(dErrors.CodeInvalidState, "discrepancy "+discrepancyID.String()+" is already resolved")
		}

		resolved := resolvedValue(record, strategy, newValue)

		field, err := s.fields.GetFieldValue(ctx, record.FieldID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load field entry")
		}
		oldValue := field.Value

		if err := s.fields.SetFieldValue(ctx, record.FieldID, resolved, resolverID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "write resolved value")
		}
		if oldValue != resolved {
			if err := s.auditor.Emit(ctx, audit.Event{
				Action:   string(audit.EventFieldValueSuperseded),
				ActorID:  resolverID,
				Entity:   "field_entry",
				EntityID: record.FieldID.String(),
				OldValue: oldValue,
				NewValue: resolved,
				Reason:   "discrepancy " + record.ID.String() + " resolved via " + strategy.String(),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "audit field supersede")
			}
		}

		now := time.Now()
		record.Status = models.StatusResolved
		record.Strategy = &strategy
		record.ResolvedValue = &resolved
		record.ResolvedBy = &resolverID
		record.ResolvedAt = &now
		if notes != "" {
			record.Notes = notes
		}
		if err := s.store.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update discrepancy")
		}

		reason := "resolved via " + strategy.String()
		if notes != "" {
			reason = notes
		}
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:   string(audit.EventDiscrepancyResolved),
			ActorID:  resolverID,
			Entity:   "discrepancy",
			EntityID: record.ID.String(),
			OldValue: oldValue,
			NewValue: resolved,
			Reason:   reason,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "audit discrepancy resolution")
		}

		s.metrics.IncrementResolved(strategy.String())
		s.logger.InfoContext(ctx, "discrepancy resolved",
			"discrepancy_id", record.ID.String(),
			"strategy", strategy.String(),
			"resolver_id", resolverID.String())
		return nil
	})
}

// resolvedValue picks the authoritative value for the strategy. Validation has
// already guaranteed newValue is present when required.
func resolvedValue(record *models.Record, strategy id.ResolutionStrategy, newValue *string) string {
	switch strategy {
	case id.ResolutionFirstCorrect:
		return record.FirstValue
	case id.ResolutionSecondCorrect:
		return record.SecondValue
	default:
		return *newValue
	}
}

// CountOpen is the finalize gate: the lifecycle controller refuses to close an
// instance while this is nonzero.
func (s *Service) CountOpen(ctx context.Context, formInstanceID id.FormInstanceID) (int, error) {
	count, err := s.store.CountOpenForFormInstance(ctx, formInstanceID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count open discrepancies")
	}
	return count, nil
}

// List returns every discrepancy for an instance, oldest first.
func (s *Service) List(ctx context.Context, formInstanceID id.FormInstanceID) ([]*models.Record, error) {
	records, err := s.store.ListByFormInstance(ctx, formInstanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list discrepancies")
	}
	return records, nil
}
