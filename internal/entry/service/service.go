// Package service implements the double-data-entry lifecycle controller. It
// is the only component that mutates a form instance's completion status, and
// every mutating operation runs inside a per-instance transaction scope.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veridata/internal/compare"
	"veridata/internal/entry/metrics"
	"veridata/internal/entry/models"
	"veridata/internal/entry/store"
	"veridata/internal/forms"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/audit"
	"veridata/pkg/platform/sentinel"
)

// TxRunner provides the per-form-instance mutual-exclusion scope: either all
// of status update, audit emission and dependent record creation commit, or
// none do, and no two transitions on the same instance interleave.
type TxRunner interface {
	RunInstanceTx(ctx context.Context, formInstanceID id.FormInstanceID, fn func(ctx context.Context) error) error
}

// Comparer runs the field-by-field comparison, opening discrepancies for
// mismatches.
type Comparer interface {
	Compare(ctx context.Context, formInstanceID id.FormInstanceID) (*compare.Result, error)
}

// OpenCounter reports open discrepancies; the finalize gate.
type OpenCounter interface {
	CountOpen(ctx context.Context, formInstanceID id.FormInstanceID) (int, error)
}

type Service struct {
	store         store.Store
	fields        forms.Store
	comparer      Comparer
	discrepancies OpenCounter
	auditor       *audit.Publisher
	runner        TxRunner
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewService(
	st store.Store,
	fields forms.Store,
	comparer Comparer,
	discrepancies OpenCounter,
	auditor *audit.Publisher,
	runner TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         st,
		fields:        fields,
		comparer:      comparer,
		discrepancies: discrepancies,
		auditor:       auditor,
		runner:        runner,
		metrics:       m,
		logger:        logger,
	}
}

// Register creates a new form instance in the not-started state. Instance
// creation is not a lifecycle transition, so no audit record is emitted.
func (s *Service) Register(ctx context.Context, formInstanceID id.FormInstanceID, siteID id.SiteID) (*models.FormInstance, error) {
	instance := &models.FormInstance{
		ID:     formInstanceID,
		SiteID: siteID,
		Status: id.StatusNotStarted,
	}
	if err := s.store.Create(ctx, instance); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "form instance already registered: "+formInstanceID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "register form instance")
	}
	return instance, nil
}

// Get returns the instance, for callers that need to inspect lifecycle state.
func (s *Service) Get(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error) {
	return s.load(ctx, formInstanceID)
}

// BeginFirstEntry moves a not-started instance into first-entry-in-progress.
func (s *Service) BeginFirstEntry(ctx context.Context, formInstanceID id.FormInstanceID, userID id.UserID) error {
	return s.runner.RunInstanceTx(ctx, formInstanceID, func(ctx context.Context) error {
		instance, err := s.load(ctx, formInstanceID)
		if err != nil {
			return err
		}
		if !instance.Status.CanTransition(id.StatusFirstEntryInProgress) {
			return s.invalidTransition(instance, id.StatusFirstEntryInProgress)
		}

		from := instance.Status
		instance.Status = id.StatusFirstEntryInProgress
		if err := s.store.Update(ctx, instance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update form instance")
		}
		return s.auditTransition(ctx, instance, userID, from, audit.EventFirstEntryStarted, "first entry started")
	})
}

// MarkFirstEntryComplete closes the first transcription pass, recording the
// first entrant's identity. Allowed from not-started or in-progress only.
func (s *Service) MarkFirstEntryComplete(ctx context.Context, formInstanceID id.FormInstanceID, userID id.UserID) error {
	return s.runner.RunInstanceTx(ctx, formInstanceID, func(ctx context.Context) error {
		instance, err := s.load(ctx, formInstanceID)
		if err != nil {
			return err
		}
		if !instance.Status.CanTransition(id.StatusFirstEntryComplete) {
			return s.invalidTransition(instance, id.StatusFirstEntryComplete)
		}

		from := instance.Status
		now := time.Now()
		instance.Status = id.StatusFirstEntryComplete
		instance.FirstEnteredBy = &userID
		instance.FirstEnteredAt = &now
		if err := s.store.Update(ctx, instance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update form instance")
		}
		return s.auditTransition(ctx, instance, userID, from, audit.EventFirstEntryComplete, "first entry complete")
	})
}

// Authorize runs the entry authorization gate against current state. Read
// only; SubmitSecondEntry re-runs the gate under the instance lock before
// mutating anything.
func (s *Service) Authorize(ctx context.Context, formInstanceID id.FormInstanceID, userID id.UserID) (Decision, error) {
	instance, err := s.load(ctx, formInstanceID)
	if err != nil {
		return Decision{}, err
	}
	required, err := s.fields.IsDoubleEntryRequired(ctx, formInstanceID)
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load form config")
	}
	return decide(instance, required, userID), nil
}

// SubmitSecondEntry stores the second transcription and synchronously runs the
// comparison. Zero mismatches advance the instance straight to reconciled;
// otherwise it stays in second-entry-in-progress awaiting resolution.
func (s *Service) SubmitSecondEntry(ctx context.Context, formInstanceID id.FormInstanceID, userID id.UserID, entries map[id.FieldID]string) (*compare.Result, error) {
	var result *compare.Result
	err := s.runner.RunInstanceTx(ctx, formInstanceID, func(ctx context.Context) error {
		instance, err := s.load(ctx, formInstanceID)
		if err != nil {
			return err
		}
		if instance.Status != id.StatusFirstEntryComplete {
			return s.invalidTransition(instance, id.StatusSecondEntryInProgress)
		}

		required, err := s.fields.IsDoubleEntryRequired(ctx, formInstanceID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load form config")
		}
		decision := decide(instance, required, userID)
		if !decision.Allowed {
			s.metrics.IncrementGateDenial(string(decision.Reason))
			return dErrors.New(dErrors.CodeAuthorizationDenied, decision.Message)
		}

		from := instance.Status
		now := time.Now()
		instance.Status = id.StatusSecondEntryInProgress
		instance.SecondEnteredBy = &userID
		instance.SecondEnteredAt = &now
		instance.SecondEntry = entries
		if err := s.store.Update(ctx, instance); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update form instance")
		}
		if err := s.auditTransition(ctx, instance, userID, from, audit.EventSecondEntrySubmitted, "second entry submitted"); err != nil {
			return err
		}

		result, err = s.comparer.Compare(ctx, formInstanceID)
		if err != nil {
			return err
		}

		// Post-comparison status is derived, not separately chosen.
		if result.Mismatched == 0 {
			if err := s.reconcile(ctx, instance, userID, "all fields matched on second entry"); err != nil {
				return err
			}
			s.metrics.IncrementAutoReconciled()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize closes out an instance whose discrepancies were resolved
// individually after detection. Refused while any remain open.
func (s *Service) Finalize(ctx context.Context, formInstanceID id.FormInstanceID, userID id.UserID) error {
	return s.runner.RunInstanceTx(ctx, formInstanceID, func(ctx context.Context) error {
		instance, err := s.load(ctx, formInstanceID)
		if err != nil {
			return err
		}
		if !instance.Status.CanTransition(id.StatusReconciled) {
			return s.invalidTransition(instance, id.StatusReconciled)
		}

		open, err := s.discrepancies.CountOpen(ctx, formInstanceID)
		if err != nil {
			return err
		}
		if open > 0 {
			return dErrors.Newf(dErrors.CodePreconditionFailed, "%d unresolved discrepancies remain", open)
		}
		return s.reconcile(ctx, instance, userID, "reconciliation finalized")
	})
}

// reconcile performs the shared terminal transition. Caller holds the
// instance lock and has verified the gate conditions.
func (s *Service) reconcile(ctx context.Context, instance *models.FormInstance, userID id.UserID, reason string) error {
	from := instance.Status
	now := time.Now()
	instance.Status = id.StatusReconciled
	instance.CompletedAt = &now
	if err := s.store.Update(ctx, instance); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update form instance")
	}
	return s.auditTransition(ctx, instance, userID, from, audit.EventInstanceReconciled, reason)
}

func (s *Service) load(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error) {
	instance, err := s.store.Get(ctx, formInstanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "form instance not found: "+formInstanceID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load form instance")
	}
	return instance, nil
}

func (s *Service) invalidTransition(instance *models.FormInstance, to id.EntryStatus) error {
	return dErrors.Newf(dErrors.CodeInvalidState,
		"cannot move form instance %s from %s to %s",
		instance.ID.String(), instance.Status.String(), to.String())
}

func (s *Service) auditTransition(ctx context.Context, instance *models.FormInstance, userID id.UserID, from id.EntryStatus, action audit.AuditEvent, reason string) error {
	err := s.auditor.Emit(ctx, audit.Event{
		Action:   string(action),
		ActorID:  userID,
		Entity:   "form_instance",
		EntityID: instance.ID.String(),
		OldValue: from.String(),
		NewValue: instance.Status.String(),
		Reason:   reason,
	})
	if err != nil {
		// Audit is mandatory for lifecycle transitions; the enclosing
		// transaction rolls the transition back with it.
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit lifecycle transition")
	}
	s.metrics.IncrementTransition(instance.Status.String())
	s.logger.InfoContext(ctx, "lifecycle transition",
		"form_instance_id", instance.ID.String(),
		"from", from.String(),
		"to", instance.Status.String(),
		"actor_id", userID.String())
	return nil
}
