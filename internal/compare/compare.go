// Package compare implements the field-by-field comparison of the two
// independent transcriptions of a form instance.
package compare

import (
	"context"
	"errors"
	"log/slog"

	"veridata/internal/entry/models"
	"veridata/internal/forms"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/sentinel"
)

// FieldVerdict is the outcome for one field: both values as captured, and
// whether their normalized forms are equal.
type FieldVerdict struct {
	FieldID     id.FieldID
	FieldName   string
	FirstValue  string
	SecondValue string
	Matches     bool
}

// Result aggregates the verdicts for one comparison run.
type Result struct {
	FormInstanceID id.FormInstanceID
	Verdicts       []FieldVerdict
	Total          int
	Matched        int
	Mismatched     int
}

// Diff compares the authoritative first-entry fields against the second-entry
// snapshot. Fields absent from the snapshot compare as empty string. Pure.
func Diff(formInstanceID id.FormInstanceID, fields []forms.FieldEntry, snapshot map[id.FieldID]string) Result {
	result := Result{FormInstanceID: formInstanceID}
	for _, field := range fields {
		second := snapshot[field.FieldID]
		verdict := FieldVerdict{
			FieldID:     field.FieldID,
			FieldName:   field.Name,
			FirstValue:  field.Value,
			SecondValue: second,
			Matches:     Normalize(field.Value) == Normalize(second),
		}
		result.Verdicts = append(result.Verdicts, verdict)
		result.Total++
		if verdict.Matches {
			result.Matched++
		} else {
			result.Mismatched++
		}
	}
	return result
}

// InstanceSource supplies the stored form instance with its second-entry
// snapshot.
type InstanceSource interface {
	Get(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error)
}

// FieldSource supplies the authoritative first-entry values.
type FieldSource interface {
	GetFieldValues(ctx context.Context, formInstanceID id.FormInstanceID) ([]forms.FieldEntry, error)
}

// Recorder opens a discrepancy for a mismatched field unless one is already
// open there. Implemented by the discrepancy service.
type Recorder interface {
	EnsureOpen(ctx context.Context, formInstanceID id.FormInstanceID, verdict FieldVerdict) error
}

// Engine runs comparisons and records mismatches. Detection is idempotent per
// field: rerunning against unchanged data opens no duplicate discrepancies.
type Engine struct {
	instances InstanceSource
	fields    FieldSource
	recorder  Recorder
	logger    *slog.Logger
}

func NewEngine(instances InstanceSource, fields FieldSource, recorder Recorder, logger *slog.Logger) *Engine {
	return &Engine{instances: instances, fields: fields, recorder: recorder, logger: logger}
}

// Compare produces per-field verdicts for the instance and opens a
// discrepancy for every mismatch without one. Runs inside the caller's
// transaction scope when invoked from a lifecycle transition.
func (e *Engine) Compare(ctx context.Context, formInstanceID id.FormInstanceID) (*Result, error) {
	instance, err := e.instances.Get(ctx, formInstanceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "form instance not found: "+formInstanceID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load form instance")
	}

	fields, err := e.fields.GetFieldValues(ctx, formInstanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load field values")
	}

	result := Diff(formInstanceID, fields, instance.SecondEntry)
	for _, verdict := range result.Verdicts {
		if verdict.Matches {
			continue
		}
		if err := e.recorder.EnsureOpen(ctx, formInstanceID, verdict); err != nil {
			return nil, err
		}
	}

	e.logger.InfoContext(ctx, "comparison complete",
		"form_instance_id", formInstanceID.String(),
		"total", result.Total,
		"mismatched", result.Mismatched)
	return &result, nil
}
