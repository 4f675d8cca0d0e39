package forms

import (
	"time"

	id "veridata/pkg/domain"
)

// FieldEntry is one field's authoritative (first-entry) value within a form
// instance. The reconciliation engine reads these and rewrites Value when a
// discrepancy resolution supersedes it; it never creates them.
type FieldEntry struct {
	FieldID        id.FieldID
	FormInstanceID id.FormInstanceID
	Name           string
	Value          string
	UpdatedBy      id.UserID
	UpdatedAt      time.Time
}

// FormConfig carries the per-form configuration the engine consults. Only the
// double-entry flag matters here; everything else about form definitions lives
// outside this system.
type FormConfig struct {
	FormInstanceID      id.FormInstanceID
	DoubleEntryRequired bool
}
