package forms

import (
	"context"

	id "veridata/pkg/domain"
)

// Store is the narrow repository over the form instance store. The engine
// never constructs queries itself; whatever joins the backing schema needs
// stay behind these named operations.
type Store interface {
	// GetFieldValues returns the authoritative field entries for a form
	// instance, in stable field order.
	GetFieldValues(ctx context.Context, formInstanceID id.FormInstanceID) ([]FieldEntry, error)

	// GetFieldValue returns a single field entry. Returns sentinel.ErrNotFound
	// when the field does not exist.
	GetFieldValue(ctx context.Context, fieldID id.FieldID) (*FieldEntry, error)

	// SetFieldValue rewrites the authoritative value for a field, recording
	// who did it. Returns sentinel.ErrNotFound for an unknown field.
	SetFieldValue(ctx context.Context, fieldID id.FieldID, value string, actingUserID id.UserID) error

	// IsDoubleEntryRequired reports whether the instance's form is flagged for
	// double data entry.
	IsDoubleEntryRequired(ctx context.Context, formInstanceID id.FormInstanceID) (bool, error)
}
