package store

import (
	"context"

	"veridata/internal/discrepancy/models"
	id "veridata/pkg/domain"
)

// Store persists discrepancy records. Records are append-and-resolve only;
// there is no delete.
type Store interface {
	// Create inserts a new open record.
	Create(ctx context.Context, record *models.Record) error

	// Get returns a record or sentinel.ErrNotFound.
	Get(ctx context.Context, discrepancyID id.DiscrepancyID) (*models.Record, error)

	// Update persists resolution fields. Returns sentinel.ErrNotFound for an
	// unknown record.
	Update(ctx context.Context, record *models.Record) error

	// FindOpenByField returns the open record on a field, or
	// sentinel.ErrNotFound when none is open. At most one record per field is
	// ever open.
	FindOpenByField(ctx context.Context, formInstanceID id.FormInstanceID, fieldID id.FieldID) (*models.Record, error)

	// CountOpenForFormInstance is the finalize gate.
	CountOpenForFormInstance(ctx context.Context, formInstanceID id.FormInstanceID) (int, error)

	// ListByFormInstance returns every record for an instance, oldest first.
	ListByFormInstance(ctx context.Context, formInstanceID id.FormInstanceID) ([]*models.Record, error)
}
