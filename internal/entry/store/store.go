package store

import (
	"context"

	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
)

// Store persists form instances. Mutations happen only through the lifecycle
// service, inside its per-instance transaction scope.
type Store interface {
	// Create inserts a new instance. Returns sentinel.ErrConflict when the ID
	// already exists.
	Create(ctx context.Context, instance *models.FormInstance) error

	// Get returns an instance or sentinel.ErrNotFound.
	Get(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error)

	// Update persists status, entrant slots, timestamps and the second-entry
	// snapshot. Returns sentinel.ErrNotFound for an unknown instance.
	Update(ctx context.Context, instance *models.FormInstance) error

	// ListByStatus returns instances in the given status, optionally filtered
	// by site, ordered oldest change first.
	ListByStatus(ctx context.Context, status id.EntryStatus, site *id.SiteID) ([]*models.FormInstance, error)

	// CountByStatus returns instance counts keyed by lifecycle status.
	CountByStatus(ctx context.Context) (map[id.EntryStatus]int, error)
}
