package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "veridata/pkg/domain"
	audit "veridata/pkg/platform/audit"
	txcontext "veridata/pkg/platform/tx"
)

// Store persists audit events in PostgreSQL. Appends join the caller's
// transaction when one is present in context, so an audit row is committed or
// rolled back together with the mutation it records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	var actorID *uuid.UUID
	if !event.ActorID.IsNil() {
		aid := uuid.UUID(event.ActorID)
		actorID = &aid
	}

	query := `
		INSERT INTO audit_log (
			id, category, logged_at, actor_id, entity, entity_id,
			old_value, new_value, reason, action
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		actorID,
		event.Entity,
		event.EntityID,
		event.OldValue,
		event.NewValue,
		event.Reason,
		event.Action,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entity, entityID string) ([]audit.Event, error) {
	query := `
		SELECT category, logged_at, actor_id, entity, entity_id,
			   old_value, new_value, reason, action
		FROM audit_log
		WHERE entity = $1 AND entity_id = $2
		ORDER BY logged_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across all entities.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, logged_at, actor_id, entity, entity_id,
			   old_value, new_value, reason, action
		FROM audit_log
		ORDER BY logged_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			cat     string
			actorID uuid.NullUUID
		)
		if err := rows.Scan(
			&cat,
			&event.Timestamp,
			&actorID,
			&event.Entity,
			&event.EntityID,
			&event.OldValue,
			&event.NewValue,
			&event.Reason,
			&event.Action,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(cat)
		if actorID.Valid {
			event.ActorID = id.UserID(actorID.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
