package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
	txcontext "veridata/pkg/platform/tx"
)

// Postgres persists field entries and form configuration. Writes join the
// caller's transaction when one is present in context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) GetFieldValues(ctx context.Context, formInstanceID id.FormInstanceID) ([]FieldEntry, error) {
	query := `
		SELECT field_id, form_instance_id, name, value, updated_by, updated_at
		FROM field_entries
		WHERE form_instance_id = $1
		ORDER BY name ASC
	`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(formInstanceID))
	if err != nil {
		return nil, fmt.Errorf("query field entries: %w", err)
	}
	defer rows.Close()

	var entries []FieldEntry
	for rows.Next() {
		entry, err := scanFieldEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field entries: %w", err)
	}
	return entries, nil
}

func (s *Postgres) GetFieldValue(ctx context.Context, fieldID id.FieldID) (*FieldEntry, error) {
	query := `
		SELECT field_id, form_instance_id, name, value, updated_by, updated_at
		FROM field_entries
		WHERE field_id = $1
	`
	row := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(fieldID))

	entry, err := scanFieldEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *Postgres) SetFieldValue(ctx context.Context, fieldID id.FieldID, value string, actingUserID id.UserID) error {
	query := `
		UPDATE field_entries
		SET value = $2, updated_by = $3, updated_at = $4
		WHERE field_id = $1
	`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(fieldID), value, uuid.UUID(actingUserID), time.Now())
	if err != nil {
		return fmt.Errorf("update field entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update field entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) IsDoubleEntryRequired(ctx context.Context, formInstanceID id.FormInstanceID) (bool, error) {
	query := `
		SELECT double_entry_required
		FROM form_configs
		WHERE form_instance_id = $1
	`
	var required bool
	err := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(formInstanceID)).Scan(&required)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query form config: %w", err)
	}
	return required, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFieldEntry(row rowScanner) (*FieldEntry, error) {
	var (
		entry     FieldEntry
		fid, iid  uuid.UUID
		updatedBy uuid.UUID
	)
	if err := row.Scan(&fid, &iid, &entry.Name, &entry.Value, &updatedBy, &entry.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan field entry: %w", err)
	}
	entry.FieldID = id.FieldID(fid)
	entry.FormInstanceID = id.FormInstanceID(iid)
	entry.UpdatedBy = id.UserID(updatedBy)
	return &entry, nil
}
