package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veridata/internal/discrepancy/models"
	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
	txcontext "veridata/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists discrepancy records. A partial unique index on
// (form_instance_id, field_id) WHERE status = 'open' backs the at-most-one-open
// invariant at the schema level.
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

func (s *Postgres) Create(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO discrepancies (
			id, form_instance_id, field_id, field_name,
			first_value, second_value, status, notes, detected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.FormInstanceID),
		uuid.UUID(record.FieldID),
		record.FieldName,
		record.FirstValue,
		record.SecondValue,
		string(record.Status),
		record.Notes,
		record.DetectedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert discrepancy: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, discrepancyID id.DiscrepancyID) (*models.Record, error) {
	query := selectRecord + ` WHERE id = $1`
	record, err := scanRecord(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(discrepancyID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *Postgres) Update(ctx context.Context, record *models.Record) error {
	query := `
		UPDATE discrepancies
		SET status = $2, strategy = $3, resolved_value = $4,
			resolved_by = $5, resolved_at = $6, notes = $7
		WHERE id = $1
	`
	var strategy *string
	if record.Strategy != nil {
		st := record.Strategy.String()
		strategy = &st
	}
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Status),
		strategy,
		record.ResolvedValue,
		userIDValue(record.ResolvedBy),
		record.ResolvedAt,
		record.Notes,
	)
	if err != nil {
		return fmt.Errorf("update discrepancy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update discrepancy: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindOpenByField(ctx context.Context, formInstanceID id.FormInstanceID, fieldID id.FieldID) (*models.Record, error) {
	query := selectRecord + ` WHERE form_instance_id = $1 AND field_id = $2 AND status = 'open'`
	record, err := scanRecord(s.querier(ctx).QueryRowContext(ctx, query,
		uuid.UUID(formInstanceID), uuid.UUID(fieldID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *Postgres) CountOpenForFormInstance(ctx context.Context, formInstanceID id.FormInstanceID) (int, error) {
	query := `SELECT COUNT(*) FROM discrepancies WHERE form_instance_id = $1 AND status = 'open'`
	var count int
	if err := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(formInstanceID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open discrepancies: %w", err)
	}
	return count, nil
}

func (s *Postgres) ListByFormInstance(ctx context.Context, formInstanceID id.FormInstanceID) ([]*models.Record, error) {
	query := selectRecord + ` WHERE form_instance_id = $1 ORDER BY detected_at ASC`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(formInstanceID))
	if err != nil {
		return nil, fmt.Errorf("query discrepancies: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discrepancies: %w", err)
	}
	return records, nil
}

const selectRecord = `
	SELECT id, form_instance_id, field_id, field_name,
		   first_value, second_value, status, strategy,
		   resolved_value, resolved_by, resolved_at, notes, detected_at
	FROM discrepancies`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record                models.Record
		rid, iid, fid         uuid.UUID
		status                string
		strategy, resolvedVal sql.NullString
		resolvedBy            uuid.NullUUID
		resolvedAt            sql.NullTime
	)
	err := row.Scan(
		&rid, &iid, &fid, &record.FieldName,
		&record.FirstValue, &record.SecondValue, &status, &strategy,
		&resolvedVal, &resolvedBy, &resolvedAt, &record.Notes, &record.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan discrepancy: %w", err)
	}

	record.ID = id.DiscrepancyID(rid)
	record.FormInstanceID = id.FormInstanceID(iid)
	record.FieldID = id.FieldID(fid)
	record.Status = models.ResolutionStatus(status)
	if strategy.Valid {
		parsed, err := id.ParseResolutionStrategy(strategy.String)
		if err != nil {
			return nil, fmt.Errorf("discrepancy %s carries unknown strategy %q", record.ID, strategy.String)
		}
		record.Strategy = &parsed
	}
	if resolvedVal.Valid {
		v := resolvedVal.String
		record.ResolvedValue = &v
	}
	if resolvedBy.Valid {
		u := id.UserID(resolvedBy.UUID)
		record.ResolvedBy = &u
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		record.ResolvedAt = &t
	}
	return &record, nil
}

func userIDValue(userID *id.UserID) *uuid.UUID {
	if userID == nil {
		return nil
	}
	u := uuid.UUID(*userID)
	return &u
}
