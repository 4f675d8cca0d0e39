package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
	"veridata/pkg/platform/sentinel"
	txcontext "veridata/pkg/platform/tx"
)

// Legacy completion-status codes shared with workflows outside this engine.
// Codes 5 (locked) and 7 (removed) belong to those workflows and never appear
// here; the translation below is the only place the shared encoding exists.
const (
	codeNotStarted            = 1
	codeFirstEntryInProgress  = 2
	codeFirstEntryComplete    = 3
	codeSecondEntryInProgress = 4
	codeReconciled            = 6
)

var statusToCode = map[id.EntryStatus]int{
	id.StatusNotStarted:            codeNotStarted,
	id.StatusFirstEntryInProgress:  codeFirstEntryInProgress,
	id.StatusFirstEntryComplete:    codeFirstEntryComplete,
	id.StatusSecondEntryInProgress: codeSecondEntryInProgress,
	id.StatusReconciled:            codeReconciled,
}

var codeToStatus = map[int]id.EntryStatus{
	codeNotStarted:            id.StatusNotStarted,
	codeFirstEntryInProgress:  id.StatusFirstEntryInProgress,
	codeFirstEntryComplete:    id.StatusFirstEntryComplete,
	codeSecondEntryInProgress: id.StatusSecondEntryInProgress,
	codeReconciled:            id.StatusReconciled,
}

const uniqueViolation = "23505"

// Postgres persists form instances. The second-entry snapshot is stored as a
// JSON text column; a snapshot that fails to parse on read is logged and
// treated as empty so one corrupt row cannot wedge an instance.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
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

// Lock acquires the per-instance row lock. The Postgres tx runner calls this
// before handing control to the operation so load-decide-mutate is serialized
// per instance.
func (s *Postgres) Lock(ctx context.Context, formInstanceID id.FormInstanceID) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return fmt.Errorf("lock requires an active transaction")
	}
	var locked uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM form_instances WHERE id = $1 FOR UPDATE`,
		uuid.UUID(formInstanceID),
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock form instance: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, instance *models.FormInstance) error {
	now := time.Now()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	snapshot, err := marshalSnapshot(instance.SecondEntry)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO form_instances (
			id, site_id, status_code,
			first_entered_by, first_entered_at,
			second_entered_by, second_entered_at,
			completed_at, second_entry_snapshot,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(instance.ID),
		uuid.UUID(instance.SiteID),
		statusToCode[instance.Status],
		userIDValue(instance.FirstEnteredBy),
		instance.FirstEnteredAt,
		userIDValue(instance.SecondEnteredBy),
		instance.SecondEnteredAt,
		instance.CompletedAt,
		snapshot,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert form instance: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error) {
	query := selectInstance + ` WHERE id = $1`
	row := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(formInstanceID))

	instance, err := s.scanInstance(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *Postgres) Update(ctx context.Context, instance *models.FormInstance) error {
	instance.UpdatedAt = time.Now()

	snapshot, err := marshalSnapshot(instance.SecondEntry)
	if err != nil {
		return err
	}

	query := `
		UPDATE form_instances
		SET status_code = $2,
			first_entered_by = $3, first_entered_at = $4,
			second_entered_by = $5, second_entered_at = $6,
			completed_at = $7, second_entry_snapshot = $8,
			updated_at = $9
		WHERE id = $1
	`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(instance.ID),
		statusToCode[instance.Status],
		userIDValue(instance.FirstEnteredBy),
		instance.FirstEnteredAt,
		userIDValue(instance.SecondEnteredBy),
		instance.SecondEnteredAt,
		instance.CompletedAt,
		snapshot,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update form instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form instance: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByStatus(ctx context.Context, status id.EntryStatus, site *id.SiteID) ([]*models.FormInstance, error) {
	query := selectInstance + ` WHERE status_code = $1`
	args := []any{statusToCode[status]}
	if site != nil {
		query += ` AND site_id = $2`
		args = append(args, uuid.UUID(*site))
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query form instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.FormInstance
	for rows.Next() {
		instance, err := s.scanInstance(ctx, rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form instances: %w", err)
	}
	return instances, nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[id.EntryStatus]int, error) {
	query := `SELECT status_code, COUNT(*) FROM form_instances GROUP BY status_code`
	rows, err := s.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count form instances: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.EntryStatus]int)
	for rows.Next() {
		var code, count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		status, ok := codeToStatus[code]
		if !ok {
			// Rows parked in a foreign workflow state are not ours to count.
			continue
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

const selectInstance = `
	SELECT id, site_id, status_code,
		   first_entered_by, first_entered_at,
		   second_entered_by, second_entered_at,
		   completed_at, second_entry_snapshot,
		   created_at, updated_at
	FROM form_instances`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanInstance(ctx context.Context, row rowScanner) (*models.FormInstance, error) {
	var (
		instance           models.FormInstance
		instanceID, siteID uuid.UUID
		statusCode         int
		firstBy, secondBy  uuid.NullUUID
		firstAt, secondAt  sql.NullTime
		completedAt        sql.NullTime
		snapshot           sql.NullString
	)
	err := row.Scan(
		&instanceID, &siteID, &statusCode,
		&firstBy, &firstAt,
		&secondBy, &secondAt,
		&completedAt, &snapshot,
		&instance.CreatedAt, &instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan form instance: %w", err)
	}

	instance.ID = id.FormInstanceID(instanceID)
	instance.SiteID = id.SiteID(siteID)
	status, ok := codeToStatus[statusCode]
	if !ok {
		return nil, fmt.Errorf("form instance %s carries foreign status code %d", instance.ID, statusCode)
	}
	instance.Status = status
	if firstBy.Valid {
		u := id.UserID(firstBy.UUID)
		instance.FirstEnteredBy = &u
	}
	if secondBy.Valid {
		u := id.UserID(secondBy.UUID)
		instance.SecondEnteredBy = &u
	}
	if firstAt.Valid {
		t := firstAt.Time
		instance.FirstEnteredAt = &t
	}
	if secondAt.Valid {
		t := secondAt.Time
		instance.SecondEnteredAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		instance.CompletedAt = &t
	}
	instance.SecondEntry = s.parseSnapshot(ctx, instance.ID, snapshot)
	return &instance, nil
}

// parseSnapshot tolerates a corrupt snapshot column: the row predates this
// engine or was hand-edited, and failing every read over it would strand the
// instance. The parse failure is logged and the snapshot treated as empty.
func (s *Postgres) parseSnapshot(ctx context.Context, instanceID id.FormInstanceID, snapshot sql.NullString) map[id.FieldID]string {
	if !snapshot.Valid || snapshot.String == "" {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(snapshot.String), &raw); err != nil {
		s.logger.WarnContext(ctx, "discarding malformed second-entry snapshot",
			"form_instance_id", instanceID.String(), "error", err)
		return nil
	}
	parsed := make(map[id.FieldID]string, len(raw))
	for key, value := range raw {
		fieldID, err := id.ParseFieldID(key)
		if err != nil {
			s.logger.WarnContext(ctx, "discarding snapshot entry with malformed field id",
				"form_instance_id", instanceID.String(), "field_key", key)
			continue
		}
		parsed[fieldID] = value
	}
	return parsed
}

func marshalSnapshot(snapshot map[id.FieldID]string) (sql.NullString, error) {
	if len(snapshot) == 0 {
		return sql.NullString{}, nil
	}
	raw := make(map[string]string, len(snapshot))
	for fieldID, value := range snapshot {
		raw[fieldID.String()] = value
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal second-entry snapshot: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func userIDValue(userID *id.UserID) *uuid.UUID {
	if userID == nil {
		return nil
	}
	u := uuid.UUID(*userID)
	return &u
}
