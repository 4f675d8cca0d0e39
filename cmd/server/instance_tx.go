package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	entrystore "veridata/internal/entry/store"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/sentinel"
	txcontext "veridata/pkg/platform/tx"
)

const defaultInstanceTxTimeout = 5 * time.Second

// instancePostgresTx is the Postgres transaction runner: one SQL transaction
// per operation, with a row lock on the form instance so load-decide-mutate
// serializes per instance across processes.
type instancePostgresTx struct {
	db      *sql.DB
	store   *entrystore.Postgres
	timeout time.Duration
}

func newInstancePostgresTx(db *sql.DB, store *entrystore.Postgres) *instancePostgresTx {
	return &instancePostgresTx{db: db, store: store}
}

func (t *instancePostgresTx) RunInstanceTx(ctx context.Context, formInstanceID id.FormInstanceID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultInstanceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ctx = txcontext.WithTx(ctx, tx)

	if err := t.store.Lock(ctx, formInstanceID); err != nil {
		// A not-yet-registered instance has no row to lock; the operation's
		// own load will report NotFound with a proper domain error.
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "lock form instance")
		}
	}

	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}
