//go:build integration

package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"veridata/internal/entry/models"
	entrystore "veridata/internal/entry/store"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/testutil/containers"
)

func TestInstancePostgresTx(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	mgr := containers.GetManager()
	pg := mgr.GetPostgres(t)
	store := entrystore.NewPostgres(pg.DB, slog.Default())
	runner := newInstancePostgresTx(pg.DB, store)

	require.NoError(t, pg.TruncateTables(ctx,
		"audit_log", "discrepancies", "field_entries", "form_configs", "form_instances"))

	instance := &models.FormInstance{
		ID:     id.FormInstanceID(uuid.New()),
		SiteID: id.SiteID(uuid.New()),
		Status: id.StatusNotStarted,
	}
	require.NoError(t, store.Create(ctx, instance))

	t.Run("serializes load-decide-mutate across transactions", func(t *testing.T) {
		// Both goroutines read the status, decide, then write. Without the
		// row lock both reads would see not_started and both writes would
		// succeed; with it the loser observes the winner's transition.
		const workers = 8
		var wg sync.WaitGroup
		var wins, losses int
		var mu sync.Mutex

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := runner.RunInstanceTx(ctx, instance.ID, func(txCtx context.Context) error {
					current, err := store.Get(txCtx, instance.ID)
					if err != nil {
						return err
					}
					if current.Status != id.StatusNotStarted {
						return dErrors.New(dErrors.CodeInvalidState, "already started")
					}
					current.Status = id.StatusFirstEntryInProgress
					return store.Update(txCtx, current)
				})

				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if dErrors.HasCode(err, dErrors.CodeInvalidState) {
					losses++
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, wins, "exactly one transition should succeed")
		require.Equal(t, workers-1, losses)

		got, err := store.Get(ctx, instance.ID)
		require.NoError(t, err)
		require.Equal(t, id.StatusFirstEntryInProgress, got.Status)
	})

	t.Run("callback error rolls the transaction back", func(t *testing.T) {
		boom := errors.New("boom")
		err := runner.RunInstanceTx(ctx, instance.ID, func(txCtx context.Context) error {
			current, err := store.Get(txCtx, instance.ID)
			if err != nil {
				return err
			}
			current.Status = id.StatusFirstEntryComplete
			if err := store.Update(txCtx, current); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, instance.ID)
		require.NoError(t, err)
		require.Equal(t, id.StatusFirstEntryInProgress, got.Status, "write was rolled back")
	})

	t.Run("unregistered instance still runs the operation", func(t *testing.T) {
		ran := false
		err := runner.RunInstanceTx(ctx, id.FormInstanceID(uuid.New()), func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		require.True(t, ran)
	})

	t.Run("cancelled context aborts before the callback", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := runner.RunInstanceTx(cancelled, instance.ID, func(context.Context) error {
			t.Fatal("callback should not run")
			return nil
		})
		require.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("default deadline bounds the transaction", func(t *testing.T) {
		err := runner.RunInstanceTx(ctx, instance.ID, func(txCtx context.Context) error {
			deadline, ok := txCtx.Deadline()
			require.True(t, ok)
			require.LessOrEqual(t, time.Until(deadline), defaultInstanceTxTimeout)
			return nil
		})
		require.NoError(t, err)
	})
}
