//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "veridata/pkg/domain"
	"veridata/pkg/platform/audit"
	"veridata/pkg/platform/audit/store/postgres"
	txcontext "veridata/pkg/platform/tx"
	"veridata/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestAuditPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *AuditPostgresSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_log")
	s.Require().NoError(err)
}

func newEvent(entityID string, action audit.AuditEvent, at time.Time) audit.Event {
	return audit.Event{
		Timestamp: at,
		ActorID:   id.UserID(uuid.New()),
		Entity:    "form_instance",
		EntityID:  entityID,
		Action:    string(action),
	}
}

func (s *AuditPostgresSuite) TestAppendAndList() {
	ctx := context.Background()
	entityID := uuid.NewString()
	base := time.Now().Truncate(time.Millisecond)

	older := newEvent(entityID, audit.EventFirstEntryStarted, base.Add(-time.Hour))
	newer := newEvent(entityID, audit.EventFirstEntryComplete, base)
	newer.OldValue = "not_started"
	newer.NewValue = "first_entry_complete"
	newer.Reason = "single-session entry"
	s.Require().NoError(s.store.Append(ctx, newer))
	s.Require().NoError(s.store.Append(ctx, older))

	events, err := s.store.ListByEntity(ctx, "form_instance", entityID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventFirstEntryStarted), events[0].Action, "oldest first")
	s.Equal(string(audit.EventFirstEntryComplete), events[1].Action)
	s.Equal("not_started", events[1].OldValue)
	s.Equal("single-session entry", events[1].Reason)
	s.Equal(newer.ActorID, events[1].ActorID)
	s.WithinDuration(base, events[1].Timestamp, time.Millisecond)

	events, err = s.store.ListByEntity(ctx, "form_instance", uuid.NewString())
	s.Require().NoError(err)
	s.Empty(events)
}

// An event without an explicit category is filed under its action's category.
func (s *AuditPostgresSuite) TestCategoryDerivedFromAction() {
	ctx := context.Background()
	entityID := uuid.NewString()

	s.Require().NoError(s.store.Append(ctx,
		newEvent(entityID, audit.EventInstanceReconciled, time.Now())))
	s.Require().NoError(s.store.Append(ctx,
		newEvent(entityID, audit.EventDiscrepancyOpened, time.Now().Add(time.Second))))

	events, err := s.store.ListByEntity(ctx, "form_instance", entityID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal(audit.CategoryOperations, events[1].Category)
}

// TestTransactionJoin verifies appends share the caller's transaction: a
// rolled-back mutation leaves no audit row behind.
func (s *AuditPostgresSuite) TestTransactionJoin() {
	ctx := context.Background()
	entityID := uuid.NewString()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx,
		newEvent(entityID, audit.EventFirstEntryStarted, time.Now())))
	s.Require().NoError(tx.Rollback())

	events, err := s.store.ListByEntity(ctx, "form_instance", entityID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *AuditPostgresSuite) TestListRecent() {
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		event := newEvent(uuid.NewString(), audit.EventDiscrepancyOpened,
			base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Append(ctx, event))
	}

	events, err := s.store.ListRecent(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.WithinDuration(base.Add(4*time.Second), events[0].Timestamp, time.Millisecond, "newest first")
}
