// Package dashboard provides read-only projections over the reconciliation
// state: work queues and aggregate counts. Nothing here mutates anything.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
)

// EntryStore is the read slice of the form instance store.
type EntryStore interface {
	ListByStatus(ctx context.Context, status id.EntryStatus, site *id.SiteID) ([]*models.FormInstance, error)
	CountByStatus(ctx context.Context) (map[id.EntryStatus]int, error)
}

// OpenCounter reports open discrepancies per instance.
type OpenCounter interface {
	CountOpen(ctx context.Context, formInstanceID id.FormInstanceID) (int, error)
}

// ConfigSource reports the double-entry flag per instance.
type ConfigSource interface {
	IsDoubleEntryRequired(ctx context.Context, formInstanceID id.FormInstanceID) (bool, error)
}

// CountCache is an optional short-TTL cache in front of status counts. A
// cache miss or failure falls through to the store.
type CountCache interface {
	GetStatusCounts(ctx context.Context) (map[id.EntryStatus]int, bool)
	SetStatusCounts(ctx context.Context, counts map[id.EntryStatus]int)
}

// Overview bundles the dashboard's projections for one fetch.
type Overview struct {
	PendingSecondEntry []models.Summary
	PendingResolution  []models.Summary
	StatusCounts       map[id.EntryStatus]int
}

type Service struct {
	entries       EntryStore
	discrepancies OpenCounter
	forms         ConfigSource
	cache         CountCache
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(entries EntryStore, discrepancies OpenCounter, forms ConfigSource, cache CountCache, logger *slog.Logger) *Service {
	return &Service{
		entries:       entries,
		discrepancies: discrepancies,
		forms:         forms,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
	}
}

// PendingSecondEntry lists instances whose first pass is complete and which
// are flagged for double entry, oldest-waiting first.
func (s *Service) PendingSecondEntry(ctx context.Context, site *id.SiteID) ([]models.Summary, error) {
	instances, err := s.entries.ListByStatus(ctx, id.StatusFirstEntryComplete, site)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending second entry")
	}

	now := s.now()
	var summaries []models.Summary
	for _, instance := range instances {
		required, err := s.forms.IsDoubleEntryRequired(ctx, instance.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load form config")
		}
		if !required {
			continue
		}
		waiting := time.Duration(0)
		if instance.FirstEnteredAt != nil {
			waiting = now.Sub(*instance.FirstEnteredAt)
		}
		summaries = append(summaries, models.Summary{
			ID:      instance.ID,
			SiteID:  instance.SiteID,
			Status:  instance.Status,
			Waiting: waiting,
		})
	}
	return summaries, nil
}

// PendingResolution lists instances stuck in second-entry-in-progress with
// open discrepancies.
func (s *Service) PendingResolution(ctx context.Context, site *id.SiteID) ([]models.Summary, error) {
	instances, err := s.entries.ListByStatus(ctx, id.StatusSecondEntryInProgress, site)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending resolution")
	}

	now := s.now()
	var summaries []models.Summary
	for _, instance := range instances {
		open, err := s.discrepancies.CountOpen(ctx, instance.ID)
		if err != nil {
			return nil, err
		}
		if open == 0 {
			// Resolved individually but not finalized yet; the finalize queue,
			// not the resolution queue.
			continue
		}
		waiting := time.Duration(0)
		if instance.SecondEnteredAt != nil {
			waiting = now.Sub(*instance.SecondEnteredAt)
		}
		summaries = append(summaries, models.Summary{
			ID:                instance.ID,
			SiteID:            instance.SiteID,
			Status:            instance.Status,
			Waiting:           waiting,
			OpenDiscrepancies: open,
		})
	}
	return summaries, nil
}

// StatusCounts returns instance counts by lifecycle status, served from cache
// when fresh.
func (s *Service) StatusCounts(ctx context.Context) (map[id.EntryStatus]int, error) {
	if s.cache != nil {
		if counts, ok := s.cache.GetStatusCounts(ctx); ok {
			return counts, nil
		}
	}
	counts, err := s.entries.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count instances by status")
	}
	if s.cache != nil {
		s.cache.SetStatusCounts(ctx, counts)
	}
	return counts, nil
}

// Overview fetches both work queues and the counts concurrently.
func (s *Service) Overview(ctx context.Context, site *id.SiteID) (*Overview, error) {
	var overview Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pending, err := s.PendingSecondEntry(ctx, site)
		overview.PendingSecondEntry = pending
		return err
	})
	g.Go(func() error {
		pending, err := s.PendingResolution(ctx, site)
		overview.PendingResolution = pending
		return err
	})
	g.Go(func() error {
		counts, err := s.StatusCounts(ctx)
		overview.StatusCounts = counts
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}
