package models

import (
	"time"

	id "veridata/pkg/domain"
)

// FormInstance is one filled-out case-report-form occurrence for one
// subject/visit, tracked through the double-data-entry lifecycle. It is owned
// by the lifecycle service: nothing else mutates status or the entrant slots,
// and instances are never deleted, only transitioned.
type FormInstance struct {
	ID     id.FormInstanceID
	SiteID id.SiteID
	Status id.EntryStatus

	FirstEnteredBy  *id.UserID
	FirstEnteredAt  *time.Time
	SecondEnteredBy *id.UserID
	SecondEnteredAt *time.Time
	CompletedAt     *time.Time

	// SecondEntry is the second entrant's transcription, keyed by field.
	// The authoritative first-entry values live in the form instance store's
	// field table; only the second pass is snapshotted here.
	SecondEntry map[id.FieldID]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSecondEntrant reports whether the second-entrant slot is filled.
func (f *FormInstance) HasSecondEntrant() bool {
	return f.SecondEnteredBy != nil
}

// Summary is the dashboard projection of a form instance.
type Summary struct {
	ID     id.FormInstanceID
	SiteID id.SiteID
	Status id.EntryStatus
	// Waiting is the elapsed time since the timestamp relevant to the
	// instance's current queue (first-entry completion for pending second
	// entry, second-entry submission for pending resolution).
	Waiting           time.Duration
	OpenDiscrepancies int
}
