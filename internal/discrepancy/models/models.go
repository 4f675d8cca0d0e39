package models

import (
	"time"

	id "veridata/pkg/domain"
)

// ResolutionStatus tracks a discrepancy record's life. Records move
// open → resolved exactly once and never regress; they are never deleted.
type ResolutionStatus string

const (
	StatusOpen     ResolutionStatus = "open"
	StatusResolved ResolutionStatus = "resolved"
)

// Record is one detected mismatch between the two transcriptions of a field.
// FirstValue and SecondValue are snapshots at detection time; the
// authoritative field may move on after resolution, the record does not.
type Record struct {
	ID             id.DiscrepancyID
	FormInstanceID id.FormInstanceID
	FieldID        id.FieldID
	FieldName      string

	FirstValue  string
	SecondValue string

	Status        ResolutionStatus
	Strategy      *id.ResolutionStrategy
	ResolvedValue *string
	ResolvedBy    *id.UserID
	ResolvedAt    *time.Time
	Notes         string

	DetectedAt time.Time
}

// IsOpen reports whether the record still awaits resolution.
func (r *Record) IsOpen() bool { return r.Status == StatusOpen }
