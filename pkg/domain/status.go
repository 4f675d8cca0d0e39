package domain

import dErrors "veridata/pkg/domain-errors"

// EntryStatus is the double-data-entry completion status of a form instance.
// Invariant: status only moves forward along the transition graph below; there
// is no reopening in this engine.
//
// The legacy schema shares one integer status column across unrelated
// workflows; the Postgres store translates between that code and this enum so
// nothing above the storage boundary ever sees the shared encoding.
type EntryStatus string

const (
	StatusNotStarted            EntryStatus = "not_started"
	StatusFirstEntryInProgress  EntryStatus = "first_entry_in_progress"
	StatusFirstEntryComplete    EntryStatus = "first_entry_complete"
	StatusSecondEntryInProgress EntryStatus = "second_entry_in_progress"
	StatusReconciled            EntryStatus = "reconciled"
)

// statusOrder gives each status its position on the linear lifecycle.
var statusOrder = map[EntryStatus]int{
	StatusNotStarted:            0,
	StatusFirstEntryInProgress:  1,
	StatusFirstEntryComplete:    2,
	StatusSecondEntryInProgress: 3,
	StatusReconciled:            4,
}

// transitions is the single source of truth for permitted moves.
var transitions = map[EntryStatus][]EntryStatus{
	StatusNotStarted:            {StatusFirstEntryInProgress, StatusFirstEntryComplete},
	StatusFirstEntryInProgress:  {StatusFirstEntryComplete},
	StatusFirstEntryComplete:    {StatusSecondEntryInProgress},
	StatusSecondEntryInProgress: {StatusReconciled},
	StatusReconciled:            {},
}

// ParseEntryStatus constructs an EntryStatus from external input.
func ParseEntryStatus(s string) (EntryStatus, error) {
	st := EntryStatus(s)
	if _, ok := statusOrder[st]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown entry status: "+s)
	}
	return st, nil
}

func (s EntryStatus) IsValid() bool {
	_, ok := statusOrder[s]
	return ok
}

func (s EntryStatus) String() string { return string(s) }

// CanTransition reports whether moving to next is permitted from s.
func (s EntryStatus) CanTransition(next EntryStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Before reports whether s precedes other on the lifecycle. Used by the
// authorization gate ("status < first_entry_complete means first entry").
func (s EntryStatus) Before(other EntryStatus) bool {
	return statusOrder[s] < statusOrder[other]
}

func (s EntryStatus) IsTerminal() bool { return s == StatusReconciled }
