package service

import (
	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
)

// EntryType says which transcription pass the caller would perform.
type EntryType string

const (
	EntryTypeFirst  EntryType = "first"
	EntryTypeSecond EntryType = "second"
)

// DenialReason is the gate's sub-reason for rejecting an entry attempt.
type DenialReason string

const (
	// DenialNotRequired: the form is not flagged for double data entry.
	DenialNotRequired DenialReason = "not_required"
	// DenialAlreadyComplete: the second-entrant slot is already filled.
	DenialAlreadyComplete DenialReason = "already_complete"
	// DenialSameEntrant: the caller performed the first entry; the two passes
	// must come from different people.
	DenialSameEntrant DenialReason = "same_entrant"
)

// Decision is the gate's verdict. Message is operator-renderable as-is.
type Decision struct {
	Allowed   bool
	EntryType EntryType
	Reason    DenialReason
	Message   string
}

// decide is the entry authorization gate: a pure function over already-loaded
// state, no mutation. The lifecycle service runs it again under the instance
// lock before mutating, so a stale read here cannot let two second entries
// through.
func decide(instance *models.FormInstance, doubleEntryRequired bool, userID id.UserID) Decision {
	if instance.Status.Before(id.StatusFirstEntryComplete) {
		return Decision{Allowed: true, EntryType: EntryTypeFirst}
	}

	if !doubleEntryRequired {
		return Decision{
			Reason:  DenialNotRequired,
			Message: "Double data entry is not required for this form.",
		}
	}
	if instance.HasSecondEntrant() {
		return Decision{
			Reason:  DenialAlreadyComplete,
			Message: "Second entry has already been completed for this form instance.",
		}
	}
	if instance.FirstEnteredBy != nil && *instance.FirstEnteredBy == userID {
		return Decision{
			Reason: DenialSameEntrant,
			Message: "Different user required for second entry. First entry was done by " +
				instance.FirstEnteredBy.String(),
		}
	}
	return Decision{Allowed: true, EntryType: EntryTypeSecond}
}
