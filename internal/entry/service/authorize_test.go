package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"veridata/internal/entry/models"
	id "veridata/pkg/domain"
)

// decide is pure, so the gate's full decision table is pinned here. The
// service-level tests cover the re-check under the instance lock.
func TestDecide(t *testing.T) {
	firstEntrant := id.UserID(uuid.New())
	otherUser := id.UserID(uuid.New())

	instanceWith := func(status id.EntryStatus, firstBy, secondBy *id.UserID) *models.FormInstance {
		return &models.FormInstance{
			ID:              id.NewFormInstanceID(),
			Status:          status,
			FirstEnteredBy:  firstBy,
			SecondEnteredBy: secondBy,
		}
	}

	t.Run("before first entry complete anyone does first entry", func(t *testing.T) {
		for _, status := range []id.EntryStatus{id.StatusNotStarted, id.StatusFirstEntryInProgress} {
			decision := decide(instanceWith(status, nil, nil), true, firstEntrant)
			assert.True(t, decision.Allowed, status)
			assert.Equal(t, EntryTypeFirst, decision.EntryType, status)
		}
	})

	t.Run("double entry not required denies second entry", func(t *testing.T) {
		decision := decide(instanceWith(id.StatusFirstEntryComplete, &firstEntrant, nil), false, otherUser)
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenialNotRequired, decision.Reason)
	})

	t.Run("filled second entrant slot denies further entry", func(t *testing.T) {
		decision := decide(instanceWith(id.StatusSecondEntryInProgress, &firstEntrant, &otherUser), true, otherUser)
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenialAlreadyComplete, decision.Reason)
	})

	t.Run("first entrant cannot do the second pass", func(t *testing.T) {
		decision := decide(instanceWith(id.StatusFirstEntryComplete, &firstEntrant, nil), true, firstEntrant)
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenialSameEntrant, decision.Reason)
		assert.Equal(t,
			"Different user required for second entry. First entry was done by "+firstEntrant.String(),
			decision.Message)
	})

	t.Run("a different user is cleared for second entry", func(t *testing.T) {
		decision := decide(instanceWith(id.StatusFirstEntryComplete, &firstEntrant, nil), true, otherUser)
		assert.True(t, decision.Allowed)
		assert.Equal(t, EntryTypeSecond, decision.EntryType)
		assert.Empty(t, decision.Reason)
	})
}
