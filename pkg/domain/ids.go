package domain

import (
	"github.com/google/uuid"

	dErrors "veridata/pkg/domain-errors"
)

// Typed identifiers for the reconciliation domain. Each is a distinct uuid
// newtype so form instances, fields, discrepancies, users, and sites cannot be
// confused at compile time.
//
// Usage: construct via the Parse* functions at trust boundaries; direct casting
// bypasses validation and is reserved for store adapters and tests.
type (
	FormInstanceID uuid.UUID
	FieldID        uuid.UUID
	DiscrepancyID  uuid.UUID
	UserID         uuid.UUID
	SiteID         uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

func ParseFormInstanceID(s string) (FormInstanceID, error) {
	u, err := parseUUID(s, "form instance")
	return FormInstanceID(u), err
}

func ParseFieldID(s string) (FieldID, error) {
	u, err := parseUUID(s, "field")
	return FieldID(u), err
}

func ParseDiscrepancyID(s string) (DiscrepancyID, error) {
	u, err := parseUUID(s, "discrepancy")
	return DiscrepancyID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

func ParseSiteID(s string) (SiteID, error) {
	u, err := parseUUID(s, "site")
	return SiteID(u), err
}

func (id FormInstanceID) String() string { return uuid.UUID(id).String() }
func (id FieldID) String() string        { return uuid.UUID(id).String() }
func (id DiscrepancyID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SiteID) String() string         { return uuid.UUID(id).String() }

func (id FormInstanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FieldID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DiscrepancyID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SiteID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// NewFormInstanceID generates a fresh random identifier. The remaining types
// get theirs from Parse or from the store layer on insert.
func NewFormInstanceID() FormInstanceID { return FormInstanceID(uuid.New()) }

func NewDiscrepancyID() DiscrepancyID { return DiscrepancyID(uuid.New()) }
