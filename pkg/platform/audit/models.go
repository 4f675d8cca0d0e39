package audit

import (
	"context"
	"time"

	id "veridata/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This enables
// different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance (21 CFR
	// Part 11 territory): lifecycle transitions and discrepancy resolutions.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is one append-only audit record. One is emitted per lifecycle
// transition and per discrepancy resolution; events are never mutated or
// deleted.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	ActorID   id.UserID
	// Entity names the record type acted on ("form_instance", "discrepancy",
	// "field_entry"); EntityID is its identifier rendered as a string.
	Entity   string
	EntityID string
	OldValue string
	NewValue string
	Reason   string
	Action   string
}

type AuditEvent string

const (
	EventFirstEntryStarted    AuditEvent = "first_entry_started"
	EventFirstEntryComplete   AuditEvent = "first_entry_complete"
	EventSecondEntrySubmitted AuditEvent = "second_entry_submitted"
	EventInstanceReconciled   AuditEvent = "instance_reconciled"
	EventDiscrepancyOpened    AuditEvent = "discrepancy_opened"
	EventDiscrepancyResolved  AuditEvent = "discrepancy_resolved"
	EventFieldValueSuperseded AuditEvent = "field_value_superseded"
)

// eventCategories maps each audit event to its category. Everything that moves
// the lifecycle or rewrites an authoritative value is compliance-grade.
var eventCategories = map[AuditEvent]EventCategory{
	EventFirstEntryStarted:    CategoryCompliance,
	EventFirstEntryComplete:   CategoryCompliance,
	EventSecondEntrySubmitted: CategoryCompliance,
	EventInstanceReconciled:   CategoryCompliance,
	EventDiscrepancyResolved:  CategoryCompliance,
	EventFieldValueSuperseded: CategoryCompliance,

	EventDiscrepancyOpened: CategoryOperations,
}

// Category returns the event's category, defaulting to operations.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events. Append failures must propagate: audit is
// mandatory for state-mutating operations, not best-effort.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error)
}
