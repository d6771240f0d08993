package models

import "time"

// Event kinds recorded in the domain event log.
const (
	EventEnrollmentCreated   = "ENROLLMENT_CREATED"
	EventEnrollmentCancelled = "ENROLLMENT_CANCELLED"
	EventPaymentCreated      = "PAYMENT_CREATED"
	EventPaymentSent         = "PAYMENT_SENT"
	EventPaymentConfirmed    = "PAYMENT_CONFIRMED"
	EventPaymentRejected     = "PAYMENT_REJECTED"
	EventPaymentInvoiced     = "PAYMENT_INVOICED"
)

// DomainEvent is an append-only audit record written in the same
// transaction as the mutation it describes. It is never updated or
// deleted.
type DomainEvent struct {
	ID         string    `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Kind       string    `db:"kind" json:"kind"`
	Detail     string    `db:"detail" json:"detail"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// EventFilter provides filters for listing domain events.
type EventFilter struct {
	EntityType string
	EntityID   string
	Kind       string
	Page       int
	PageSize   int
}
