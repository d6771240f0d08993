package models

import "time"

// NotificationKind classifies notifications for client rendering.
type NotificationKind string

const (
	NotificationKindEnrollmentCancelled NotificationKind = "ENROLLMENT_CANCELLED"
	NotificationKindPaymentConfirmed    NotificationKind = "PAYMENT_CONFIRMED"
	NotificationKindPaymentSubmitted    NotificationKind = "PAYMENT_SUBMITTED"
)

// Notification is a user-scoped message created as a side effect of a
// lifecycle transition. Only the recipient flips the read flag; nothing
// else mutates a notification after creation.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter provides filters for listing notifications.
type NotificationFilter struct {
	UserID   string
	Unread   *bool
	Page     int
	PageSize int
}
