package models

import "time"

// PaymentStatus represents the lifecycle of a payment.
type PaymentStatus string

// Payment statuses. CONFIRMADO and RECHAZADO are terminal.
const (
	PaymentStatusPendiente             PaymentStatus = "PENDIENTE"
	PaymentStatusPendienteVerificacion PaymentStatus = "PENDIENTE_VERIFICACION"
	PaymentStatusConfirmado            PaymentStatus = "CONFIRMADO"
	PaymentStatusRechazado             PaymentStatus = "RECHAZADO"
)

// paymentTransitions is the explicit edge set of the payment state
// machine. Terminal states have no outgoing edges.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPendiente:             {PaymentStatusPendienteVerificacion, PaymentStatusConfirmado, PaymentStatusRechazado},
	PaymentStatusPendienteVerificacion: {PaymentStatusConfirmado, PaymentStatusRechazado},
	PaymentStatusConfirmado:            {},
	PaymentStatusRechazado:             {},
}

// CanTransitionTo reports whether the edge from s to target exists.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// Payment is a financial transaction tied to a student and optionally an
// enrollment. Fiscal fields are populated exactly once after confirmation
// and are immutable afterwards.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	EnrollmentID  *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Amount        float64       `db:"amount" json:"amount"`
	PeriodMonth   int           `db:"period_month" json:"period_month"`
	PeriodYear    int           `db:"period_year" json:"period_year"`
	Method        string        `db:"method" json:"method"`
	Status        PaymentStatus `db:"status" json:"status"`
	CAE           *string       `db:"cae" json:"cae,omitempty"`
	CAEDueDate    *time.Time    `db:"cae_due_date" json:"cae_due_date,omitempty"`
	InvoiceNumber *string       `db:"invoice_number" json:"invoice_number,omitempty"`
	ConfirmedAt   *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Invoiced reports whether fiscal data has already been attached.
func (p *Payment) Invoiced() bool {
	return p.CAE != nil && *p.CAE != ""
}

// PaymentDetail enriches Payment with student and workshop info.
type PaymentDetail struct {
	Payment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	WorkshopName *string `db:"workshop_name" json:"workshop_name,omitempty"`
}

// FiscalRecord carries externally issued invoice identifiers.
type FiscalRecord struct {
	CAE           string    `json:"cae" validate:"required"`
	CAEDueDate    time.Time `json:"cae_due_date" validate:"required"`
	InvoiceNumber string    `json:"invoice_number" validate:"required"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	StudentID    string
	EnrollmentID string
	Status       PaymentStatus
	PeriodMonth  int
	PeriodYear   int
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
