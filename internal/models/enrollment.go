package models

import (
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Enrollment statuses. The machine is one-way: an enrollment that was
// cancelled is never reactivated, a new enrollment is created instead.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures a student's claim on a workshop slot.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	WorkshopID  string           `db:"workshop_id" json:"workshop_id"`
	Phase       string           `db:"phase" json:"phase"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	Paid        bool             `db:"paid" json:"paid"`
	Notes       string           `db:"notes" json:"notes"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CancelledAt *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and workshop info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	WorkshopName string `db:"workshop_name" json:"workshop_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	WorkshopID string
	Status     EnrollmentStatus
	Paid       *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CancellationNote formats the audit line appended to an enrollment's
// notes when it is cancelled. Existing notes are always preserved as a
// prefix.
func CancellationNote(at time.Time, reason string) string {
	return fmt.Sprintf("[CANCELLATION: %s] Reason: %s", at.Format("2006-01-02"), reason)
}

// AppendNote returns notes with line appended, keeping prior content intact.
func AppendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
