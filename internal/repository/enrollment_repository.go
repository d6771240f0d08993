package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelier-ops/atelier-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `e.id, e.student_id, e.workshop_id, e.phase, e.status, e.paid, e.notes, e.enrolled_at, e.cancelled_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN workshops w ON w.id = e.workshop_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.WorkshopID != "" {
		conditions = append(conditions, fmt.Sprintf("e.workshop_id = $%d", len(args)+1))
		args = append(args, filter.WorkshopID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Paid != nil {
		conditions = append(conditions, fmt.Sprintf("e.paid = $%d", len(args)+1))
		args = append(args, *filter.Paid)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":   "e.enrolled_at",
		"student_name":  "s.full_name",
		"workshop_name": "w.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, s.email AS student_email, w.name AS workshop_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, s.email AS student_email, w.name AS workshop_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN workshops w ON w.id = e.workshop_id
        WHERE e.id = $1`, enrollmentColumns)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts an enrollment after checking live workshop capacity and
// duplicate ACTIVE enrollments inside the same transaction. The workshop
// row is locked so concurrent inscriptions cannot oversell the last seat
// or enroll the same student twice.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	const lockQuery = `SELECT capacity FROM workshops WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &capacity, lockQuery, enrollment.WorkshopID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock workshop: %w", err)
	}

	var enrolled int
	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE workshop_id = $1 AND status = $2`
	if err = tx.GetContext(ctx, &enrolled, countQuery, enrollment.WorkshopID, models.EnrollmentStatusActive); err != nil {
		return fmt.Errorf("count active enrollments: %w", err)
	}
	if enrolled >= capacity {
		err = ErrCapacityFull
		return err
	}

	var duplicates int
	const duplicateQuery = `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND workshop_id = $2 AND status = $3`
	if err = tx.GetContext(ctx, &duplicates, duplicateQuery, enrollment.StudentID, enrollment.WorkshopID, models.EnrollmentStatusActive); err != nil {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}
	if duplicates > 0 {
		err = ErrDuplicateEnrollment
		return err
	}

	const insertQuery = `INSERT INTO enrollments (id, student_id, workshop_id, phase, status, paid, notes, enrolled_at)
        VALUES (:id, :student_id, :workshop_id, :phase, :status, :paid, :notes, :enrolled_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "enrollment",
		EntityID:   enrollment.ID,
		Kind:       models.EventEnrollmentCreated,
		Detail:     fmt.Sprintf("student %s enrolled in workshop %s", enrollment.StudentID, enrollment.WorkshopID),
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// CancelResult reports what a cancellation transaction changed.
type CancelResult struct {
	Enrollment       *models.Enrollment
	RejectedPayments []string
}

// Cancel transitions an ACTIVE enrollment to CANCELLED as one atomic unit:
// the status flip, the notes append, the cascade rejecting every
// non-terminal linked payment and the student notification either all
// persist or none do. Returns ErrStateConflict when the enrollment is
// already cancelled; terminal payments are left untouched.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id, reason string, notif *models.Notification, actorID *string) (result *CancelResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment models.Enrollment
	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.id = $1 FOR UPDATE`, enrollmentColumns)
	if err = tx.GetContext(ctx, &enrollment, lockQuery, id); err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		err = ErrStateConflict
		return nil, err
	}

	now := time.Now().UTC()
	enrollment.Status = models.EnrollmentStatusCancelled
	enrollment.CancelledAt = &now
	enrollment.Notes = models.AppendNote(enrollment.Notes, models.CancellationNote(now, reason))

	const updateQuery = `UPDATE enrollments SET status = $2, cancelled_at = $3, notes = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, enrollment.Status, enrollment.CancelledAt, enrollment.Notes); err != nil {
		return nil, fmt.Errorf("cancel enrollment: %w", err)
	}

	var rejected []string
	const rejectQuery = `UPDATE payments SET status = $2, updated_at = $3
        WHERE enrollment_id = $1 AND status = ANY($4) RETURNING id`
	rows, err := tx.QueryxContext(ctx, rejectQuery, id, models.PaymentStatusRechazado, now,
		pqStringArray([]string{string(models.PaymentStatusPendiente), string(models.PaymentStatusPendienteVerificacion)}))
	if err != nil {
		return nil, fmt.Errorf("reject linked payments: %w", err)
	}
	for rows.Next() {
		var paymentID string
		if err = rows.Scan(&paymentID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rejected payment id: %w", err)
		}
		rejected = append(rejected, paymentID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejected payments: %w", err)
	}

	if notif != nil {
		if err = insertNotification(ctx, tx, notif); err != nil {
			return nil, err
		}
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "enrollment",
		EntityID:   id,
		Kind:       models.EventEnrollmentCancelled,
		Detail:     reason,
		ActorID:    actorID,
	}); err != nil {
		return nil, err
	}
	for _, paymentID := range rejected {
		if err = insertEvent(ctx, tx, &models.DomainEvent{
			EntityType: "payment",
			EntityID:   paymentID,
			Kind:       models.EventPaymentRejected,
			Detail:     "enrollment cancelled: " + reason,
			ActorID:    actorID,
		}); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return &CancelResult{Enrollment: &enrollment, RejectedPayments: rejected}, nil
}

// CountActiveByWorkshop counts ACTIVE enrollments for a workshop.
func (r *EnrollmentRepository) CountActiveByWorkshop(ctx context.Context, workshopID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE workshop_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, workshopID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}
