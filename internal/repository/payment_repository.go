package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atelier-ops/atelier-api/internal/models"
)

// PaymentRepository handles persistence of payments. Every state
// transition locks the payment row and re-checks the transition table
// inside the transaction, so concurrent transitions against the same
// payment resolve to exactly one winner.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `p.id, p.student_id, p.enrollment_id, p.amount, p.period_month, p.period_year, p.method, p.status, p.cae, p.cae_due_date, p.invoice_number, p.confirmed_at, p.created_at, p.updated_at`

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
LEFT JOIN students s ON s.id = p.student_id
LEFT JOIN enrollments e ON e.id = p.enrollment_id
LEFT JOIN workshops w ON w.id = e.workshop_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.PeriodMonth != 0 {
		conditions = append(conditions, fmt.Sprintf("p.period_month = $%d", len(args)+1))
		args = append(args, filter.PeriodMonth)
	}
	if filter.PeriodYear != 0 {
		conditions = append(conditions, fmt.Sprintf("p.period_year = $%d", len(args)+1))
		args = append(args, filter.PeriodYear)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "p.created_at",
		"amount":       "p.amount",
		"student_name": "s.full_name",
		"period":       "p.period_year, p.period_month",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.created_at"
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
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, paymentColumns, base+clause, orderBy, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetailByID returns a payment with contextual info.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, s.email AS student_email, w.name AS workshop_name
        FROM payments p
        LEFT JOIN students s ON s.id = p.student_id
        LEFT JOIN enrollments e ON e.id = p.enrollment_id
        LEFT JOIN workshops w ON w.id = e.workshop_id
        WHERE p.id = $1`, paymentColumns)
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new payment record in PENDIENTE state.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) (err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPendiente
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO payments (id, student_id, enrollment_id, amount, period_month, period_year, method, status, created_at, updated_at)
        VALUES (:id, :student_id, :enrollment_id, :amount, :period_month, :period_year, :method, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "payment",
		EntityID:   payment.ID,
		Kind:       models.EventPaymentCreated,
		Detail:     fmt.Sprintf("amount %.2f for period %02d/%d", payment.Amount, payment.PeriodMonth, payment.PeriodYear),
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// lockPayment loads and locks a payment row inside tx.
func lockPayment(ctx context.Context, tx *sqlx.Tx, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.id = $1 FOR UPDATE`, paymentColumns)
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkSent transitions PENDIENTE to PENDIENTE_VERIFICACION and fans out
// the provided admin notifications in the same transaction.
func (r *PaymentRepository) MarkSent(ctx context.Context, id string, notifs []models.Notification) (payment *models.Payment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mark-sent transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	payment, err = lockPayment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransitionTo(models.PaymentStatusPendienteVerificacion) {
		err = ErrStateConflict
		return nil, err
	}

	now := time.Now().UTC()
	payment.Status = models.PaymentStatusPendienteVerificacion
	payment.UpdatedAt = now

	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, id, payment.Status, now); err != nil {
		return nil, fmt.Errorf("mark payment sent: %w", err)
	}

	for i := range notifs {
		if err = insertNotification(ctx, tx, &notifs[i]); err != nil {
			return nil, err
		}
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "payment",
		EntityID:   id,
		Kind:       models.EventPaymentSent,
		Detail:     "payment reported as sent, awaiting verification",
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mark-sent: %w", err)
	}
	return payment, nil
}

// Confirm transitions a non-terminal payment to CONFIRMADO, flips the
// linked enrollment's paid flag and inserts the student notification, all
// in one transaction so the enrollment/payment consistency invariant is
// never observable in a broken state.
func (r *PaymentRepository) Confirm(ctx context.Context, id string, notif *models.Notification, actorID *string) (payment *models.Payment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	payment, err = lockPayment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransitionTo(models.PaymentStatusConfirmado) {
		err = ErrStateConflict
		return nil, err
	}

	now := time.Now().UTC()
	payment.Status = models.PaymentStatusConfirmado
	payment.ConfirmedAt = &now
	payment.UpdatedAt = now

	const updateQuery = `UPDATE payments SET status = $2, confirmed_at = $3, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, payment.Status, now); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	if payment.EnrollmentID != nil {
		const paidQuery = `UPDATE enrollments SET paid = TRUE WHERE id = $1`
		if _, err = tx.ExecContext(ctx, paidQuery, *payment.EnrollmentID); err != nil {
			return nil, fmt.Errorf("mark enrollment paid: %w", err)
		}
	}

	if notif != nil {
		if err = insertNotification(ctx, tx, notif); err != nil {
			return nil, err
		}
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "payment",
		EntityID:   id,
		Kind:       models.EventPaymentConfirmed,
		Detail:     fmt.Sprintf("amount %.2f confirmed", payment.Amount),
		ActorID:    actorID,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm: %w", err)
	}
	return payment, nil
}

// Reject transitions any non-terminal payment to RECHAZADO. Direct
// rejection emits no notification; only the cancellation cascade does.
func (r *PaymentRepository) Reject(ctx context.Context, id string, actorID *string) (payment *models.Payment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reject transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	payment, err = lockPayment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !payment.Status.CanTransitionTo(models.PaymentStatusRechazado) {
		err = ErrStateConflict
		return nil, err
	}

	now := time.Now().UTC()
	payment.Status = models.PaymentStatusRechazado
	payment.UpdatedAt = now

	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, id, payment.Status, now); err != nil {
		return nil, fmt.Errorf("reject payment: %w", err)
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "payment",
		EntityID:   id,
		Kind:       models.EventPaymentRejected,
		Detail:     "rejected by administrator",
		ActorID:    actorID,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reject: %w", err)
	}
	return payment, nil
}

// RecordFiscal attaches fiscal identifiers to a CONFIRMADO payment exactly
// once. A payment that is not confirmed fails with ErrStateConflict; a
// payment that already carries fiscal data fails with ErrFiscalRecorded
// since issued fiscal documents can never be overwritten.
func (r *PaymentRepository) RecordFiscal(ctx context.Context, id string, fiscal models.FiscalRecord, actorID *string) (payment *models.Payment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin fiscal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	payment, err = lockPayment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusConfirmado {
		err = ErrStateConflict
		return nil, err
	}
	if payment.Invoiced() {
		err = ErrFiscalRecorded
		return nil, err
	}

	now := time.Now().UTC()
	payment.CAE = &fiscal.CAE
	payment.CAEDueDate = &fiscal.CAEDueDate
	payment.InvoiceNumber = &fiscal.InvoiceNumber
	payment.UpdatedAt = now

	const query = `UPDATE payments SET cae = $2, cae_due_date = $3, invoice_number = $4, updated_at = $5 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, id, fiscal.CAE, fiscal.CAEDueDate, fiscal.InvoiceNumber, now); err != nil {
		return nil, fmt.Errorf("record fiscal data: %w", err)
	}

	if err = insertEvent(ctx, tx, &models.DomainEvent{
		EntityType: "payment",
		EntityID:   id,
		Kind:       models.EventPaymentInvoiced,
		Detail:     "invoice " + fiscal.InvoiceNumber,
		ActorID:    actorID,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fiscal record: %w", err)
	}
	return payment, nil
}

// ListByEnrollment returns payments linked to an enrollment.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.enrollment_id = $1 ORDER BY p.created_at`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}
