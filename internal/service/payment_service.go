package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/repository"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
	"github.com/atelier-ops/atelier-api/pkg/export"
	"github.com/atelier-ops/atelier-api/pkg/fiscal"
	"github.com/atelier-ops/atelier-api/pkg/mailer"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	Create(ctx context.Context, payment *models.Payment) error
	MarkSent(ctx context.Context, id string, notifs []models.Notification) (*models.Payment, error)
	Confirm(ctx context.Context, id string, notif *models.Notification, actorID *string) (*models.Payment, error)
	Reject(ctx context.Context, id string, actorID *string) (*models.Payment, error)
	RecordFiscal(ctx context.Context, id string, fiscal models.FiscalRecord, actorID *string) (*models.Payment, error)
}

type adminLister interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type paymentMailer interface {
	Dispatch(msg mailer.Message)
}

// CreatePaymentRequest registers an expected payment for a period.
type CreatePaymentRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	EnrollmentID *string `json:"enrollment_id"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	PeriodMonth  int     `json:"period_month" validate:"required,min=1,max=12"`
	PeriodYear   int     `json:"period_year" validate:"required,min=2020"`
	Method       string  `json:"method" validate:"required"`
}

// RecordFiscalRequest carries externally issued invoice identifiers.
type RecordFiscalRequest struct {
	CAE           string    `json:"cae" validate:"required"`
	CAEDueDate    time.Time `json:"cae_due_date" validate:"required"`
	InvoiceNumber string    `json:"invoice_number" validate:"required"`
}

// IssueInvoiceRequest parameterizes invoice authorization.
type IssueInvoiceRequest struct {
	DocumentType  string `json:"document_type"`
	CustomerTaxID string `json:"customer_tax_id"`
}

// PaymentService drives payments through their verification lifecycle.
type PaymentService struct {
	repo      paymentRepository
	users     adminLister
	authority fiscal.Authority
	mail      paymentMailer
	receipts  *export.ReceiptRenderer
	exporter  *export.CSVExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, users adminLister, authority fiscal.Authority, mail paymentMailer, receipts *export.ReceiptRenderer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if receipts == nil {
		receipts = export.NewReceiptRenderer("")
	}
	return &PaymentService{
		repo:      repo,
		users:     users,
		authority: authority,
		mail:      mail,
		receipts:  receipts,
		exporter:  export.NewCSVExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return payments, pagination, nil
}

// Get returns a single payment with student and workshop context.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return detail, nil
}

// Create registers a new payment in PENDIENTE.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment := &models.Payment{
		StudentID:    req.StudentID,
		EnrollmentID: req.EnrollmentID,
		Amount:       req.Amount,
		PeriodMonth:  req.PeriodMonth,
		PeriodYear:   req.PeriodYear,
		Method:       req.Method,
		Status:       models.PaymentStatusPendiente,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return s.Get(ctx, payment.ID)
}

// NotifySent marks a payment as sent by the student and fans a
// verification notification out to every active admin, all within the
// transition's transaction.
func (s *PaymentService) NotifySent(ctx context.Context, id string) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve admins")
	}
	notifs := make([]models.Notification, 0, len(admins))
	for _, admin := range admins {
		notifs = append(notifs, models.Notification{
			UserID:  admin.ID,
			Title:   "Pago pendiente de verificación",
			Message: fmt.Sprintf("%s informó el envío de un pago de $%.2f (%02d/%d).", detail.StudentName, detail.Amount, detail.PeriodMonth, detail.PeriodYear),
			Kind:    models.NotificationKindPaymentSubmitted,
		})
	}

	payment, err := s.repo.MarkSent(ctx, id, notifs)
	if err != nil {
		return nil, s.mapTransitionError(err, models.PaymentStatusPendienteVerificacion)
	}
	if s.metrics != nil {
		s.metrics.ObservePaymentTransition(payment.Status)
	}
	return s.Get(ctx, id)
}

// Confirm settles a payment as received. The status flip, the paid flag on
// the linked enrollment and the student notification commit atomically;
// the confirmation email goes out after the commit and never blocks it.
func (s *PaymentService) Confirm(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	notif := s.confirmationNotification(ctx, detail)

	payment, err := s.repo.Confirm(ctx, id, notif, actorID)
	if err != nil {
		return nil, s.mapTransitionError(err, models.PaymentStatusConfirmado)
	}
	if s.metrics != nil {
		s.metrics.ObservePaymentTransition(payment.Status)
	}

	if s.mail != nil && detail.StudentEmail != "" {
		s.mail.Dispatch(mailer.Message{
			ToName:  detail.StudentName,
			ToEmail: detail.StudentEmail,
			Subject: "Pago confirmado",
			Text:    fmt.Sprintf("Hola %s, tu pago de $%.2f del período %02d/%d fue confirmado.", detail.StudentName, detail.Amount, detail.PeriodMonth, detail.PeriodYear),
		})
	}

	return s.Get(ctx, id)
}

// Reject marks a payment as rejected. No notification is produced; staff
// communicate rejections out of band.
func (s *PaymentService) Reject(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error) {
	payment, err := s.repo.Reject(ctx, id, actorID)
	if err != nil {
		return nil, s.mapTransitionError(err, models.PaymentStatusRechazado)
	}
	if s.metrics != nil {
		s.metrics.ObservePaymentTransition(payment.Status)
	}
	return s.Get(ctx, id)
}

// RecordFiscalData attaches externally issued invoice identifiers to a
// confirmed payment. The operation is write-once.
func (s *PaymentService) RecordFiscalData(ctx context.Context, id string, req RecordFiscalRequest, actorID *string) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fiscal payload")
	}

	record := models.FiscalRecord{CAE: req.CAE, CAEDueDate: req.CAEDueDate, InvoiceNumber: req.InvoiceNumber}
	_, err := s.repo.RecordFiscal(ctx, id, record, actorID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		case errors.Is(err, repository.ErrStateConflict):
			return nil, appErrors.Clone(appErrors.ErrNotConfirmed, "")
		case errors.Is(err, repository.ErrFiscalRecorded):
			return nil, appErrors.Clone(appErrors.ErrAlreadyInvoiced, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record fiscal data")
		}
	}
	return s.Get(ctx, id)
}

// IssueInvoice requests an invoice authorization from the fiscal authority
// and records the result. The authority is called before any local write,
// so a failed call leaves the payment untouched.
func (s *PaymentService) IssueInvoice(ctx context.Context, id string, req IssueInvoiceRequest, actorID *string) (*models.PaymentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if detail.Status != models.PaymentStatusConfirmado {
		return nil, appErrors.Clone(appErrors.ErrNotConfirmed, "")
	}
	if detail.Invoiced() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyInvoiced, "")
	}

	concept := "Cuota taller"
	if detail.WorkshopName != nil {
		concept = fmt.Sprintf("Cuota taller %s", *detail.WorkshopName)
	}
	auth, err := s.authority.IssueInvoice(ctx, fiscal.InvoiceRequest{
		DocumentType:  req.DocumentType,
		CustomerTaxID: req.CustomerTaxID,
		Amount:        detail.Amount,
		Concept:       concept,
		PeriodMonth:   detail.PeriodMonth,
		PeriodYear:    detail.PeriodYear,
	})
	if err != nil {
		s.logger.Error("fiscal authority call failed", zap.String("payment_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyFailure.Code, appErrors.ErrDependencyFailure.Status, "fiscal authority unavailable")
	}

	record := models.FiscalRecord{CAE: auth.CAE, CAEDueDate: auth.CAEDueDate, InvoiceNumber: auth.InvoiceNumber}
	if _, err := s.repo.RecordFiscal(ctx, id, record, actorID); err != nil {
		switch {
		case errors.Is(err, repository.ErrStateConflict):
			return nil, appErrors.Clone(appErrors.ErrNotConfirmed, "")
		case errors.Is(err, repository.ErrFiscalRecorded):
			return nil, appErrors.Clone(appErrors.ErrAlreadyInvoiced, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record invoice")
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveInvoiceIssued()
	}
	return s.Get(ctx, id)
}

// Receipt renders a PDF receipt for a confirmed payment.
func (s *PaymentService) Receipt(ctx context.Context, id string) ([]byte, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if detail.Status != models.PaymentStatusConfirmado {
		return nil, appErrors.Clone(appErrors.ErrNotConfirmed, "receipt is only available for confirmed payments")
	}

	receipt := export.Receipt{
		PaymentID:   detail.ID,
		StudentName: detail.StudentName,
		Amount:      detail.Amount,
		PeriodMonth: time.Month(detail.PeriodMonth),
		PeriodYear:  detail.PeriodYear,
	}
	if detail.WorkshopName != nil {
		receipt.WorkshopName = *detail.WorkshopName
	}
	if detail.ConfirmedAt != nil {
		receipt.ConfirmedAt = *detail.ConfirmedAt
	}
	if detail.InvoiceNumber != nil {
		receipt.InvoiceNumber = *detail.InvoiceNumber
	}
	if detail.CAE != nil {
		receipt.CAE = *detail.CAE
	}
	receipt.CAEDueDate = detail.CAEDueDate

	data, err := s.receipts.Render(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

// ExportCSV renders the filtered payment list as CSV.
func (s *PaymentService) ExportCSV(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 10000
	payments, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Student", "Workshop", "Period", "Amount", "Method", "Status", "Invoice", "CAE", "Created"},
	}
	for _, p := range payments {
		workshop := ""
		if p.WorkshopName != nil {
			workshop = *p.WorkshopName
		}
		invoice, cae := "", ""
		if p.InvoiceNumber != nil {
			invoice = *p.InvoiceNumber
		}
		if p.CAE != nil {
			cae = *p.CAE
		}
		dataset.Rows = append(dataset.Rows, []string{
			p.ID,
			p.StudentName,
			workshop,
			fmt.Sprintf("%02d/%d", p.PeriodMonth, p.PeriodYear),
			fmt.Sprintf("%.2f", p.Amount),
			p.Method,
			string(p.Status),
			invoice,
			cae,
			p.CreatedAt.Format("2006-01-02"),
		})
	}

	data, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}

func (s *PaymentService) confirmationNotification(ctx context.Context, detail *models.PaymentDetail) *models.Notification {
	account, err := s.users.FindByStudentID(ctx, detail.StudentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to resolve student account for notification", zap.Error(err))
		}
		return nil
	}
	return &models.Notification{
		UserID:  account.ID,
		Title:   "Pago confirmado",
		Message: fmt.Sprintf("Tu pago de $%.2f del período %02d/%d fue confirmado.", detail.Amount, detail.PeriodMonth, detail.PeriodYear),
		Kind:    models.NotificationKindPaymentConfirmed,
	}
}

func (s *PaymentService) mapTransitionError(err error, to models.PaymentStatus) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	case errors.Is(err, repository.ErrStateConflict):
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("payment cannot transition to %s", to))
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
}
