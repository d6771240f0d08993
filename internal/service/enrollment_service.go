package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/repository"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Cancel(ctx context.Context, id, reason string, notif *models.Notification, actorID *string) (*repository.CancelResult, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type workshopReader interface {
	FindByID(ctx context.Context, id string) (*models.Workshop, error)
}

type userAccountReader interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.User, error)
}

type availabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context, workshopID string)
}

// EnrollStudentRequest describes enrollment creation payload.
type EnrollStudentRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	WorkshopID string `json:"workshop_id" validate:"required"`
	Phase      string `json:"phase"`
}

// CancelEnrollmentRequest carries the mandatory cancellation reason.
type CancelEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// EnrollmentService orchestrates enrollment lifecycle workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	workshops workshopReader
	users     userAccountReader
	cache     availabilityInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, workshops workshopReader, users userAccountReader, cache availabilityInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, workshops: workshops, users: users, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Get returns a single enrollment with context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll registers a student into a workshop. The seat and duplicate
// checks run inside the insert transaction, so concurrent inscriptions
// cannot oversubscribe a full workshop or enroll a student twice.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	workshop, err := s.workshops.FindByID(ctx, req.WorkshopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workshop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workshop")
	}
	if !workshop.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "workshop inactive")
	}
	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		WorkshopID: req.WorkshopID,
		Phase:      req.Phase,
		Status:     models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrCapacityFull) {
			return nil, appErrors.Clone(appErrors.ErrWorkshopFull, "")
		}
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in workshop")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.cache != nil {
		s.cache.InvalidateAvailability(ctx, req.WorkshopID)
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Cancel transitions an ACTIVE enrollment to CANCELLED. The status flip,
// notes audit line, payment cascade and student notification commit as a
// single unit; a second cancellation is rejected rather than absorbed so
// duplicate audit entries and notifications cannot occur.
func (s *EnrollmentService) Cancel(ctx context.Context, id string, req CancelEnrollmentRequest, actorID *string) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cancellation reason is required")
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	notif := s.cancellationNotification(ctx, detail, req.Reason)

	result, err := s.repo.Cancel(ctx, id, req.Reason, notif, actorID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrStateConflict):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment already cancelled")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveEnrollmentCancellation()
		for range result.RejectedPayments {
			s.metrics.ObservePaymentTransition(models.PaymentStatusRechazado)
		}
	}
	if s.cache != nil {
		s.cache.InvalidateAvailability(ctx, detail.WorkshopID)
	}
	s.logger.Info("enrollment cancelled",
		zap.String("enrollment_id", id),
		zap.Int("rejected_payments", len(result.RejectedPayments)))

	updated, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return updated, nil
}

// cancellationNotification builds the student-facing message. A student
// without a linked user account simply gets no in-app notification.
func (s *EnrollmentService) cancellationNotification(ctx context.Context, detail *models.EnrollmentDetail, reason string) *models.Notification {
	account, err := s.users.FindByStudentID(ctx, detail.StudentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to resolve student account for notification", zap.Error(err))
		}
		return nil
	}
	return &models.Notification{
		UserID:  account.ID,
		Title:   "Inscripción cancelada",
		Message: fmt.Sprintf("Tu inscripción al taller %s fue cancelada. Motivo: %s", detail.WorkshopName, reason),
		Kind:    models.NotificationKindEnrollmentCancelled,
	}
}
