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
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
)

type workshopRepository interface {
	List(ctx context.Context, filter models.WorkshopFilter) ([]models.WorkshopAvailability, int, error)
	FindByID(ctx context.Context, id string) (*models.Workshop, error)
	FindAvailabilityByID(ctx context.Context, id string) (*models.WorkshopAvailability, error)
	Create(ctx context.Context, workshop *models.Workshop) error
	Update(ctx context.Context, workshop *models.Workshop) error
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateWorkshopRequest describes workshop creation payload.
type CreateWorkshopRequest struct {
	Name         string  `json:"name" validate:"required"`
	Discipline   string  `json:"discipline"`
	DayOfWeek    int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
	Capacity     int     `json:"capacity" validate:"required,gt=0"`
	MonthlyPrice float64 `json:"monthly_price" validate:"required,gt=0"`
}

// UpdateWorkshopRequest describes workshop update payload.
type UpdateWorkshopRequest struct {
	Name         string  `json:"name" validate:"required"`
	Discipline   string  `json:"discipline"`
	DayOfWeek    int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
	Capacity     int     `json:"capacity" validate:"required,gt=0"`
	MonthlyPrice float64 `json:"monthly_price" validate:"required,gt=0"`
	Active       bool    `json:"active"`
}

// WorkshopService manages the workshop catalog and seat availability.
type WorkshopService struct {
	repo      workshopRepository
	cache     availabilityCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkshopService constructs WorkshopService. A nil cache disables
// availability caching.
func NewWorkshopService(repo workshopRepository, cache availabilityCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *WorkshopService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &WorkshopService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns workshops with live seat counts.
func (s *WorkshopService) List(ctx context.Context, filter models.WorkshopFilter) ([]models.WorkshopAvailability, *models.Pagination, error) {
	workshops, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workshops")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return workshops, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single workshop.
func (s *WorkshopService) Get(ctx context.Context, id string) (*models.Workshop, error) {
	workshop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workshop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workshop")
	}
	return workshop, nil
}

// Availability returns the workshop's seat availability, served from cache
// when fresh. Enrollment writes invalidate the entry, so a stale read
// window is bounded by the TTL.
func (s *WorkshopService) Availability(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
	key := availabilityKey(id)
	if s.cache != nil {
		var cached models.WorkshopAvailability
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.String("workshop_id", id), zap.Error(err))
		}
	}

	availability, err := s.repo.FindAvailabilityByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workshop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, availability, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("workshop_id", id), zap.Error(err))
		}
	}
	return availability, nil
}

// InvalidateAvailability drops the cached seat count for a workshop.
func (s *WorkshopService) InvalidateAvailability(ctx context.Context, workshopID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, availabilityKey(workshopID)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("workshop_id", workshopID), zap.Error(err))
	}
}

// Create registers a new workshop.
func (s *WorkshopService) Create(ctx context.Context, req CreateWorkshopRequest) (*models.Workshop, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workshop payload")
	}
	workshop := &models.Workshop{
		Name:         req.Name,
		Discipline:   req.Discipline,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		MonthlyPrice: req.MonthlyPrice,
		Active:       true,
	}
	if err := s.repo.Create(ctx, workshop); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workshop")
	}
	return workshop, nil
}

// Update modifies an existing workshop.
func (s *WorkshopService) Update(ctx context.Context, id string, req UpdateWorkshopRequest) (*models.Workshop, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workshop payload")
	}
	workshop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workshop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workshop")
	}

	workshop.Name = req.Name
	workshop.Discipline = req.Discipline
	workshop.DayOfWeek = req.DayOfWeek
	workshop.StartTime = req.StartTime
	workshop.EndTime = req.EndTime
	workshop.Capacity = req.Capacity
	workshop.MonthlyPrice = req.MonthlyPrice
	workshop.Active = req.Active

	if err := s.repo.Update(ctx, workshop); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workshop")
	}
	s.InvalidateAvailability(ctx, id)
	return workshop, nil
}

func availabilityKey(workshopID string) string {
	return fmt.Sprintf("workshops:availability:%s", workshopID)
}
