package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/atelier-ops/atelier-api/internal/models"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.DomainEvent, int, error)
}

// EventService exposes the append-only audit trail to administrators.
type EventService struct {
	repo   eventRepository
	logger *zap.Logger
}

// NewEventService constructs EventService.
func NewEventService(repo eventRepository, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, logger: logger}
}

// List returns recorded lifecycle events, newest first.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.DomainEvent, *models.Pagination, error) {
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
