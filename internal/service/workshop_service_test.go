package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-api/internal/models"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
)

type mockWorkshopRepo struct {
	listFn             func(ctx context.Context, filter models.WorkshopFilter) ([]models.WorkshopAvailability, int, error)
	findByIDFn         func(ctx context.Context, id string) (*models.Workshop, error)
	findAvailabilityFn func(ctx context.Context, id string) (*models.WorkshopAvailability, error)
	createFn           func(ctx context.Context, workshop *models.Workshop) error
	updateFn           func(ctx context.Context, workshop *models.Workshop) error
}

func (m *mockWorkshopRepo) List(ctx context.Context, filter models.WorkshopFilter) ([]models.WorkshopAvailability, int, error) {
	return m.listFn(ctx, filter)
}

func (m *mockWorkshopRepo) FindByID(ctx context.Context, id string) (*models.Workshop, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockWorkshopRepo) FindAvailabilityByID(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
	return m.findAvailabilityFn(ctx, id)
}

func (m *mockWorkshopRepo) Create(ctx context.Context, workshop *models.Workshop) error {
	return m.createFn(ctx, workshop)
}

func (m *mockWorkshopRepo) Update(ctx context.Context, workshop *models.Workshop) error {
	return m.updateFn(ctx, workshop)
}

// memoryCache is a map-backed stand-in for the Redis cache.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(c.entries, pattern)
	return nil
}

func TestWorkshopServiceAvailability(t *testing.T) {
	t.Run("caches the availability after the first read", func(t *testing.T) {
		reads := 0
		repo := &mockWorkshopRepo{
			findAvailabilityFn: func(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
				reads++
				return &models.WorkshopAvailability{
					Workshop:  models.Workshop{ID: id, Capacity: 12},
					Enrolled:  5,
					Available: 7,
				}, nil
			},
		}
		cache := newMemoryCache()
		svc := NewWorkshopService(repo, cache, time.Minute, nil, nil)

		first, err := svc.Availability(context.Background(), "wks-1")
		require.NoError(t, err)
		second, err := svc.Availability(context.Background(), "wks-1")
		require.NoError(t, err)

		assert.Equal(t, 1, reads)
		assert.Equal(t, first.Available, second.Available)
	})

	t.Run("invalidation forces a fresh read", func(t *testing.T) {
		reads := 0
		repo := &mockWorkshopRepo{
			findAvailabilityFn: func(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
				reads++
				return &models.WorkshopAvailability{
					Workshop:  models.Workshop{ID: id, Capacity: 12},
					Enrolled:  reads,
					Available: 12 - reads,
				}, nil
			},
		}
		cache := newMemoryCache()
		svc := NewWorkshopService(repo, cache, time.Minute, nil, nil)

		_, err := svc.Availability(context.Background(), "wks-1")
		require.NoError(t, err)
		svc.InvalidateAvailability(context.Background(), "wks-1")
		after, err := svc.Availability(context.Background(), "wks-1")
		require.NoError(t, err)

		assert.Equal(t, 2, reads)
		assert.Equal(t, 2, after.Enrolled)
	})

	t.Run("works without a cache", func(t *testing.T) {
		repo := &mockWorkshopRepo{
			findAvailabilityFn: func(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
				return &models.WorkshopAvailability{Workshop: models.Workshop{ID: id}}, nil
			},
		}
		svc := NewWorkshopService(repo, nil, 0, nil, nil)

		availability, err := svc.Availability(context.Background(), "wks-1")
		require.NoError(t, err)
		assert.Equal(t, "wks-1", availability.ID)
	})

	t.Run("unknown workshop reports not found", func(t *testing.T) {
		repo := &mockWorkshopRepo{
			findAvailabilityFn: func(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
				return nil, sql.ErrNoRows
			},
		}
		svc := NewWorkshopService(repo, nil, 0, nil, nil)

		_, err := svc.Availability(context.Background(), "missing")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestWorkshopServiceCreate(t *testing.T) {
	repo := &mockWorkshopRepo{
		createFn: func(ctx context.Context, workshop *models.Workshop) error {
			workshop.ID = "wks-new"
			return nil
		},
	}
	svc := NewWorkshopService(repo, nil, 0, nil, nil)

	t.Run("creates an active workshop", func(t *testing.T) {
		workshop, err := svc.Create(context.Background(), CreateWorkshopRequest{
			Name:         "Acuarela",
			DayOfWeek:    2,
			StartTime:    "18:00",
			EndTime:      "20:00",
			Capacity:     10,
			MonthlyPrice: 12000,
		})
		require.NoError(t, err)
		assert.Equal(t, "wks-new", workshop.ID)
		assert.True(t, workshop.Active)
	})

	t.Run("rejects zero capacity", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateWorkshopRequest{
			Name:      "Acuarela",
			StartTime: "18:00",
			EndTime:   "20:00",
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})
}
