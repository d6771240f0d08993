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

// WorkshopRepository handles persistence of workshops.
type WorkshopRepository struct {
	db *sqlx.DB
}

// NewWorkshopRepository constructs the repository.
func NewWorkshopRepository(db *sqlx.DB) *WorkshopRepository {
	return &WorkshopRepository{db: db}
}

const workshopColumns = `w.id, w.name, w.discipline, w.day_of_week, w.start_time, w.end_time, w.capacity, w.monthly_price, w.active, w.created_at, w.updated_at`

// List returns workshops with computed seat usage. Occupancy is derived
// from ACTIVE enrollments at read time.
func (r *WorkshopRepository) List(ctx context.Context, filter models.WorkshopFilter) ([]models.WorkshopAvailability, int, error) {
	base := `FROM workshops w`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("w.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Discipline != "" {
		conditions = append(conditions, fmt.Sprintf("w.discipline = $%d", len(args)+1))
		args = append(args, filter.Discipline)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("w.day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("w.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":        "w.name",
		"day_of_week": "w.day_of_week",
		"price":       "w.monthly_price",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "w.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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
        COALESCE((SELECT COUNT(*) FROM enrollments e WHERE e.workshop_id = w.id AND e.status = 'ACTIVE'), 0) AS enrolled
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, workshopColumns, base+clause, orderBy, order, size, offset)

	var workshops []models.WorkshopAvailability
	if err := r.db.SelectContext(ctx, &workshops, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list workshops: %w", err)
	}
	for i := range workshops {
		workshops[i].Available = workshops[i].Capacity - workshops[i].Enrolled
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count workshops: %w", err)
	}
	return workshops, total, nil
}

// FindByID returns a workshop by its ID.
func (r *WorkshopRepository) FindByID(ctx context.Context, id string) (*models.Workshop, error) {
	query := fmt.Sprintf(`SELECT %s FROM workshops w WHERE w.id = $1`, workshopColumns)
	var workshop models.Workshop
	if err := r.db.GetContext(ctx, &workshop, query, id); err != nil {
		return nil, err
	}
	return &workshop, nil
}

// FindAvailabilityByID returns a workshop with computed seat usage.
func (r *WorkshopRepository) FindAvailabilityByID(ctx context.Context, id string) (*models.WorkshopAvailability, error) {
	query := fmt.Sprintf(`SELECT %s,
        COALESCE((SELECT COUNT(*) FROM enrollments e WHERE e.workshop_id = w.id AND e.status = 'ACTIVE'), 0) AS enrolled
        FROM workshops w WHERE w.id = $1`, workshopColumns)
	var availability models.WorkshopAvailability
	if err := r.db.GetContext(ctx, &availability, query, id); err != nil {
		return nil, err
	}
	availability.Available = availability.Capacity - availability.Enrolled
	return &availability, nil
}

// Create persists a new workshop.
func (r *WorkshopRepository) Create(ctx context.Context, workshop *models.Workshop) error {
	if workshop.ID == "" {
		workshop.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if workshop.CreatedAt.IsZero() {
		workshop.CreatedAt = now
	}
	workshop.UpdatedAt = now
	const query = `INSERT INTO workshops (id, name, discipline, day_of_week, start_time, end_time, capacity, monthly_price, active, created_at, updated_at)
        VALUES (:id, :name, :discipline, :day_of_week, :start_time, :end_time, :capacity, :monthly_price, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, workshop); err != nil {
		return fmt.Errorf("create workshop: %w", err)
	}
	return nil
}

// Update persists changes to a workshop.
func (r *WorkshopRepository) Update(ctx context.Context, workshop *models.Workshop) error {
	workshop.UpdatedAt = time.Now().UTC()
	const query = `UPDATE workshops SET name = :name, discipline = :discipline, day_of_week = :day_of_week,
        start_time = :start_time, end_time = :end_time, capacity = :capacity, monthly_price = :monthly_price,
        active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, workshop); err != nil {
		return fmt.Errorf("update workshop: %w", err)
	}
	return nil
}
