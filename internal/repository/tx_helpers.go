package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/atelier-ops/atelier-api/internal/models"
)

// insertNotification writes a notification inside an open transaction so
// transition side effects commit atomically with the state change.
func insertNotification(ctx context.Context, tx *sqlx.Tx, notif *models.Notification) error {
	if notif.ID == "" {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, title, message, kind, read, created_at)
        VALUES (:id, :user_id, :title, :message, :kind, :read, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, notif); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// insertEvent appends a domain event inside an open transaction.
func insertEvent(ctx context.Context, tx *sqlx.Tx, event *models.DomainEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO domain_events (id, entity_type, entity_id, kind, detail, actor_id, created_at)
        VALUES (:id, :entity_type, :entity_id, :kind, :detail, :actor_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}
	return nil
}

func pqStringArray(values []string) interface{} {
	return pq.Array(values)
}
