package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

type pgEventStore struct {
	pool *pgxpool.Pool
}

// NewPgEventStore returns an EventStore backed by PostgreSQL.
func NewPgEventStore(pool *pgxpool.Pool) EventStore {
	return &pgEventStore{pool: pool}
}

func (s *pgEventStore) Record(ctx context.Context, ev *domain.AuditEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_events (id, notification_id, event_type, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		ev.ID, ev.NotificationID, ev.EventType, metadata, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
