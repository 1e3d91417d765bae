// Package audit appends lifecycle events for notification jobs.
// Logging is strictly fire-and-forget: a failed audit write is logged at
// warn level and swallowed, never propagated to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/repository"
)

type Logger struct {
	store  repository.EventStore
	logger *zap.Logger
}

func NewLogger(store repository.EventStore, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Log records one audit event. It never returns an error.
func (l *Logger) Log(ctx context.Context, notificationID, eventType string, metadata map[string]any) {
	ev := &domain.AuditEvent{
		ID:             uuid.New().String(),
		NotificationID: notificationID,
		EventType:      eventType,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if err := l.store.Record(ctx, ev); err != nil {
		l.logger.Warn("audit event write failed",
			zap.String("notification_id", notificationID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
