package repository

import (
	"context"
	"time"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// SignalStore provides the Phase 1 view of recorded signal events.
type SignalStore interface {
	// FindUnprocessed returns signals with processed=false, oldest first.
	FindUnprocessed(ctx context.Context) ([]*domain.SignalEvent, error)
	// MarkProcessed flips processed to true and stamps updated_at.
	MarkProcessed(ctx context.Context, id string) error
}

// HookStore provides access to hook definitions.
type HookStore interface {
	// FindEnabledByType returns enabled hooks whose signal_type matches.
	FindEnabledByType(ctx context.Context, signalType string) ([]*domain.SignalHook, error)
}

// TemplateStore provides template lookup with the channel fallback chain.
type TemplateStore interface {
	GetByID(ctx context.Context, id string) (*domain.NotificationTemplate, error)

	// GetByIDAndChannel resolves a channel-specific template variant:
	// exact (id, channel) match → derived-id convention (the "-email-"
	// segment of the id swapped for "-<channel>-") → the base id.
	// Callers can detect the base-id fallback by comparing the returned
	// template's ID and Channel against what they asked for.
	GetByIDAndChannel(ctx context.Context, id string, channel domain.Channel) (*domain.NotificationTemplate, error)
}

// JobStore manages the notification job queue.
// The pgx implementation is in pg_job_store.go; tests use the hand-written
// in-memory mocks (mock_stores.go).
type JobStore interface {
	Create(ctx context.Context, job *domain.NotificationJob) error
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)

	// FindDue returns jobs eligible for dispatch at the given instant:
	// pending jobs whose scheduled_at is absent or past, plus retrying
	// jobs whose next_retry_at has passed.
	FindDue(ctx context.Context, now time.Time) ([]*domain.NotificationJob, error)

	// Claim conditionally transitions a pending/retrying job to
	// processing and returns the claimed row. Returns ErrJobClaimed when
	// another pass has already taken it.
	Claim(ctx context.Context, id string) (*domain.NotificationJob, error)

	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error

	// UpdateChannels persists per-channel delivery status after dispatch.
	UpdateChannels(ctx context.Context, id string, channels map[domain.Channel]domain.ChannelDelivery) error
}

// EventStore appends audit records. Callers must treat failures as
// non-fatal; the audit.Logger wrapper enforces that.
type EventStore interface {
	Record(ctx context.Context, ev *domain.AuditEvent) error
}
