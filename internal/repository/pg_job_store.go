package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

const jobColumns = `id, event_type, signal_event_id, template_id, status, priority,
	channels, recipient_ids, payload, direct_content,
	retry_count, max_retries, next_retry_at, scheduled_at, sent_at,
	error_message, created_at, updated_at`

type pgJobStore struct {
	pool *pgxpool.Pool
}

// NewPgJobStore returns a JobStore backed by PostgreSQL.
func NewPgJobStore(pool *pgxpool.Pool) JobStore {
	return &pgJobStore{pool: pool}
}

func (s *pgJobStore) Create(ctx context.Context, job *domain.NotificationJob) error {
	channels, err := json.Marshal(job.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var direct []byte
	if job.DirectContent != nil {
		if direct, err = json.Marshal(job.DirectContent); err != nil {
			return fmt.Errorf("encode direct content: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_jobs
			(id, event_type, signal_event_id, template_id, status, priority,
			 channels, recipient_ids, payload, direct_content,
			 retry_count, max_retries, scheduled_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		job.ID, job.EventType, job.SignalEventID, job.TemplateID, job.Status, job.Priority,
		channels, job.RecipientIDs, payload, direct,
		job.RetryCount, job.MaxRetries, job.ScheduledAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification job: %w", err)
	}
	return nil
}

func (s *pgJobStore) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM notification_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (s *pgJobStore) FindDue(ctx context.Context, now time.Time) ([]*domain.NotificationJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM notification_jobs
		WHERE (status = 'pending' AND (scheduled_at IS NULL OR scheduled_at <= $1))
		   OR (status = 'retrying' AND next_retry_at <= $1)
		ORDER BY priority = 'high' DESC, created_at ASC
		LIMIT 500`, now)
	if err != nil {
		return nil, fmt.Errorf("find due jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *pgJobStore) Claim(ctx context.Context, id string) (*domain.NotificationJob, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notification_jobs
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'retrying')
		RETURNING `+jobColumns, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobClaimed
	}
	return job, err
}

func (s *pgJobStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'sent', sent_at = $1, error_message = NULL,
		    next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2`, sentAt, id)
	return err
}

func (s *pgJobStore) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'retrying', retry_count = $1, next_retry_at = $2,
		    error_message = $3, updated_at = NOW()
		WHERE id = $4`, retryCount, nextRetry, errMsg, id)
	return err
}

func (s *pgJobStore) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = 'failed', retry_count = $1, error_message = $2,
		    next_retry_at = NULL, updated_at = NOW()
		WHERE id = $3`, retryCount, errMsg, id)
	return err
}

func (s *pgJobStore) UpdateChannels(ctx context.Context, id string, channels map[domain.Channel]domain.ChannelDelivery) error {
	encoded, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET channels = $1, updated_at = NOW()
		WHERE id = $2`, encoded, id)
	return err
}

// ---- helpers ----

// scanJob reads a single job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.NotificationJob, error) {
	var (
		job      domain.NotificationJob
		channels []byte
		payload  []byte
		direct   []byte
	)
	err := row.Scan(
		&job.ID, &job.EventType, &job.SignalEventID, &job.TemplateID,
		&job.Status, &job.Priority,
		&channels, &job.RecipientIDs, &payload, &direct,
		&job.RetryCount, &job.MaxRetries, &job.NextRetryAt, &job.ScheduledAt, &job.SentAt,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(channels) > 0 {
		if err := json.Unmarshal(channels, &job.Channels); err != nil {
			return nil, fmt.Errorf("decode channels: %w", err)
		}
	}
	job.Payload = decodePayload(payload)
	if len(direct) > 0 {
		var dc domain.DirectContent
		if err := json.Unmarshal(direct, &dc); err != nil {
			return nil, fmt.Errorf("decode direct content: %w", err)
		}
		job.DirectContent = &dc
	}
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.NotificationJob, error) {
	var result []*domain.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// decodePayload tolerates malformed stored payloads: matching the pipeline's
// fail-open posture, a payload that does not decode becomes an empty map
// rather than failing the scan.
func decodePayload(raw []byte) map[string]any {
	payload := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return payload
}
