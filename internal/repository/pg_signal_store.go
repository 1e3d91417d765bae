package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

type pgSignalStore struct {
	pool *pgxpool.Pool
}

// NewPgSignalStore returns a SignalStore backed by PostgreSQL.
func NewPgSignalStore(pool *pgxpool.Pool) SignalStore {
	return &pgSignalStore{pool: pool}
}

func (s *pgSignalStore) FindUnprocessed(ctx context.Context) ([]*domain.SignalEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, signal_type, payload, processed, created_at, updated_at
		FROM signal_events
		WHERE processed = FALSE
		ORDER BY created_at ASC
		LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("find unprocessed signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.SignalEvent
	for rows.Next() {
		var (
			ev      domain.SignalEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.SignalType, &payload, &ev.Processed,
			&ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		ev.Payload = decodePayload(payload)
		signals = append(signals, &ev)
	}
	return signals, rows.Err()
}

func (s *pgSignalStore) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE signal_events
		SET processed = TRUE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark signal processed: %w", err)
	}
	return nil
}

type pgHookStore struct {
	pool *pgxpool.Pool
}

// NewPgHookStore returns a HookStore backed by PostgreSQL.
func NewPgHookStore(pool *pgxpool.Pool) HookStore {
	return &pgHookStore{pool: pool}
}

func (s *pgHookStore) FindEnabledByType(ctx context.Context, signalType string) ([]*domain.SignalHook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, signal_type, enabled, conditions, template_id, channels,
		       recipient_emails, recipient_roles, recipient_dynamic,
		       priority, created_at, updated_at
		FROM signal_hooks
		WHERE signal_type = $1 AND enabled = TRUE
		ORDER BY id ASC`, signalType)
	if err != nil {
		return nil, fmt.Errorf("find enabled hooks: %w", err)
	}
	defer rows.Close()

	var hooks []*domain.SignalHook
	for rows.Next() {
		var (
			h          domain.SignalHook
			conditions []byte
			channels   []string
		)
		if err := rows.Scan(&h.ID, &h.SignalType, &h.Enabled, &conditions,
			&h.TemplateID, &channels, &h.RecipientEmails, &h.RecipientRoles,
			&h.RecipientDynamic, &h.Priority, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Conditions = conditions
		h.Channels = toChannels(channels)
		hooks = append(hooks, &h)
	}
	return hooks, rows.Err()
}

type pgTemplateStore struct {
	pool *pgxpool.Pool
}

// NewPgTemplateStore returns a TemplateStore backed by PostgreSQL.
func NewPgTemplateStore(pool *pgxpool.Pool) TemplateStore {
	return &pgTemplateStore{pool: pool}
}

func (s *pgTemplateStore) GetByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, channel, subject, html_content, text_content, created_at
		FROM notification_templates WHERE id = $1`, id)

	var t domain.NotificationTemplate
	err := row.Scan(&t.ID, &t.Channel, &t.Subject, &t.HTMLContent, &t.TextContent, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (s *pgTemplateStore) GetByIDAndChannel(ctx context.Context, id string, channel domain.Channel) (*domain.NotificationTemplate, error) {
	// 1. Exact match on the explicit channel tag.
	row := s.pool.QueryRow(ctx, `
		SELECT id, channel, subject, html_content, text_content, created_at
		FROM notification_templates WHERE id = $1 AND channel = $2`, id, string(channel))

	var t domain.NotificationTemplate
	err := row.Scan(&t.ID, &t.Channel, &t.Subject, &t.HTMLContent, &t.TextContent, &t.CreatedAt)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get template by channel: %w", err)
	}

	// 2. Derived-id convention: swap the "-email-" segment for the channel.
	if derived := DeriveChannelTemplateID(id, channel); derived != id {
		if t, err := s.GetByID(ctx, derived); err == nil {
			return t, nil
		} else if !errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
	}

	// 3. Base id.
	return s.GetByID(ctx, id)
}

// DeriveChannelTemplateID applies the naming convention used by template
// authors: "quote-email-accepted" has the SMS variant "quote-sms-accepted".
// Returns the input unchanged when the convention does not apply.
func DeriveChannelTemplateID(id string, channel domain.Channel) string {
	return strings.Replace(id, "-email-", "-"+string(channel)+"-", 1)
}

func toChannels(in []string) []domain.Channel {
	out := make([]domain.Channel, len(in))
	for i, s := range in {
		out[i] = domain.Channel(s)
	}
	return out
}
