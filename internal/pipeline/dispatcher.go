package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/metrics"
	"github.com/notifyhub/signal-pipeline/internal/provider"
	"github.com/notifyhub/signal-pipeline/internal/ratelimiter"
	"github.com/notifyhub/signal-pipeline/internal/recipient"
	"github.com/notifyhub/signal-pipeline/internal/render"
	"github.com/notifyhub/signal-pipeline/internal/repository"
	"github.com/notifyhub/signal-pipeline/internal/runtimecfg"
)

// jobContent is the fully resolved content for one dispatch attempt.
type jobContent struct {
	Subject     string
	HTMLContent string
	TextContent string
	SMSContent  string
}

// Dispatcher is Phase 2: it scans due jobs, claims each one, resolves
// content and recipients, dispatches per enabled channel through the rate
// limiter, and advances the job's status with bounded retry.
//
// Jobs are processed independently: a failure on one job never aborts the
// rest of the pass.
type Dispatcher struct {
	jobs      repository.JobStore
	templates repository.TemplateStore

	renderer   *render.Renderer
	providers  provider.Providers
	limiter    *ratelimiter.ChannelLimiters
	runtime    *runtimecfg.Client
	audit      *audit.Logger
	metrics    *metrics.Metrics
	backoff    []time.Duration
	maxRetries int
	logger     *zap.Logger
}

func NewDispatcher(
	jobs repository.JobStore,
	templates repository.TemplateStore,
	providers provider.Providers,
	limiter *ratelimiter.ChannelLimiters,
	runtime *runtimecfg.Client,
	auditLog *audit.Logger,
	m *metrics.Metrics,
	backoff []time.Duration,
	maxRetries int,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		jobs:       jobs,
		templates:  templates,
		renderer:   render.NewRenderer(),
		providers:  providers,
		limiter:    limiter,
		runtime:    runtime,
		audit:      auditLog,
		metrics:    m,
		backoff:    backoff,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run executes one Phase 2 pass over all currently due jobs.
func (d *Dispatcher) Run(ctx context.Context) error {
	due, err := d.jobs.FindDue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scan due jobs: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	rc := d.runtime.Get(ctx)
	for _, job := range due {
		d.dispatchJob(ctx, job.ID, rc)
	}
	return nil
}

func (d *Dispatcher) dispatchJob(ctx context.Context, id string, rc runtimecfg.RuntimeConfig) {
	log := d.logger.With(zap.String("job_id", id))

	// Claim before touching anything: an overlapping pass that got here
	// first owns the job.
	job, err := d.jobs.Claim(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobClaimed) {
			log.Debug("job already claimed by another pass")
		} else {
			log.Error("job claim failed", zap.Error(err))
		}
		return
	}
	d.audit.Log(ctx, job.ID, domain.AuditProcessingStarted, map[string]any{
		"retry_count": job.RetryCount,
	})

	content, err := d.resolveContent(ctx, job)
	if err != nil {
		log.Error("content resolution failed", zap.Error(err))
		d.settle(ctx, job, err)
		return
	}

	originals := d.resolveRecipients(job, rc)
	recipients := originals
	if rc.DebugMode {
		recipients = []domain.Recipient{rc.DebugIdentity}
		content.Subject = debugSubject(content.Subject)
		content.HTMLContent = debugEnvelopeHTML(job, originals) + content.HTMLContent
		content.TextContent = debugEnvelopeText(job, originals) + content.TextContent
	}

	sendErr := d.dispatchChannels(ctx, job, content, recipients, rc, log)
	d.settle(ctx, job, sendErr)
}

// resolveContent picks the content source: direct content verbatim when
// present (never a template lookup), otherwise the template path.
func (d *Dispatcher) resolveContent(ctx context.Context, job *domain.NotificationJob) (jobContent, error) {
	if dc := job.DirectContent; dc != nil {
		return jobContent{
			Subject:     dc.Subject,
			HTMLContent: dc.HTMLContent,
			TextContent: dc.TextContent,
			SMSContent:  dc.SMSContent,
		}, nil
	}

	if job.TemplateID == nil || *job.TemplateID == "" {
		return jobContent{}, fmt.Errorf("job %s has neither direct content nor a template: %w", job.ID, domain.ErrTemplateNotFound)
	}
	tmpl, err := d.templates.GetByID(ctx, *job.TemplateID)
	if err != nil {
		return jobContent{}, fmt.Errorf("load template %s: %w", *job.TemplateID, err)
	}
	c, err := d.renderer.Render(tmpl, job.Payload)
	if err != nil {
		return jobContent{}, fmt.Errorf("render: %w", err)
	}
	return jobContent{
		Subject:     c.Subject,
		HTMLContent: c.HTMLContent,
		TextContent: c.TextContent,
		SMSContent:  resolveSMSContent(ctx, d.templates, d.renderer, tmpl.ID, job.Payload, c.TextContent),
	}, nil
}

// resolveRecipients maps the job's stored recipient ids back to concrete
// identities. An id containing "@" is an email address, anything else a
// phone number. An id that resolves to nothing falls back to the primary
// account contact rather than being dropped.
func (d *Dispatcher) resolveRecipients(job *domain.NotificationJob, rc runtimecfg.RuntimeConfig) []domain.Recipient {
	var out []domain.Recipient
	for _, id := range job.RecipientIDs {
		id = strings.TrimSpace(id)
		switch {
		case strings.Contains(id, "@"):
			out = append(out, domain.Recipient{Email: id})
		case id != "":
			out = append(out, domain.Recipient{Phone: id})
		default:
			out = append(out, rc.PrimaryContact)
		}
	}
	if len(out) == 0 && (rc.PrimaryContact.Email != "" || rc.PrimaryContact.Phone != "") {
		out = append(out, rc.PrimaryContact)
	}
	return out
}

// dispatchChannels sends to every enabled channel and recipient, records
// per-channel status, and returns the first delivery error (nil on full
// success). A channel without a configured provider is skipped with a
// warning, not failed.
func (d *Dispatcher) dispatchChannels(ctx context.Context, job *domain.NotificationJob, content jobContent, recipients []domain.Recipient, rc runtimecfg.RuntimeConfig, log *zap.Logger) error {
	var firstErr error
	channels := job.Channels

	for ch, delivery := range channels {
		if !delivery.Enabled {
			continue
		}
		if !d.channelAvailable(ch, rc, log) {
			delivery.Status = "skipped"
			channels[ch] = delivery
			continue
		}

		start := time.Now()
		err := d.sendChannel(ctx, job, ch, content, recipients)
		if err != nil {
			delivery.Status = "failed"
			d.metrics.DeliveriesFailed.WithLabelValues(string(ch)).Inc()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			delivery.Status = "sent"
			d.metrics.ObserveDispatch(string(ch), time.Since(start))
		}
		channels[ch] = delivery
	}

	if err := d.jobs.UpdateChannels(ctx, job.ID, channels); err != nil {
		log.Warn("channel status update failed", zap.Error(err))
	}
	return firstErr
}

func (d *Dispatcher) channelAvailable(ch domain.Channel, rc runtimecfg.RuntimeConfig, log *zap.Logger) bool {
	switch ch {
	case domain.ChannelEmail:
		if !rc.EmailEnabled {
			log.Info("email channel disabled by configuration, skipping")
			return false
		}
		if d.providers.Email == nil {
			log.Warn("email provider not configured, skipping channel")
			return false
		}
	case domain.ChannelSMS:
		if !rc.SMSEnabled {
			log.Info("sms channel disabled by configuration, skipping")
			return false
		}
		if d.providers.SMS == nil {
			log.Warn("sms provider not configured, skipping channel")
			return false
		}
	}
	return true
}

func (d *Dispatcher) sendChannel(ctx context.Context, job *domain.NotificationJob, ch domain.Channel, content jobContent, recipients []domain.Recipient) error {
	var firstErr error
	for _, rec := range recipients {
		addr := recipient.Address(rec, ch)
		if addr == "" {
			continue
		}
		if err := d.limiter.Wait(ctx, ch); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		d.audit.Log(ctx, job.ID, domain.AuditChannelAttempt, map[string]any{
			"channel": string(ch), "to": addr,
		})
		msgID, err := d.sendOne(ctx, job, ch, content, addr)
		if err != nil {
			d.audit.Log(ctx, job.ID, domain.AuditChannelFailed, map[string]any{
				"channel": string(ch), "to": addr, "error": err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("%s to %s: %w", ch, addr, err)
			}
			continue
		}
		d.audit.Log(ctx, job.ID, domain.AuditChannelSent, map[string]any{
			"channel": string(ch), "to": addr, "provider_message_id": msgID,
		})
	}
	return firstErr
}

func (d *Dispatcher) sendOne(ctx context.Context, job *domain.NotificationJob, ch domain.Channel, content jobContent, addr string) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		return d.providers.Email.SendEmail(ctx, addr, content.Subject, content.HTMLContent, content.TextContent)
	case domain.ChannelSMS:
		body := content.SMSContent
		if body == "" {
			body = render.SMSFallback(content.TextContent)
		}
		return d.providers.SMS.SendSMS(ctx, addr, body)
	case domain.ChannelPush:
		// Inert stub: logs only, never dispatches.
		if d.providers.Push != nil {
			d.providers.Push.Note(job.ID, addr)
		}
		return "", nil
	}
	return "", domain.ErrInvalidChannel
}

// settle advances the job's status after a dispatch attempt: sent on
// success, retrying with a backoff-scheduled next attempt on failure, or
// failed once retries are exhausted.
func (d *Dispatcher) settle(ctx context.Context, job *domain.NotificationJob, dispatchErr error) {
	now := time.Now().UTC()

	if dispatchErr == nil {
		if err := d.jobs.MarkSent(ctx, job.ID, now); err != nil {
			d.logger.Error("mark sent failed", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		d.audit.Log(ctx, job.ID, domain.AuditCompleted, nil)
		return
	}

	retryCount := job.RetryCount + 1
	limit := job.MaxRetries
	if limit <= 0 {
		limit = d.maxRetries
	}

	// A missing template is a validation failure: no number of retries can
	// deliver the job, so it fails immediately instead of burning backoff.
	if retryCount >= limit || errors.Is(dispatchErr, domain.ErrTemplateNotFound) {
		if err := d.jobs.MarkFailed(ctx, job.ID, retryCount, dispatchErr.Error()); err != nil {
			d.logger.Error("mark failed failed", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
		d.metrics.JobsExhausted.Inc()
		d.audit.Log(ctx, job.ID, domain.AuditFailed, map[string]any{
			"retry_count": retryCount, "error": dispatchErr.Error(),
		})
		d.logger.Error("job permanently failed",
			zap.String("job_id", job.ID),
			zap.Int("retry_count", retryCount),
			zap.Error(dispatchErr))
		return
	}

	nextRetry := now.Add(d.backoffFor(retryCount))
	if err := d.jobs.ScheduleRetry(ctx, job.ID, retryCount, nextRetry, dispatchErr.Error()); err != nil {
		d.logger.Error("schedule retry failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	d.metrics.JobsRetried.Inc()
	d.logger.Warn("job dispatch failed, retry scheduled",
		zap.String("job_id", job.ID),
		zap.Int("retry_count", retryCount),
		zap.Time("next_retry_at", nextRetry),
		zap.Error(dispatchErr))
}

// backoffFor returns the delay before the given (1-based) retry attempt.
// Attempts beyond the schedule reuse its last entry.
func (d *Dispatcher) backoffFor(retryCount int) time.Duration {
	if len(d.backoff) == 0 {
		return time.Minute
	}
	idx := retryCount - 1
	if idx >= len(d.backoff) {
		idx = len(d.backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return d.backoff[idx]
}
