// Package pipeline implements the two batch phases of the notification
// pipeline: the Phase 1 processor (signals to jobs) and the Phase 2
// dispatcher (jobs to deliveries), plus the scheduler that drives them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/condition"
	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/metrics"
	"github.com/notifyhub/signal-pipeline/internal/recipient"
	"github.com/notifyhub/signal-pipeline/internal/render"
	"github.com/notifyhub/signal-pipeline/internal/repository"
	"github.com/notifyhub/signal-pipeline/internal/runtimecfg"
)

// Processor is Phase 1: it scans unprocessed signals, matches enabled hooks
// by signal type, evaluates conditions, resolves recipients, renders content,
// and enqueues pending notification jobs.
//
// Every signal is marked processed after exactly one pass over its hooks,
// regardless of per-hook outcomes. Processing is at-most-once: a hook that
// fails here is not retried against the same signal.
type Processor struct {
	signals   repository.SignalStore
	hooks     repository.HookStore
	templates repository.TemplateStore
	jobs      repository.JobStore

	evaluator  *condition.Evaluator
	renderer   *render.Renderer
	runtime    *runtimecfg.Client
	audit      *audit.Logger
	metrics    *metrics.Metrics
	maxRetries int
	logger     *zap.Logger
}

func NewProcessor(
	signals repository.SignalStore,
	hooks repository.HookStore,
	templates repository.TemplateStore,
	jobs repository.JobStore,
	runtime *runtimecfg.Client,
	auditLog *audit.Logger,
	m *metrics.Metrics,
	maxRetries int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		signals:    signals,
		hooks:      hooks,
		templates:  templates,
		jobs:       jobs,
		evaluator:  condition.NewEvaluator(logger),
		renderer:   render.NewRenderer(),
		runtime:    runtime,
		audit:      auditLog,
		metrics:    m,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run executes one Phase 1 pass. Only the initial scan can fail the pass;
// per-signal and per-hook errors are logged and isolated.
func (p *Processor) Run(ctx context.Context) error {
	signals, err := p.signals.FindUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("scan unprocessed signals: %w", err)
	}
	if len(signals) == 0 {
		return nil
	}

	rc := p.runtime.Get(ctx)
	resolver := recipient.NewResolver(rc.PrimaryContact)

	for _, sig := range signals {
		p.processSignal(ctx, sig, resolver)

		// Mark processed unconditionally after one pass over the hooks.
		if err := p.signals.MarkProcessed(ctx, sig.ID); err != nil {
			p.logger.Error("mark signal processed failed",
				zap.String("signal_id", sig.ID), zap.Error(err))
		}
		p.metrics.SignalsProcessed.Inc()
	}
	return nil
}

func (p *Processor) processSignal(ctx context.Context, sig *domain.SignalEvent, resolver *recipient.Resolver) {
	log := p.logger.With(
		zap.String("signal_id", sig.ID),
		zap.String("signal_type", sig.SignalType))

	hooks, err := p.hooks.FindEnabledByType(ctx, sig.SignalType)
	if err != nil {
		log.Error("hook lookup failed", zap.Error(err))
		return
	}
	if len(hooks) == 0 {
		log.Debug("no enabled hooks for signal type")
		return
	}

	for _, hook := range hooks {
		// Per-hook isolation: one hook failing never blocks the rest.
		if err := p.enqueueForHook(ctx, sig, hook, resolver); err != nil {
			log.Error("hook processing failed",
				zap.String("hook_id", hook.ID), zap.Error(err))
		}
	}
}

func (p *Processor) enqueueForHook(ctx context.Context, sig *domain.SignalEvent, hook *domain.SignalHook, resolver *recipient.Resolver) error {
	if !p.evaluator.Evaluate(hook.Conditions, sig.Payload) {
		return nil
	}
	p.metrics.HooksMatched.Inc()

	tmpl, err := p.templates.GetByID(ctx, hook.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", hook.TemplateID, err)
	}

	recipients := resolver.Resolve(hook, sig.Payload)
	if len(recipients) == 0 {
		p.logger.Info("hook matched but resolved no recipients, skipping",
			zap.String("hook_id", hook.ID), zap.String("signal_id", sig.ID))
		return nil
	}

	content, err := p.renderer.Render(tmpl, sig.Payload)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	smsContent := resolveSMSContent(ctx, p.templates, p.renderer, tmpl.ID, sig.Payload, content.TextContent)

	job := p.buildJob(sig, hook, recipients, content, smsContent)
	if len(job.Channels) == 0 {
		// A job no channel would deliver is a logical no-op.
		p.logger.Info("hook has no valid channels, skipping",
			zap.String("hook_id", hook.ID), zap.String("signal_id", sig.ID))
		return nil
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	p.metrics.JobsEnqueued.WithLabelValues(string(job.Priority)).Inc()
	p.audit.Log(ctx, job.ID, domain.AuditQueued, map[string]any{
		"hook_id":     hook.ID,
		"signal_id":   sig.ID,
		"template_id": hook.TemplateID,
		"recipients":  len(recipients),
	})
	return nil
}

// buildJob assembles a pending job with content rendered at enqueue time.
// The rendered output rides along as direct content so dispatch never has
// to re-render (and survives later template edits unchanged).
func (p *Processor) buildJob(sig *domain.SignalEvent, hook *domain.SignalHook, recipients []domain.Recipient, content render.Content, smsContent string) *domain.NotificationJob {
	channels := make(map[domain.Channel]domain.ChannelDelivery, len(hook.Channels))
	for _, ch := range hook.Channels {
		if !ch.IsValid() {
			p.logger.Warn("hook references unknown channel, skipping",
				zap.String("hook_id", hook.ID), zap.String("channel", string(ch)))
			continue
		}
		d := domain.ChannelDelivery{Enabled: true, Recipients: addresses(recipients, ch)}
		switch ch {
		case domain.ChannelEmail:
			d.Subject = content.Subject
			d.Content = content.HTMLContent
		case domain.ChannelSMS:
			d.Content = smsContent
		default:
			d.Content = content.TextContent
		}
		channels[ch] = d
	}

	priority := hook.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := time.Now().UTC()
	sigID := sig.ID
	tmplID := hook.TemplateID
	return &domain.NotificationJob{
		ID:            uuid.New().String(),
		EventType:     sig.SignalType,
		SignalEventID: &sigID,
		TemplateID:    &tmplID,
		Status:        domain.StatusPending,
		Priority:      priority,
		Channels:      channels,
		RecipientIDs:  recipientIDs(recipients),
		Payload:       sig.Payload,
		DirectContent: &domain.DirectContent{
			Subject:     content.Subject,
			HTMLContent: content.HTMLContent,
			TextContent: content.TextContent,
			SMSContent:  smsContent,
		},
		MaxRetries: p.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// resolveSMSContent applies the SMS variant chain: explicit channel tag or
// derived-id variant when one exists, otherwise the primary template's text
// output truncated to the short-message budget. Variant failures also fall
// back to truncation rather than failing the job.
func resolveSMSContent(ctx context.Context, templates repository.TemplateStore, renderer *render.Renderer, templateID string, payload map[string]any, fallbackText string) string {
	t, err := templates.GetByIDAndChannel(ctx, templateID, domain.ChannelSMS)
	if err != nil {
		return render.SMSFallback(fallbackText)
	}
	if t.ID == templateID && t.Channel != domain.ChannelSMS {
		// Base-id fallback: no SMS-specific variant exists.
		return render.SMSFallback(fallbackText)
	}
	c, err := renderer.Render(t, payload)
	if err != nil {
		return render.SMSFallback(fallbackText)
	}
	return c.TextContent
}

// recipientIDs stores each recipient by its contact address. Dispatch
// resolves these back to identities (email if the id contains "@",
// phone otherwise).
func recipientIDs(recipients []domain.Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, rec := range recipients {
		if rec.Email != "" {
			out = append(out, rec.Email)
		} else if rec.Phone != "" {
			out = append(out, rec.Phone)
		}
	}
	return out
}

func addresses(recipients []domain.Recipient, ch domain.Channel) []string {
	var out []string
	for _, rec := range recipients {
		if addr := recipient.Address(rec, ch); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
