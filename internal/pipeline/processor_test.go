package pipeline_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/metrics"
	"github.com/notifyhub/signal-pipeline/internal/pipeline"
	"github.com/notifyhub/signal-pipeline/internal/repository"
	"github.com/notifyhub/signal-pipeline/internal/runtimecfg"
)

func testRuntime(rc runtimecfg.RuntimeConfig) *runtimecfg.Client {
	return runtimecfg.NewClient(nil, time.Minute, rc, zap.NewNop())
}

type processorFixture struct {
	signals   *repository.MockSignalStore
	hooks     *repository.MockHookStore
	templates *repository.MockTemplateStore
	jobs      *repository.MockJobStore
	events    *repository.MockEventStore
	processor *pipeline.Processor
}

func newProcessorFixture(rc runtimecfg.RuntimeConfig) *processorFixture {
	f := &processorFixture{
		signals:   repository.NewMockSignalStore(),
		hooks:     repository.NewMockHookStore(),
		templates: repository.NewMockTemplateStore(),
		jobs:      repository.NewMockJobStore(),
		events:    repository.NewMockEventStore(),
	}
	logger := zap.NewNop()
	f.processor = pipeline.NewProcessor(
		f.signals, f.hooks, f.templates, f.jobs,
		testRuntime(rc),
		audit.NewLogger(f.events, logger),
		metrics.New(prometheus.NewRegistry()),
		3, logger)
	return f
}

func leadSignal(id string) *domain.SignalEvent {
	return &domain.SignalEvent{
		ID:         id,
		SignalType: "new_lead",
		Payload: map[string]any{
			"customerName":  "Jane Smith",
			"customerEmail": "jane@example.com",
			"budget":        float64(1500),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func leadHook(id string) *domain.SignalHook {
	return &domain.SignalHook{
		ID:              id,
		SignalType:      "new_lead",
		Enabled:         true,
		TemplateID:      "tmpl-email-lead",
		Channels:        []domain.Channel{domain.ChannelEmail, domain.ChannelSMS},
		RecipientEmails: []string{"sales@example.com"},
		Priority:        domain.PriorityHigh,
	}
}

func leadTemplate() *domain.NotificationTemplate {
	return &domain.NotificationTemplate{
		ID:          "tmpl-email-lead",
		Subject:     "New lead: {{.customer.name}}",
		HTMLContent: "<p>Lead from {{.customer.name}} ({{.customer.email}})</p>",
		TextContent: "Lead from {{.customer.name}}",
	}
}

func TestProcessor_EnqueuesJobForMatchingHook(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))
	f.hooks.Add(leadHook("hook-1"))
	f.templates.Add(leadTemplate())

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]

	if job.Status != domain.StatusPending {
		t.Errorf("expected pending status, got %q", job.Status)
	}
	if job.EventType != "new_lead" {
		t.Errorf("expected event type new_lead, got %q", job.EventType)
	}
	if job.Priority != domain.PriorityHigh {
		t.Errorf("expected high priority, got %q", job.Priority)
	}
	if job.RetryCount != 0 || job.MaxRetries != 3 {
		t.Errorf("expected fresh retry accounting, got count=%d max=%d", job.RetryCount, job.MaxRetries)
	}
	if len(job.RecipientIDs) != 1 || job.RecipientIDs[0] != "sales@example.com" {
		t.Errorf("unexpected recipient ids: %v", job.RecipientIDs)
	}

	email, ok := job.Channels[domain.ChannelEmail]
	if !ok || !email.Enabled {
		t.Fatal("expected enabled email channel")
	}
	if email.Subject != "New lead: Jane Smith" {
		t.Errorf("unexpected subject: %q", email.Subject)
	}
	if !strings.Contains(email.Content, "jane@example.com") {
		t.Errorf("expected rendered html to bind payload, got %q", email.Content)
	}

	if job.DirectContent == nil {
		t.Fatal("expected direct content attached at enqueue")
	}
	if job.DirectContent.SMSContent != "Lead from Jane Smith" {
		t.Errorf("unexpected sms content: %q", job.DirectContent.SMSContent)
	}

	if sig := f.signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed")
	}

	var queued bool
	for _, ev := range f.events.Events() {
		if ev.EventType == domain.AuditQueued && ev.NotificationID == job.ID {
			queued = true
		}
	}
	if !queued {
		t.Error("expected a queued audit event")
	}
}

func TestProcessor_ConditionFalseSkipsHookButMarksProcessed(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))

	hook := leadHook("hook-1")
	hook.Conditions = json.RawMessage(`[{"field":"budget","operator":"gt","value":100000}]`)
	f.hooks.Add(hook)
	f.templates.Add(leadTemplate())

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(f.jobs.All()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
	if sig := f.signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed despite no match")
	}
}

func TestProcessor_ZeroRecipientsSkipsEnqueue(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))

	hook := leadHook("hook-1")
	hook.RecipientEmails = nil
	hook.RecipientDynamic = []string{"missingField"}
	f.hooks.Add(hook)
	f.templates.Add(leadTemplate())

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(f.jobs.All()); got != 0 {
		t.Fatalf("expected no jobs for empty recipient set, got %d", got)
	}
	if sig := f.signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed")
	}
}

func TestProcessor_MissingTemplateFailsOnlyThatHook(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))

	broken := leadHook("hook-broken")
	broken.TemplateID = "tmpl-missing"
	f.hooks.Add(broken)
	f.hooks.Add(leadHook("hook-ok"))
	f.templates.Add(leadTemplate())

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(f.jobs.All()); got != 1 {
		t.Fatalf("expected the healthy hook to still enqueue, got %d jobs", got)
	}
	if sig := f.signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed")
	}
}

func TestProcessor_SMSVariantByDerivedID(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))
	f.hooks.Add(leadHook("hook-1"))
	f.templates.Add(leadTemplate())
	f.templates.Add(&domain.NotificationTemplate{
		ID:          "tmpl-sms-lead",
		TextContent: "SMS: lead {{.customer.name}}",
	})

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if got := jobs[0].DirectContent.SMSContent; got != "SMS: lead Jane Smith" {
		t.Errorf("expected derived-id sms variant, got %q", got)
	}
}

func TestProcessor_SMSFallbackTruncatesLongText(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))
	f.hooks.Add(leadHook("hook-1"))

	tmpl := leadTemplate()
	tmpl.TextContent = strings.Repeat("lead update ", 30)
	f.templates.Add(tmpl)

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if got := len(jobs[0].DirectContent.SMSContent); got > 160 {
		t.Errorf("expected sms content truncated to 160 chars, got %d", got)
	}
}

func TestProcessor_NoValidChannelsSkipsEnqueue(t *testing.T) {
	f := newProcessorFixture(runtimecfg.RuntimeConfig{})
	f.signals.Add(leadSignal("sig-1"))
	f.templates.Add(leadTemplate())

	empty := leadHook("hook-empty")
	empty.Channels = nil
	f.hooks.Add(empty)

	unknown := leadHook("hook-unknown")
	unknown.Channels = []domain.Channel{"fax"}
	f.hooks.Add(unknown)

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(f.jobs.All()); got != 0 {
		t.Fatalf("expected no jobs when no channel can deliver, got %d", got)
	}
	if sig := f.signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed")
	}
}

// recordingTemplateStore counts lookups while delegating to the in-memory
// store underneath.
type recordingTemplateStore struct {
	inner *repository.MockTemplateStore
	calls int
}

func (r *recordingTemplateStore) GetByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	r.calls++
	return r.inner.GetByID(ctx, id)
}

func (r *recordingTemplateStore) GetByIDAndChannel(ctx context.Context, id string, channel domain.Channel) (*domain.NotificationTemplate, error) {
	r.calls++
	return r.inner.GetByIDAndChannel(ctx, id, channel)
}

func TestProcessor_TemplateLoadPrecedesRecipientResolution(t *testing.T) {
	signals := repository.NewMockSignalStore()
	hooks := repository.NewMockHookStore()
	templates := &recordingTemplateStore{inner: repository.NewMockTemplateStore()}
	jobs := repository.NewMockJobStore()
	events := repository.NewMockEventStore()

	signals.Add(leadSignal("sig-1"))
	hook := leadHook("hook-1")
	hook.RecipientEmails = nil // resolves to zero recipients
	hooks.Add(hook)
	// No template added: the lookup fails, before recipients are considered.

	logger := zap.NewNop()
	p := pipeline.NewProcessor(signals, hooks, templates, jobs,
		testRuntime(runtimecfg.RuntimeConfig{}),
		audit.NewLogger(events, logger),
		metrics.New(prometheus.NewRegistry()),
		3, logger)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if templates.calls == 0 {
		t.Fatal("expected the template lookup to run before recipient resolution")
	}
	if got := len(jobs.All()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestProcessor_RoleRecipientUsesPrimaryContact(t *testing.T) {
	rc := runtimecfg.RuntimeConfig{
		PrimaryContact: domain.Recipient{Email: "owner@example.com", Name: "Owner"},
	}
	f := newProcessorFixture(rc)
	f.signals.Add(leadSignal("sig-1"))

	hook := leadHook("hook-1")
	hook.RecipientEmails = nil
	hook.RecipientRoles = []string{domain.RoleAccountOwner}
	f.hooks.Add(hook)
	f.templates.Add(leadTemplate())

	if err := f.processor.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobs.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if ids := jobs[0].RecipientIDs; len(ids) != 1 || ids[0] != "owner@example.com" {
		t.Errorf("expected role recipient to resolve to primary contact, got %v", ids)
	}
}
