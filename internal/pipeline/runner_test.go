package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/metrics"
	"github.com/notifyhub/signal-pipeline/internal/pipeline"
	"github.com/notifyhub/signal-pipeline/internal/provider"
	"github.com/notifyhub/signal-pipeline/internal/ratelimiter"
	"github.com/notifyhub/signal-pipeline/internal/repository"
)

// One run-once pass carries a fresh signal all the way to a sent job.
func TestRunner_RunOncePassEndToEnd(t *testing.T) {
	signals := repository.NewMockSignalStore()
	hooks := repository.NewMockHookStore()
	templates := repository.NewMockTemplateStore()
	jobs := repository.NewMockJobStore()
	events := repository.NewMockEventStore()
	email := &fakeEmailProvider{}

	signals.Add(leadSignal("sig-1"))
	hooks.Add(leadHook("hook-1"))
	templates.Add(leadTemplate())

	logger := zap.NewNop()
	runtime := testRuntime(defaultRC())
	auditLog := audit.NewLogger(events, logger)
	m := metrics.New(prometheus.NewRegistry())

	processor := pipeline.NewProcessor(signals, hooks, templates, jobs, runtime, auditLog, m, 3, logger)
	dispatcher := pipeline.NewDispatcher(
		jobs, templates,
		provider.Providers{Email: email, SMS: &fakeSMSProvider{}},
		ratelimiter.New(1000),
		runtime, auditLog, m,
		[]time.Duration{5 * time.Second}, 3, logger)

	runner := pipeline.NewRunner(processor, dispatcher, time.Minute, true, logger)
	runner.Run(context.Background())

	all := jobs.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 job after the pass, got %d", len(all))
	}
	if all[0].Status != domain.StatusSent {
		t.Fatalf("expected the job sent within the same pass, got %q", all[0].Status)
	}
	if len(email.sent) == 0 {
		t.Fatal("expected at least one email delivery")
	}
	if sig := signals.Get("sig-1"); sig == nil || !sig.Processed {
		t.Error("expected signal marked processed")
	}
}

// Loop mode stops when the context is cancelled.
func TestRunner_StopsOnContextCancel(t *testing.T) {
	signals := repository.NewMockSignalStore()
	hooks := repository.NewMockHookStore()
	templates := repository.NewMockTemplateStore()
	jobs := repository.NewMockJobStore()
	events := repository.NewMockEventStore()

	logger := zap.NewNop()
	runtime := testRuntime(defaultRC())
	auditLog := audit.NewLogger(events, logger)
	m := metrics.New(prometheus.NewRegistry())

	processor := pipeline.NewProcessor(signals, hooks, templates, jobs, runtime, auditLog, m, 3, logger)
	dispatcher := pipeline.NewDispatcher(
		jobs, templates,
		provider.Providers{Email: &fakeEmailProvider{}},
		ratelimiter.New(1000),
		runtime, auditLog, m,
		[]time.Duration{5 * time.Second}, 3, logger)

	runner := pipeline.NewRunner(processor, dispatcher, 10*time.Millisecond, false, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}
