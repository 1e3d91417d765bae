package audit_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/audit"
	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/repository"
)

func TestLog_RecordsEvent(t *testing.T) {
	store := repository.NewMockEventStore()
	l := audit.NewLogger(store, zap.NewNop())

	l.Log(context.Background(), "job-1", domain.AuditQueued, map[string]any{"hook": "h1"})

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.NotificationID != "job-1" || ev.EventType != domain.AuditQueued {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.ID == "" {
		t.Fatal("expected a generated event ID")
	}
}

func TestLog_StoreFailureIsSwallowed(t *testing.T) {
	store := repository.NewMockEventStore()
	store.RecordErr = errors.New("table missing")
	l := audit.NewLogger(store, zap.NewNop())

	// Must not panic or propagate in any observable way.
	l.Log(context.Background(), "job-1", domain.AuditFailed, nil)

	if len(store.Events()) != 0 {
		t.Fatal("expected no recorded events")
	}
}
