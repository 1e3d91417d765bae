package recipient_test

import (
	"testing"

	"github.com/notifyhub/signal-pipeline/internal/domain"
	"github.com/notifyhub/signal-pipeline/internal/recipient"
)

var owner = domain.Recipient{
	Email: "owner@example.com",
	Phone: "+15550000000",
	Name:  "Account Owner",
}

func TestResolve_StaticEmails(t *testing.T) {
	r := recipient.NewResolver(owner)
	hook := &domain.SignalHook{
		RecipientEmails: []string{"a@b.com", "c@d.com"},
	}

	got := r.Resolve(hook, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	for _, rec := range got {
		if rec.Type != domain.RecipientStatic {
			t.Fatalf("expected type=static, got %s", rec.Type)
		}
	}
}

func TestResolve_RoleMapsToAccountOwner(t *testing.T) {
	r := recipient.NewResolver(owner)
	hook := &domain.SignalHook{
		RecipientRoles: []string{domain.RoleAccountOwner, "unknown_role"},
	}

	got := r.Resolve(hook, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 recipient (unknown role ignored), got %d", len(got))
	}
	if got[0].Email != owner.Email || got[0].Type != domain.RecipientRole {
		t.Fatalf("unexpected role recipient: %+v", got[0])
	}
	if got[0].Role != domain.RoleAccountOwner {
		t.Fatalf("expected role token preserved, got %q", got[0].Role)
	}
}

func TestResolve_DynamicFields(t *testing.T) {
	r := recipient.NewResolver(owner)
	hook := &domain.SignalHook{
		RecipientDynamic: []string{"customerEmail", "customerPhone", "missing", "empty"},
	}
	payload := map[string]any{
		"customerEmail": "a@b.com",
		"customerPhone": "+15551234567",
		"empty":         "",
	}

	got := r.Resolve(hook, payload)
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	if got[0].Email != "a@b.com" {
		t.Fatalf("expected email recipient first, got %+v", got[0])
	}
	if got[1].Phone != "+15551234567" {
		t.Fatalf("expected phone recipient second, got %+v", got[1])
	}
	for _, rec := range got {
		if rec.Type != domain.RecipientDynamic {
			t.Fatalf("expected type=dynamic, got %s", rec.Type)
		}
	}
}

func TestResolve_SourcesMergeInOrder(t *testing.T) {
	r := recipient.NewResolver(owner)
	hook := &domain.SignalHook{
		RecipientEmails:  []string{"static@b.com"},
		RecipientRoles:   []string{domain.RoleAccountOwner},
		RecipientDynamic: []string{"customerEmail"},
	}
	payload := map[string]any{"customerEmail": "dyn@b.com"}

	got := r.Resolve(hook, payload)
	if len(got) != 3 {
		t.Fatalf("expected 3 recipients, got %d", len(got))
	}
	wantTypes := []domain.RecipientType{
		domain.RecipientStatic, domain.RecipientRole, domain.RecipientDynamic,
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].Type)
		}
	}
}

func TestResolve_DeduplicatesAcrossSources(t *testing.T) {
	r := recipient.NewResolver(owner)
	hook := &domain.SignalHook{
		// The owner's email appears statically, via role, and dynamically.
		RecipientEmails:  []string{"Owner@Example.com"},
		RecipientRoles:   []string{domain.RoleAccountOwner},
		RecipientDynamic: []string{"customerEmail"},
	}
	payload := map[string]any{"customerEmail": "owner@example.com"}

	got := r.Resolve(hook, payload)
	if len(got) != 1 {
		t.Fatalf("expected 1 deduplicated recipient, got %d", len(got))
	}
	if got[0].Type != domain.RecipientStatic {
		t.Fatalf("first source should win, got %s", got[0].Type)
	}
}

func TestResolve_EmptyResultIsLegal(t *testing.T) {
	r := recipient.NewResolver(owner)
	got := r.Resolve(&domain.SignalHook{}, map[string]any{})
	if len(got) != 0 {
		t.Fatalf("expected no recipients, got %d", len(got))
	}
}
