// Package recipient derives concrete delivery targets from a hook
// definition and a signal payload.
package recipient

import (
	"strings"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// Resolver merges the three recipient sources of a hook in fixed order:
// static email list, role list, dynamic payload fields. An empty combined
// result is a valid outcome meaning "no one to notify".
type Resolver struct {
	// accountOwner is the configured contact identity that role tokens
	// resolve to.
	accountOwner domain.Recipient
}

func NewResolver(accountOwner domain.Recipient) *Resolver {
	return &Resolver{accountOwner: accountOwner}
}

// Resolve returns the deduplicated recipient list for a hook and payload.
// Duplicates across sources are dropped by contact address; the earliest
// source wins (static over role over dynamic).
func (r *Resolver) Resolve(hook *domain.SignalHook, payload map[string]any) []domain.Recipient {
	var out []domain.Recipient
	seen := make(map[string]bool)

	add := func(rec domain.Recipient) {
		key := dedupeKey(rec)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, rec)
	}

	// (a) static email list
	for _, email := range hook.RecipientEmails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		add(domain.Recipient{Email: email, Type: domain.RecipientStatic})
	}

	// (b) role list: only the account-owner token is recognized today;
	// unknown tokens are ignored rather than failing the hook.
	for _, role := range hook.RecipientRoles {
		if role != domain.RoleAccountOwner {
			continue
		}
		rec := r.accountOwner
		rec.Role = role
		rec.Type = domain.RecipientRole
		add(rec)
	}

	// (c) dynamic payload fields
	for _, field := range hook.RecipientDynamic {
		value, ok := payload[field].(string)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		rec := domain.Recipient{Type: domain.RecipientDynamic}
		if strings.Contains(value, "@") {
			rec.Email = value
		} else {
			rec.Phone = value
		}
		add(rec)
	}

	return out
}

// dedupeKey identifies a recipient by lowercase email, falling back to the
// phone number for phone-only recipients.
func dedupeKey(rec domain.Recipient) string {
	if rec.Email != "" {
		return strings.ToLower(rec.Email)
	}
	return rec.Phone
}

// Address returns the contact handle for a channel: the email address for
// email, the phone number for SMS and push.
func Address(rec domain.Recipient, ch domain.Channel) string {
	if ch == domain.ChannelEmail {
		return rec.Email
	}
	return rec.Phone
}
