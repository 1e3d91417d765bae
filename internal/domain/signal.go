package domain

import (
	"encoding/json"
	"time"
)

// SignalEvent is a raw domain event recorded by upstream business logic
// for later, decoupled processing. Events are never deleted; the processor
// only flips Processed to true after one pass over the matching hooks.
type SignalEvent struct {
	ID         string         `json:"id"`
	SignalType string         `json:"signal_type"`
	Payload    map[string]any `json:"payload"`
	Processed  bool           `json:"processed"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SignalHook binds a signal type to a template, channel set, and recipient
// strategy, guarded by an ordered list of conditions. A hook is only ever
// matched against signals with an identical SignalType.
type SignalHook struct {
	ID         string `json:"id"`
	SignalType string `json:"signal_type"`
	Enabled    bool   `json:"enabled"`

	// Conditions is kept as raw JSON: a malformed list must evaluate to
	// true (fail-open), so decoding is deferred to the evaluator.
	Conditions json.RawMessage `json:"conditions"`

	TemplateID string    `json:"template_id"`
	Channels   []Channel `json:"channels"`

	RecipientEmails  []string `json:"recipient_emails"`
	RecipientRoles   []string `json:"recipient_roles"`
	RecipientDynamic []string `json:"recipient_dynamic"`

	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Condition is a single predicate over a dot-path into the signal payload.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Condition operators. Anything else evaluates to true with a warning.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpLt       = "lt"
	OpContains = "contains"
)

// RoleAccountOwner is the single recognized role token: it maps to the
// configured primary account contact.
const RoleAccountOwner = "account_owner"
