package domain

import "time"

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// Priority controls processing order within a dispatch pass.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Status tracks the delivery lifecycle of a notification job.
//
// State machine:
//
//	pending --claim--> processing --success--> sent
//	processing --failure, retryCount < max--> retrying (with next_retry_at)
//	processing --failure, retryCount >= max--> failed
//	retrying --next_retry_at due, claim--> processing
//
// The processing state is the in-flight claim marker: a conditional update
// into it guards against two overlapping dispatch passes sending the same
// job twice.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusRetrying   Status = "retrying"
	StatusFailed     Status = "failed"
)

// ChannelDelivery describes one channel entry of a job's channel map.
type ChannelDelivery struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	Content    string   `json:"content"`
	Status     string   `json:"status,omitempty"`
}

// DirectContent is pre-rendered notification content attached to a job at
// enqueue time. When present, dispatch uses it verbatim and never consults
// the template store.
type DirectContent struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
	SMSContent  string `json:"sms_content,omitempty"`
}

// NotificationJob is a queued, stateful unit of delivery work derived from
// a signal+hook match (or created directly by another producer).
type NotificationJob struct {
	ID            string  `json:"id"`
	EventType     string  `json:"event_type"`
	SignalEventID *string `json:"signal_event_id,omitempty"`
	TemplateID    *string `json:"template_id,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	Channels      map[Channel]ChannelDelivery `json:"channels"`
	RecipientIDs  []string                    `json:"recipient_ids"`
	Payload       map[string]any              `json:"payload"`
	DirectContent *DirectContent              `json:"direct_content,omitempty"`

	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`

	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EnabledChannels returns the channels flagged enabled in the job's channel
// map. A job with none is a logical no-op and should not have been enqueued.
func (j *NotificationJob) EnabledChannels() []Channel {
	var out []Channel
	for ch, d := range j.Channels {
		if d.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

// NotificationTemplate holds per-channel template source. Treated as
// immutable once referenced by a hook.
type NotificationTemplate struct {
	ID          string    `json:"id"`
	Channel     Channel   `json:"channel,omitempty"` // optional channel tag
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"html_content"`
	TextContent string    `json:"text_content"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecipientType records which resolution source produced a recipient.
type RecipientType string

const (
	RecipientStatic  RecipientType = "static"
	RecipientRole    RecipientType = "role"
	RecipientDynamic RecipientType = "dynamic"
)

// Recipient is a resolved delivery target. It is derived per pass and never
// persisted; jobs store only recipient IDs.
type Recipient struct {
	Email string        `json:"email"`
	Phone string        `json:"phone"`
	Name  string        `json:"name"`
	Role  string        `json:"role"`
	Type  RecipientType `json:"type"`
}

// Audit event types written by the pipeline.
const (
	AuditQueued            = "queued"
	AuditProcessingStarted = "processing_started"
	AuditChannelAttempt    = "channel_attempt"
	AuditChannelSent       = "channel_sent"
	AuditChannelFailed     = "channel_failed"
	AuditCompleted         = "completed"
	AuditFailed            = "failed"
)

// AuditEvent is one append-only lifecycle record for a notification job.
type AuditEvent struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	EventType      string         `json:"event_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
