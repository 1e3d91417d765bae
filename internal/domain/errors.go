package domain

import "errors"

// Sentinel errors used throughout the pipeline.
// Per-signal and per-job failures are recorded on the affected row; these
// sentinels let callers distinguish validation failures (which skip a unit
// of work) from transient delivery failures (which are retried).
var (
	ErrNotFound         = errors.New("not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrJobClaimed       = errors.New("job already claimed by another pass")
	ErrInvalidChannel   = errors.New("invalid channel: must be email, sms, or push")
)
