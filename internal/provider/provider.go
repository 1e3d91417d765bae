// Package provider holds the thin clients for external delivery services.
// The pipeline treats transport as pluggable: anything implementing
// EmailProvider or SMSProvider can be wired in, and tests substitute mocks.
package provider

import "context"

// EmailProvider abstracts email delivery. Send returns the provider's
// message ID on success, usable as a deduplication key where supported.
type EmailProvider interface {
	SendEmail(ctx context.Context, to, subject, htmlContent, textContent string) (string, error)
}

// SMSProvider abstracts SMS delivery. The provider is optional at process
// start: a nil SMSProvider disables SMS dispatch with a warning rather
// than failing jobs.
type SMSProvider interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// Providers bundles the per-channel clients handed to the dispatcher.
// Nil members mean "channel not configured".
type Providers struct {
	Email EmailProvider
	SMS   SMSProvider
	Push  *PushStub
}
