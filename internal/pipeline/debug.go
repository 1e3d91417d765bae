package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// Debug-mode content annotation. When deliveries are rerouted to the debug
// identity, the original envelope is written into the content itself so the
// tester can see who the notification would have reached.

const debugSubjectPrefix = "[DEBUG] "

func debugSubject(subject string) string {
	if strings.HasPrefix(subject, debugSubjectPrefix) {
		return subject
	}
	return debugSubjectPrefix + subject
}

func debugEnvelopeText(job *domain.NotificationJob, originals []domain.Recipient) string {
	var b strings.Builder
	b.WriteString("--- DEBUG ENVELOPE ---\n")
	fmt.Fprintf(&b, "Notification: %s\n", job.ID)
	fmt.Fprintf(&b, "Template: %s\n", templateLabel(job))
	fmt.Fprintf(&b, "Channels: %s\n", strings.Join(channelNames(job), ", "))
	fmt.Fprintf(&b, "Original recipients: %s\n", strings.Join(recipientLabels(originals), ", "))
	b.WriteString("----------------------\n\n")
	return b.String()
}

func debugEnvelopeHTML(job *domain.NotificationJob, originals []domain.Recipient) string {
	var b strings.Builder
	b.WriteString(`<div style="border:2px dashed #c00;padding:8px;margin-bottom:16px;font-family:monospace">`)
	b.WriteString("<strong>DEBUG ENVELOPE</strong><br>")
	fmt.Fprintf(&b, "Notification: %s<br>", job.ID)
	fmt.Fprintf(&b, "Template: %s<br>", templateLabel(job))
	fmt.Fprintf(&b, "Channels: %s<br>", strings.Join(channelNames(job), ", "))
	fmt.Fprintf(&b, "Original recipients: %s", strings.Join(recipientLabels(originals), ", "))
	b.WriteString("</div>")
	return b.String()
}

func templateLabel(job *domain.NotificationJob) string {
	if job.TemplateID != nil && *job.TemplateID != "" {
		return *job.TemplateID
	}
	return "(direct content)"
}

func channelNames(job *domain.NotificationJob) []string {
	var out []string
	for ch := range job.Channels {
		out = append(out, string(ch))
	}
	sort.Strings(out)
	return out
}

func recipientLabels(recipients []domain.Recipient) []string {
	var out []string
	for _, rec := range recipients {
		if rec.Email != "" {
			out = append(out, rec.Email)
		} else if rec.Phone != "" {
			out = append(out, rec.Phone)
		}
	}
	if len(out) == 0 {
		return []string{"(none)"}
	}
	return out
}
