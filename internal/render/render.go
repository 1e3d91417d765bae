// Package render binds signal payloads to notification templates.
//
// Rendering is a deterministic pure function of (template, payload): the
// same inputs always produce byte-identical output. Missing payload fields
// render as empty strings, never as errors. A reference to an unregistered
// helper is a template-compilation error and fails the affected job only.
package render

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"unicode/utf8"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// SMSMaxLength is the short-message fallback budget when no SMS-specific
// template variant exists.
const SMSMaxLength = 160

// Content is the per-channel output of a render pass.
type Content struct {
	Subject     string
	HTMLContent string
	TextContent string
}

// Renderer compiles and executes templates with the fixed helper library.
type Renderer struct {
	funcs map[string]any
}

func NewRenderer() *Renderer {
	return &Renderer{funcs: helperFuncs()}
}

// Render produces subject, HTML, and plain-text content for a template and
// payload. The payload is reshaped into the stable namespaces templates
// address before binding.
func (r *Renderer) Render(tmpl *domain.NotificationTemplate, payload map[string]any) (Content, error) {
	data := Reshape(payload)

	subject, err := r.renderText("subject", tmpl.Subject, data)
	if err != nil {
		return Content{}, fmt.Errorf("render subject of template %s: %w", tmpl.ID, err)
	}
	html, err := r.renderHTML(tmpl.ID, tmpl.HTMLContent, data)
	if err != nil {
		return Content{}, fmt.Errorf("render html of template %s: %w", tmpl.ID, err)
	}
	text, err := r.renderText("text", tmpl.TextContent, data)
	if err != nil {
		return Content{}, fmt.Errorf("render text of template %s: %w", tmpl.ID, err)
	}

	return Content{Subject: subject, HTMLContent: html, TextContent: text}, nil
}

func (r *Renderer) renderText(name, source string, data map[string]any) (string, error) {
	t, err := texttemplate.New(name).
		Funcs(texttemplate.FuncMap(r.funcs)).
		Option("missingkey=zero").
		Parse(source)
	if err != nil {
		return "", fmt.Errorf("compile: %w", err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return scrubMissing(sb.String()), nil
}

func (r *Renderer) renderHTML(name, source string, data map[string]any) (string, error) {
	t, err := htmltemplate.New(name).
		Funcs(htmltemplate.FuncMap(r.funcs)).
		Option("missingkey=zero").
		Parse(source)
	if err != nil {
		return "", fmt.Errorf("compile: %w", err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return scrubMissing(sb.String()), nil
}

// scrubMissing blanks the placeholder text/template emits for absent map
// keys, so a missing field renders as an empty string. html/template
// escapes the placeholder, so both forms are scrubbed.
func scrubMissing(s string) string {
	s = strings.ReplaceAll(s, "<no value>", "")
	return strings.ReplaceAll(s, "&lt;no value&gt;", "")
}

// SMSFallback truncates the primary template's plain-text output to the
// short-message budget. Used when no SMS-specific variant exists.
// Truncation counts runes, not bytes, so multibyte text stays valid UTF-8.
func SMSFallback(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= SMSMaxLength {
		return text
	}
	return string([]rune(text)[:SMSMaxLength])
}
