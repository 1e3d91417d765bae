package render

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"path"
	"strings"
	"time"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true,
}

// helperFuncs is the fixed helper library available to every template.
// All helpers are pure: identical inputs yield identical output.
func helperFuncs() map[string]any {
	return map[string]any{
		"formatDate":     formatDate,
		"formatPhone":    formatPhone,
		"urgencyColor":   urgencyColor,
		"urgencyLabel":   urgencyLabel,
		"yesNo":          yesNo,
		"fileThumbnails": fileThumbnails,
		"default":        defaultValue,
		"join":           joinValues,
		"parseJSON":      parseJSON,
		"encodeURI":      url.QueryEscape,
	}
}

// formatDate renders a time.Time or an RFC 3339 / date-only string as a
// human-readable date. Unparseable input passes through unchanged.
func formatDate(v any) string {
	switch d := v.(type) {
	case time.Time:
		return d.Format("January 2, 2006")
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t.Format("January 2, 2006")
			}
		}
		return d
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// formatPhone renders a bare 10-digit number as (555) 123-4567 and an
// 11-digit 1-prefixed number as +1 (555) 123-4567. Anything else passes
// through unchanged.
func formatPhone(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)

	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}
	return s
}

func urgencyColor(urgency string) string {
	switch strings.ToLower(urgency) {
	case "urgent", "high":
		return "#d9534f"
	case "medium", "normal":
		return "#f0ad4e"
	case "low":
		return "#5cb85c"
	}
	return "#777777"
}

func urgencyLabel(urgency string) string {
	switch strings.ToLower(urgency) {
	case "urgent":
		return "Urgent"
	case "high":
		return "High Priority"
	case "medium", "normal":
		return "Standard"
	case "low":
		return "Low Priority"
	}
	return "Standard"
}

// yesNo normalizes booleans and common string/numeric truth values.
func yesNo(v any) string {
	switch b := v.(type) {
	case bool:
		if b {
			return "Yes"
		}
	case string:
		switch strings.ToLower(b) {
		case "true", "yes", "1":
			return "Yes"
		}
	case float64:
		if b != 0 {
			return "Yes"
		}
	case int:
		if b != 0 {
			return "Yes"
		}
	}
	return "No"
}

// fileThumbnails turns a list of file URLs into clickable thumbnail HTML.
// Images render inline, videos get a play badge, and anything else becomes
// a generic document link. Accepts a []string, a []any of strings, or a
// JSON-encoded array string; other input renders nothing.
func fileThumbnails(v any) htmltemplate.HTML {
	urls := toStringSlice(v)
	if len(urls) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div style="display:flex;flex-wrap:wrap;gap:8px;">`)
	for _, u := range urls {
		escaped := htmltemplate.HTMLEscapeString(u)
		ext := strings.ToLower(path.Ext(stripQuery(u)))
		switch {
		case imageExtensions[ext]:
			fmt.Fprintf(&sb,
				`<a href="%s"><img src="%s" alt="attachment" style="width:96px;height:96px;object-fit:cover;border-radius:4px;"/></a>`,
				escaped, escaped)
		case videoExtensions[ext]:
			fmt.Fprintf(&sb,
				`<a href="%s" style="display:inline-block;width:96px;height:96px;line-height:96px;text-align:center;background:#333;color:#fff;border-radius:4px;text-decoration:none;">&#9658; video</a>`,
				escaped)
		default:
			fmt.Fprintf(&sb,
				`<a href="%s" style="display:inline-block;width:96px;height:96px;line-height:96px;text-align:center;background:#eee;color:#333;border-radius:4px;text-decoration:none;">&#128196; file</a>`,
				escaped)
		}
	}
	sb.WriteString(`</div>`)
	return htmltemplate.HTML(sb.String())
}

// defaultValue is used pipeline-style: {{.customer.name | default "there"}}.
// The piped value arrives last, so the fallback is the first argument.
func defaultValue(fallback, v any) any {
	switch val := v.(type) {
	case nil:
		return fallback
	case string:
		if val == "" {
			return fallback
		}
	}
	return v
}

func joinValues(sep string, v any) string {
	return strings.Join(toStringSlice(v), sep)
}

// parseJSON decodes embedded JSON strings so templates can address their
// fields. Invalid JSON yields nil, which downstream lookups render empty.
func parseJSON(s string) any {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func toStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var decoded []string
		if err := json.Unmarshal([]byte(list), &decoded); err == nil {
			return decoded
		}
	}
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
