package render

import (
	"strings"
	"unicode"
)

// namespaces are the stable top-level groups templates address, regardless
// of the raw event's flat field names: {{.customer.email}} works whether
// the event carried "customerEmail" or a nested customer object.
var namespaces = []string{
	"customer", "property", "project", "agent", "business", "contact", "admin",
}

// Reshape converts a flat event payload into the namespaced structure
// templates bind against.
//
// Rules, applied in order:
//   - every namespace key exists in the output, at minimum as an empty map,
//     so template paths into a namespace never fail to resolve;
//   - a payload key that IS a namespace name with a map value is merged
//     into that namespace as-is;
//   - a camel-cased payload key starting with a namespace name
//     ("customerEmail") is folded into the namespace under the lowercased
//     remainder ("email");
//   - everything else is carried through at the top level unchanged, and
//     the complete raw payload stays available under "event".
func Reshape(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+len(namespaces)+1)

	ns := make(map[string]map[string]any, len(namespaces))
	for _, name := range namespaces {
		ns[name] = map[string]any{}
		out[name] = ns[name]
	}

	for key, value := range payload {
		if m, ok := value.(map[string]any); ok {
			if group, isNS := ns[key]; isNS {
				for k, v := range m {
					group[k] = v
				}
				continue
			}
		}

		if name, rest, ok := splitNamespaceKey(key); ok {
			ns[name][rest] = value
			continue
		}

		out[key] = value
	}

	out["event"] = payload
	return out
}

// splitNamespaceKey splits "customerEmail" into ("customer", "email", true).
// The remainder must start with an uppercase letter so that keys like
// "customers" are not misfiled.
func splitNamespaceKey(key string) (name, rest string, ok bool) {
	for _, prefix := range namespaces {
		if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
			continue
		}
		tail := key[len(prefix):]
		r := rune(tail[0])
		if !unicode.IsUpper(r) {
			continue
		}
		return prefix, string(unicode.ToLower(r)) + tail[1:], true
	}
	return "", "", false
}
