package graphql

import "strings"

// Lookup walks a decoded response along a dotted path such as
// "tenants.nodes".
func Lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
