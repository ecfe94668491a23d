// Package strings holds small string-slice helpers shared across contexts.
package strings

// Dedupe returns values with duplicates removed, preserving first-seen order.
// Used for product selections and document type sets where callers may repeat
// entries.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
