package prediction

import "strings"

const maxTags = 6

func isTagSeparator(r rune) bool {
	return r == '/' || r == '|' || r == ','
}

// SplitTags splits evidence on '/', '|' and ',' and drops case-insensitive
// duplicates, keeping first-seen order and at most six tags.
func SplitTags(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.FieldsFunc(raw, isTagSeparator) {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// FormatTags renders SplitTags for display; empty evidence renders as "".
func FormatTags(raw string) string {
	tags := SplitTags(raw)
	if len(tags) == 0 {
		return ""
	}
	return "🔥 " + strings.Join(tags, " · ")
}
