package router

// MaxChunk is the per-message ceiling used for every outbound text.
const MaxChunk = 3000

// Chunk splits text into pieces of at most limit runes, re-slicing the tail
// after each piece. Empty text yields no pieces.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}
	var out []string
	rest := []rune(text)
	for len(rest) > limit {
		out = append(out, string(rest[:limit]))
		rest = rest[limit:]
	}
	if len(rest) > 0 {
		out = append(out, string(rest))
	}
	return out
}
