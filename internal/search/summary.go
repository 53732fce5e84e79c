package search

import (
	"strings"
	"unicode/utf8"
)

// buildSummary extracts a window of content centered on the first query
// token occurrence and wraps every token occurrence in 【 and 】.
func buildSummary(content string, tokens []string, maxLen int) string {
	cleaned := sanitize(content)
	lowered := lowerASCII(cleaned)

	// earliest occurrence of any token decides the window center
	best := -1
	for _, token := range tokens {
		if pos := strings.Index(lowered, lowerASCII(token)); pos >= 0 {
			if best < 0 || pos < best {
				best = pos
			}
		}
	}

	start := 0
	if best > maxLen/2 {
		start = best - maxLen/2
	}
	end := start + maxLen
	if end > len(cleaned) {
		end = len(cleaned)
	}
	// snap window edges to codepoint boundaries
	for start > 0 && !utf8.RuneStart(cleaned[start]) {
		start--
	}
	for end < len(cleaned) && !utf8.RuneStart(cleaned[end]) {
		end++
	}

	summary := cleaned[start:end]
	summary = highlight(summary, tokens)
	if start > 0 {
		summary = "..." + summary
	}
	if end < len(cleaned) {
		summary = summary + "..."
	}
	return summary
}

// highlight wraps each token occurrence with 【】. Matching is
// case-insensitive over ASCII; the original casing is preserved.
func highlight(summary string, tokens []string) string {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		summary = wrapOccurrences(summary, token)
	}
	return summary
}

func wrapOccurrences(s, token string) string {
	lowered := lowerASCII(s)
	needle := lowerASCII(token)
	var b strings.Builder
	b.Grow(len(s) + 16)
	pos := 0
	for {
		idx := strings.Index(lowered[pos:], needle)
		if idx < 0 {
			b.WriteString(s[pos:])
			break
		}
		idx += pos
		b.WriteString(s[pos:idx])
		b.WriteString("【")
		b.WriteString(s[idx : idx+len(token)])
		b.WriteString("】")
		pos = idx + len(token)
	}
	return b.String()
}

// sanitize replaces codepoints outside the allow-set with a space. The
// allow-set covers printable ASCII, CJK ideographs (U+4E00..U+9FFF and
// U+3400..U+4DBF), CJK punctuation (U+3000..U+303F), halfwidth/fullwidth
// forms (U+FF00..U+FFEF), and the Latin-1 supplement (U+00A0..U+00FF).
func sanitize(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if allowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func allowed(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0x7E:
		return true
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0x3000 && r <= 0x303F:
		return true
	case r >= 0xFF00 && r <= 0xFFEF:
		return true
	case r >= 0x00A0 && r <= 0x00FF:
		return true
	default:
		return false
	}
}
