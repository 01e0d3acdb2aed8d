package tagext

import (
	"strings"
	"unicode"
)

// ArtistIndex derives the single-character library index for an artist
// name: configured leading articles (e.g. "the", "a", "an") are
// stripped, the first remaining rune is uppercased; ASCII letters pass
// through as themselves, digits become '#', any other non-letter
// becomes '*', and any other Unicode letter passes through unchanged.
// This is a pure function of (name, ignoredPrefixes), independent of
// locale or call order.
func ArtistIndex(name string, ignoredPrefixes []string) rune {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	for _, prefix := range ignoredPrefixes {
		p := strings.ToLower(strings.TrimSpace(prefix))
		if p == "" {
			continue
		}
		if strings.HasPrefix(lower, p+" ") {
			trimmed = strings.TrimSpace(trimmed[len(p):])
			break
		}
	}
	if trimmed == "" {
		return '*'
	}
	r := []rune(trimmed)[0]
	switch {
	case unicode.IsDigit(r):
		return '#'
	case unicode.IsLetter(r):
		if r <= unicode.MaxASCII {
			return unicode.ToUpper(r)
		}
		return r
	default:
		return '*'
	}
}
