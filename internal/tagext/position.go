package tagext

import (
	"strconv"
	"strings"
)

// parsePosition parses a track or disc position field in one of two
// shapes:
//   - a bare number:       "7"
//   - a combined "n/t":    "7/12" -> number=7, total=12
//
// It does not decode the vinyl letter+number form ("A3", "B10");
// parseVinylPosition below does, and the id3v2 and vorbis extractors
// call only parsePosition.
func parsePosition(raw string) (number *int, total *int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		n, okN := atoiPtr(raw[:idx])
		t, okT := atoiPtr(raw[idx+1:])
		if okN {
			number = n
		}
		if okT {
			total = t
		}
		return number, total
	}
	n, ok := atoiPtr(raw)
	if ok {
		number = n
	}
	return number, nil
}

// parseVinylPosition decodes a leading-letter position like "A3" or
// "B10" into (discNumber, trackNumber). Returns ok=false when raw does
// not start with a single ASCII letter followed by digits.
func parseVinylPosition(raw string) (discNumber, trackNumber int, ok bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return 0, 0, false
	}
	letter := raw[0]
	if letter < 'A' || letter > 'Z' {
		if letter >= 'a' && letter <= 'z' {
			letter -= 'a' - 'A'
		} else {
			return 0, 0, false
		}
	}
	rest := raw[1:]
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, 0, false
	}
	return int(letter-'A') + 1, n, true
}

func atoiPtr(s string) (*int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &v, true
}
