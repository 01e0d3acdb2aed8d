package tagext

import (
	"strconv"
	"strings"
)

// parseDate parses a flexible date string into (year, month, day),
// accepting full Y-M-D, Y-M, or bare Y forms using '-', '/' or '.' as
// the component separator, and tolerating trailing garbage after a
// complete form (e.g. "2004-03-02T00:00:00Z"). Ambiguous partials like
// "2000-31" (a two-digit second component that cannot be a valid month)
// are rejected rather than guessed at, per original_source's date
// grammar (nghe-backend/src/file/audio/date.rs).
func parseDate(raw string) (year, month, day *int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil, false
	}

	sep := ""
	for _, s := range []string{"-", "/", "."} {
		if strings.Contains(raw, s) {
			sep = s
			break
		}
	}

	if sep == "" {
		y, valid := parseYear(raw)
		if !valid {
			return nil, nil, nil, false
		}
		return &y, nil, nil, true
	}

	parts := strings.SplitN(raw, sep, 3)
	yr, valid := parseYear(parts[0])
	if !valid {
		return nil, nil, nil, false
	}

	if len(parts) == 1 {
		return &yr, nil, nil, true
	}

	mo, validMo := parseComponent(parts[1], 1, 12)
	if !validMo {
		return nil, nil, nil, false
	}

	if len(parts) == 2 {
		return &yr, &mo, nil, true
	}

	// Trailing garbage after the day component is tolerated (e.g. a
	// trailing "T00:00:00Z"); only the leading numeric run matters.
	dayStr := leadingDigits(parts[2])
	dy, validDy := parseComponent(dayStr, 1, 31)
	if !validDy {
		return nil, nil, nil, false
	}

	return &yr, &mo, &dy, true
}

func parseYear(s string) (int, bool) {
	digits := leadingDigits(s)
	if len(digits) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(digits)
	if err != nil || y < 1000 || y > 9999 {
		return 0, false
	}
	return y, true
}

func parseComponent(s string, min, max int) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
