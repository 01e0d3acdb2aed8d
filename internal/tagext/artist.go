package tagext

import "strings"

// splitArtists splits a raw artist string on the dialect's configured
// separators, trimming whitespace and dropping empties. id3v2.4 adds a
// NUL separator on top of the configured ones (the spec behind the
// TPE1/TPE2 multi-value convention introduced in that revision);
// vorbis comments instead repeat the comment key for each value, which
// callers merge before this function ever runs.
func splitArtists(raw string, seps []string) []string {
	if raw == "" {
		return nil
	}
	parts := []string{raw}
	for _, sep := range seps {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeArtistValues merges multiple raw vorbis comment values for the
// same key (ARTIST appearing more than once) with any in-value
// separators already configured for the dialect.
func mergeArtistValues(values []string, seps []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, splitArtists(v, seps)...)
	}
	return out
}
