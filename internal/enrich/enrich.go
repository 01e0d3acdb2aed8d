// Package enrich declares the shape of an external metadata-enrichment
// lookup (MusicBrainz and ListenBrainz-style submit-listen), grounded on
// the teacher's internal/services/musicbrainz.go. Nothing in the scan
// or streaming path invokes a concrete implementation synchronously;
// the interface exists so a future job handler can enqueue enrichment
// work without reaching back into internal/library or internal/scanner.
package enrich

import "context"

// Lookup resolves a single entity (artist, release, recording) to its
// canonical MusicBrainz id, given whatever identifying info is already
// on file (name, an existing but unconfirmed id).
type Lookup interface {
	Resolve(ctx context.Context, entity, query string) (mbid string, err error)
}

// ListenSubmitter reports a completed playback to an external scrobble
// service (e.g. ListenBrainz); implementations must treat a missing
// credential as a silent no-op rather than an error, matching the
// teacher's ListenBrainzService.SubmitListen behavior.
type ListenSubmitter interface {
	SubmitListen(ctx context.Context, artist, track string, listenedAtUnix int64) error
}
