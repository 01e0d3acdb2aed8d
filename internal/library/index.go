package library

import (
	"context"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/tagext"
)

// RebuildArtistIndexes recomputes the derived Index character for every
// artist row still carrying the '?' not-yet-computed sentinel. It runs
// as a pass after the scan walk so new artists inserted mid-scan (in
// arbitrary file order) are indexed once, rather than once per insert.
func (s *Store) RebuildArtistIndexes(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM artists WHERE index = '?'`)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "select unindexed artists", err)
	}
	type pending struct {
		id   int64
		name string
	}
	var toIndex []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.KindIO, "scan unindexed artist", err)
		}
		toIndex = append(toIndex, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.KindIO, "iterate unindexed artists", err)
	}

	for _, p := range toIndex {
		idx := tagext.ArtistIndex(p.name, s.ignoredArticles)
		if _, err := s.db.Exec(ctx, `UPDATE artists SET index = $2 WHERE id = $1`, p.id, string(idx)); err != nil {
			return apperr.Wrap(apperr.KindIO, "update artist index", err)
		}
	}
	return nil
}
