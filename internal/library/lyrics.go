package library

import (
	"context"
	"strings"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/lyrics"
)

// DetectLyricLanguage re-derives the Language column for one lyric row
// from its stored content, used by the detect_lyric_language backfill
// job for rows scanned before language detection existed.
func (s *Store) DetectLyricLanguage(ctx context.Context, lyricID int64) error {
	var content string
	var synced bool
	err := s.db.QueryRow(ctx, `SELECT content, synced FROM lyrics WHERE id = $1`, lyricID).Scan(&content, &synced)
	if err != nil {
		return apperr.Wrap(apperr.KindNotFound, "lyric not found", err)
	}

	doc := &lyrics.Document{}
	if synced {
		for _, line := range strings.Split(content, "\n") {
			doc.Lines = append(doc.Lines, lyrics.Line{TimeMS: 1, Text: line})
		}
	} else {
		for _, line := range strings.Split(content, "\n") {
			doc.Lines = append(doc.Lines, lyrics.Line{Text: line})
		}
	}

	lang := doc.DetectLanguage()
	if _, err := s.db.Exec(ctx, `UPDATE lyrics SET language = $2 WHERE id = $1`, lyricID, lang); err != nil {
		return apperr.Wrap(apperr.KindIO, "update lyric language", err)
	}
	return nil
}
