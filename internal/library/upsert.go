package library

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/tagext"
)

// Store is the single entry point for both the upsert engine and the
// query layer; both halves share the *database.DB connection and the
// artist-index configuration.
type Store struct {
	db              Querier
	ignoredArticles []string
}

// Querier is satisfied by both *database.DB and a pgx.Tx, so upsert
// helpers can run either standalone or inside the per-song transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func New(db Querier, ignoredArticles []string) *Store {
	return &Store{db: db, ignoredArticles: ignoredArticles}
}

// WithTx returns a Store bound to an in-progress transaction, used by
// the scanner for the per-song atomic upsert.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx, ignoredArticles: s.ignoredArticles}
}

// UpsertArtist inserts or refreshes an artist row keyed by
// (name, musicbrainz_id). A new artist starts with index '?'; the
// scanner rebuilds real indexes in a pass after the scan walk completes.
//
// Per DESIGN.md's Open Question decision: a non-null existing
// musicbrainz_id is never overwritten by a null one from this upsert,
// but is replaced when the new value is itself non-null and different.
func (s *Store) UpsertArtist(ctx context.Context, name, sortName, mbid string) (int64, error) {
	if name == "" {
		return 0, apperr.New(apperr.KindInvalidParameter, "artist name must not be empty")
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO artists (name, sort_name, musicbrainz_id, index, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), '?', now(), now())
		ON CONFLICT (name, musicbrainz_id) DO UPDATE SET
			sort_name = EXCLUDED.sort_name,
			musicbrainz_id = COALESCE(NULLIF(EXCLUDED.musicbrainz_id, ''), artists.musicbrainz_id),
			updated_at = now()
		RETURNING id
	`, name, sortName, mbid).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert artist", err)
	}
	return id, nil
}

func (s *Store) UpsertAlbum(ctx context.Context, folderID int64, name, sortName, mbid string, year, month, day *int) (int64, error) {
	if name == "" {
		return 0, apperr.New(apperr.KindInvalidParameter, "album name must not be empty")
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO albums (music_folder_id, name, sort_name, musicbrainz_id, year, month, day, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, now(), now())
		ON CONFLICT (music_folder_id, name, musicbrainz_id) DO UPDATE SET
			sort_name = EXCLUDED.sort_name,
			year = EXCLUDED.year,
			month = EXCLUDED.month,
			day = EXCLUDED.day,
			musicbrainz_id = COALESCE(NULLIF(EXCLUDED.musicbrainz_id, ''), albums.musicbrainz_id),
			updated_at = now()
		RETURNING id
	`, folderID, name, sortName, mbid, year, month, day).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert album", err)
	}
	return id, nil
}

// SongUpsertInput bundles a song's scanned facts; RelativePath together
// with MusicFolderID is the song's natural key.
type SongUpsertInput struct {
	MusicFolderID int64
	RelativePath  string
	AlbumID       *int64
	Metadata      tagext.Metadata
	Duration      float64
	Bitrate       int
	SampleRate    int
	Channels      int
	Format        string
	FileSize      int64
	FileHash      uint64
	FileModified  time.Time
}

func (s *Store) UpsertSong(ctx context.Context, in SongUpsertInput) (int64, error) {
	md := in.Metadata
	title := md.Title
	if title == "" {
		return 0, apperr.New(apperr.KindMediaParse, fmt.Sprintf("song %s has no title", in.RelativePath))
	}

	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO songs (
			music_folder_id, relative_path, album_id, title, sort_title, musicbrainz_id,
			track_number, disc_number, disc_subtitle, duration, bitrate, sample_rate,
			channels, format, file_size, file_hash, file_modified, compilation,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NULLIF($6, ''),
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			now(), now()
		)
		ON CONFLICT (music_folder_id, relative_path) DO UPDATE SET
			album_id = EXCLUDED.album_id,
			title = EXCLUDED.title,
			sort_title = EXCLUDED.sort_title,
			musicbrainz_id = COALESCE(NULLIF(EXCLUDED.musicbrainz_id, ''), songs.musicbrainz_id),
			track_number = EXCLUDED.track_number,
			disc_number = EXCLUDED.disc_number,
			disc_subtitle = EXCLUDED.disc_subtitle,
			duration = EXCLUDED.duration,
			bitrate = EXCLUDED.bitrate,
			sample_rate = EXCLUDED.sample_rate,
			channels = EXCLUDED.channels,
			format = EXCLUDED.format,
			file_size = EXCLUDED.file_size,
			file_hash = EXCLUDED.file_hash,
			file_modified = EXCLUDED.file_modified,
			compilation = EXCLUDED.compilation,
			updated_at = now()
		RETURNING id
	`,
		in.MusicFolderID, in.RelativePath, in.AlbumID, title, sortTitleOf(title), md.MusicBrainzID,
		md.TrackNumber, md.DiscNumber, md.DiscSubtitle, in.Duration, in.Bitrate, in.SampleRate,
		in.Channels, in.Format, in.FileSize, int64(in.FileHash), in.FileModified, md.Compilation,
	).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert song", err)
	}
	return id, nil
}

// sortTitleOf returns the title unchanged as the song's sort title; it
// does not strip leading articles or derive a locale-aware sort key.
func sortTitleOf(title string) string {
	return title
}

// SyncSongArtists upserts the song's artist edges at position order and
// removes any edge not present in this scan (the per-song cleanup step).
func (s *Store) SyncSongArtists(ctx context.Context, songID int64, artistIDs []int64, scanStartedAt time.Time) error {
	return s.syncEdges(ctx, "song_artists", "artist_id", songID, artistIDs, scanStartedAt)
}

// SyncSongAlbumArtists upserts the song's album-artist edges, plus, when
// compilationArtistIDs is non-empty (the song is compilation-effective
// per tagext.Normalize), the song's own artists as extra edges flagged
// compilation=true. The real album-artist edges are written second, so
// any artist id present in both sets lands with compilation=false: the
// "true" row for that pair is overwritten by the later, authoritative
// write. Any edge not touched by either set is removed.
func (s *Store) SyncSongAlbumArtists(ctx context.Context, songID int64, albumArtistIDs []int64, compilationArtistIDs []int64, scanStartedAt time.Time) error {
	for pos, id := range compilationArtistIDs {
		if err := s.upsertSongAlbumArtist(ctx, songID, id, pos, true, scanStartedAt); err != nil {
			return err
		}
	}
	for pos, id := range albumArtistIDs {
		if err := s.upsertSongAlbumArtist(ctx, songID, id, pos, false, scanStartedAt); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM song_album_artists WHERE song_id = $1 AND upserted_at < $2`, songID, scanStartedAt); err != nil {
		return apperr.Wrap(apperr.KindIO, "cleanup song_album_artists", err)
	}
	return nil
}

func (s *Store) upsertSongAlbumArtist(ctx context.Context, songID, artistID int64, position int, compilation bool, scanStartedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO song_album_artists (song_id, artist_id, position, compilation, upserted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (song_id, artist_id) DO UPDATE SET
			position = EXCLUDED.position,
			compilation = EXCLUDED.compilation,
			upserted_at = EXCLUDED.upserted_at
	`, songID, artistID, position, compilation, scanStartedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "upsert song_album_artists", err)
	}
	return nil
}

func (s *Store) SyncSongGenres(ctx context.Context, songID int64, genreIDs []int64, scanStartedAt time.Time) error {
	return s.syncEdges(ctx, "song_genres", "genre_id", songID, genreIDs, scanStartedAt)
}

func (s *Store) syncEdges(ctx context.Context, table, col string, songID int64, ids []int64, scanStartedAt time.Time) error {
	for pos, id := range ids {
		q := fmt.Sprintf(`
			INSERT INTO %s (song_id, %s, position, upserted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (song_id, %s) DO UPDATE SET position = EXCLUDED.position, upserted_at = EXCLUDED.upserted_at
		`, table, col, col)
		if _, err := s.db.Exec(ctx, q, songID, id, pos, scanStartedAt); err != nil {
			return apperr.Wrap(apperr.KindIO, fmt.Sprintf("sync %s", table), err)
		}
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE song_id = $1 AND upserted_at < $2`, table)
	if _, err := s.db.Exec(ctx, del, songID, scanStartedAt); err != nil {
		return apperr.Wrap(apperr.KindIO, fmt.Sprintf("cleanup %s", table), err)
	}
	return nil
}

func (s *Store) UpsertGenre(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO genres (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert genre", err)
	}
	return id, nil
}

func (s *Store) UpsertCoverArt(ctx context.Context, hash uint64, size int64, format string, data []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO cover_art (hash, size, format, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash, size, format) DO UPDATE SET hash = EXCLUDED.hash
		RETURNING id
	`, int64(hash), size, format, data).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert cover art", err)
	}
	return id, nil
}

type LyricUpsertInput struct {
	SongID      int64
	Description string
	Language    string
	External    bool
	Synced      bool
	Content     string
}

func (s *Store) UpsertLyric(ctx context.Context, in LyricUpsertInput) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO lyrics (song_id, description, language, external, synced, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (song_id, description, language, external) DO UPDATE SET
			synced = EXCLUDED.synced,
			content = EXCLUDED.content
		RETURNING id
	`, in.SongID, in.Description, in.Language, in.External, in.Synced, in.Content).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "upsert lyric", err)
	}
	return id, nil
}

// TouchSong bumps updated_at without changing any other column, so an
// unchanged file still survives GlobalCleanup's "not seen this scan"
// sweep.
func (s *Store) TouchSong(ctx context.Context, songID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE songs SET updated_at = now() WHERE id = $1`, songID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "touch song", err)
	}
	return nil
}

// SetSongCoverArt links a song to its content-addressed cover art row,
// set after the row exists since the cover art id is only known once
// UpsertCoverArt has run.
func (s *Store) SetSongCoverArt(ctx context.Context, songID int64, coverArtID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE songs SET cover_art_id = $2 WHERE id = $1`, songID, coverArtID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "set song cover art", err)
	}
	return nil
}

// CleanupSong is the final per-song step: drop any cover art a song no
// longer references and was the only referent of (kept generic; actual
// cover-art retention is handled at the global-cleanup level below,
// since covers are shared across songs/albums/artists by content hash).
func (s *Store) CleanupSong(ctx context.Context, songID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM lyrics WHERE song_id = $1 AND external = false AND song_id NOT IN (SELECT id FROM songs WHERE id = $1)`, songID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "cleanup song", err)
	}
	return nil
}

// GlobalCleanup removes, in FK-safe order, every row in folderID that
// was not touched (upserted_at / updated_at stamped) by scanStartedAt:
// songs, then albums left with no songs, then artists left with no
// albums or song credits, then genres left with no songs.
func (s *Store) GlobalCleanup(ctx context.Context, folderID int64, scanStartedAt time.Time) error {
	steps := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM songs WHERE music_folder_id = $1 AND updated_at < $2`, []interface{}{folderID, scanStartedAt}},
		{`DELETE FROM albums WHERE music_folder_id = $1 AND updated_at < $2 AND id NOT IN (SELECT DISTINCT album_id FROM songs WHERE album_id IS NOT NULL)`, []interface{}{folderID, scanStartedAt}},
		// Artists and genres are shared across folders, so their sweep
		// has no folder/timestamp predicate: it just drops whichever
		// rows no longer have any referencing song after the two
		// folder-scoped deletes above.
		{`DELETE FROM artists WHERE id NOT IN (SELECT DISTINCT artist_id FROM song_artists) AND id NOT IN (SELECT DISTINCT artist_id FROM song_album_artists)`, nil},
		{`DELETE FROM genres WHERE id NOT IN (SELECT DISTINCT genre_id FROM song_genres)`, nil},
	}
	for _, step := range steps {
		if _, err := s.db.Exec(ctx, step.query, step.args...); err != nil {
			return apperr.Wrap(apperr.KindIO, "global cleanup", err)
		}
	}
	return nil
}
