// Package playlist implements playlist CRUD and collaborator
// permissions, grounded on the teacher's services/playlist.go +
// handlers/playlist.go Store{db}/ownership-check idiom.
package playlist

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/models"
)

type Store struct {
	db library.Querier
}

func New(db library.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, ownerID int64, name, comment string, public bool) (int64, error) {
	if name == "" {
		return 0, apperr.New(apperr.KindInvalidParameter, "playlist name must not be empty")
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO playlists (owner_id, name, comment, public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id
	`, ownerID, name, comment, public).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "create playlist", err)
	}
	return id, nil
}

// canView reports whether userID may read playlistID: owner, public,
// or an explicit collaborator grant (view or edit).
func (s *Store) canView(ctx context.Context, userID, playlistID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM playlists WHERE id = $1 AND (owner_id = $2 OR public = true)
			UNION
			SELECT 1 FROM playlist_users WHERE playlist_id = $1 AND user_id = $2
		)
	`, playlistID, userID).Scan(&ok)
	if err != nil {
		return false, apperr.Wrap(apperr.KindIO, "check playlist view permission", err)
	}
	return ok, nil
}

// canEdit reports whether userID may mutate playlistID: owner, or a
// collaborator explicitly granted CanEdit.
func (s *Store) canEdit(ctx context.Context, userID, playlistID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM playlists WHERE id = $1 AND owner_id = $2
			UNION
			SELECT 1 FROM playlist_users WHERE playlist_id = $1 AND user_id = $2 AND can_edit = true
		)
	`, playlistID, userID).Scan(&ok)
	if err != nil {
		return false, apperr.Wrap(apperr.KindIO, "check playlist edit permission", err)
	}
	return ok, nil
}

func (s *Store) Get(ctx context.Context, userID, playlistID int64) (*models.Playlist, error) {
	allowed, err := s.canView(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.New(apperr.KindForbidden, "no access to this playlist")
	}

	var p models.Playlist
	err = s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, comment, public, created_at, updated_at FROM playlists WHERE id = $1
	`, playlistID).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Comment, &p.Public, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "playlist not found", err)
	}
	return &p, nil
}

// List returns every playlist userID may view: owned, public, or
// shared with them as a collaborator.
func (s *Store) List(ctx context.Context, userID int64) ([]models.Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT p.id, p.owner_id, p.name, p.comment, p.public, p.created_at, p.updated_at
		FROM playlists p
		LEFT JOIN playlist_users pu ON pu.playlist_id = p.id AND pu.user_id = $1
		WHERE p.owner_id = $1 OR p.public = true OR pu.user_id IS NOT NULL
		ORDER BY p.name
	`, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "list playlists", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Comment, &p.Public, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan playlist", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, userID, playlistID int64, name, comment *string, public *bool) error {
	allowed, err := s.canEdit(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.New(apperr.KindForbidden, "no edit access to this playlist")
	}
	_, err = s.db.Exec(ctx, `
		UPDATE playlists SET
			name = COALESCE($2, name),
			comment = COALESCE($3, comment),
			public = COALESCE($4, public),
			updated_at = now()
		WHERE id = $1
	`, playlistID, name, comment, public)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "update playlist", err)
	}
	return nil
}

// Delete removes a playlist; only the owner may delete it, unlike
// Update which collaborators with CanEdit may also perform.
func (s *Store) Delete(ctx context.Context, userID, playlistID int64) error {
	var ownerID int64
	if err := s.db.QueryRow(ctx, `SELECT owner_id FROM playlists WHERE id = $1`, playlistID).Scan(&ownerID); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "playlist not found", err)
	}
	if ownerID != userID {
		return apperr.New(apperr.KindForbidden, "only the owner may delete this playlist")
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, playlistID); err != nil {
		return apperr.Wrap(apperr.KindIO, "delete playlist", err)
	}
	return nil
}

// GetSongs returns the playlist's songs in position order.
func (s *Store) GetSongs(ctx context.Context, userID, playlistID int64) ([]models.Song, error) {
	allowed, err := s.canView(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.New(apperr.KindForbidden, "no access to this playlist")
	}

	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.track_number, s.disc_number, s.duration, s.bitrate, s.sample_rate, s.channels,
		       s.format, s.file_size, s.compilation
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		WHERE ps.playlist_id = $1
		ORDER BY ps.position
	`, playlistID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get playlist songs", err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		var sg models.Song
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&sg.TrackNumber, &sg.DiscNumber, &sg.Duration, &sg.Bitrate, &sg.SampleRate, &sg.Channels,
			&sg.Format, &sg.FileSize, &sg.Compilation); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan playlist song", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// AddSongs appends songIDs to the end of the playlist in the given order.
func (s *Store) AddSongs(ctx context.Context, userID, playlistID int64, songIDs []int64) error {
	allowed, err := s.canEdit(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.New(apperr.KindForbidden, "no edit access to this playlist")
	}

	var nextPos int
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_songs WHERE playlist_id = $1`, playlistID).Scan(&nextPos); err != nil {
		return apperr.Wrap(apperr.KindIO, "find next position", err)
	}

	for i, songID := range songIDs {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES ($1, $2, $3)
		`, playlistID, songID, nextPos+i); err != nil {
			return apperr.Wrap(apperr.KindIO, "add song to playlist", err)
		}
	}
	return s.touch(ctx, playlistID)
}

// RemoveSongs deletes the given song ids from the playlist and
// compacts remaining positions so there are no gaps.
func (s *Store) RemoveSongs(ctx context.Context, userID, playlistID int64, songIDs []int64) error {
	allowed, err := s.canEdit(ctx, userID, playlistID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.New(apperr.KindForbidden, "no edit access to this playlist")
	}

	for _, songID := range songIDs {
		if _, err := s.db.Exec(ctx, `DELETE FROM playlist_songs WHERE playlist_id = $1 AND song_id = $2`, playlistID, songID); err != nil {
			return apperr.Wrap(apperr.KindIO, "remove song from playlist", err)
		}
	}
	if err := s.compactPositions(ctx, playlistID); err != nil {
		return err
	}
	return s.touch(ctx, playlistID)
}

func (s *Store) compactPositions(ctx context.Context, playlistID int64) error {
	rows, err := s.db.Query(ctx, `SELECT song_id FROM playlist_songs WHERE playlist_id = $1 ORDER BY position`, playlistID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "read playlist positions", err)
	}
	var songIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperr.Wrap(apperr.KindIO, "scan playlist position", err)
		}
		songIDs = append(songIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Wrap(apperr.KindIO, "iterate playlist positions", err)
	}

	for pos, id := range songIDs {
		if _, err := s.db.Exec(ctx, `UPDATE playlist_songs SET position = $3 WHERE playlist_id = $1 AND song_id = $2`, playlistID, id, pos); err != nil {
			return apperr.Wrap(apperr.KindIO, "compact playlist position", err)
		}
	}
	return nil
}

func (s *Store) touch(ctx context.Context, playlistID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE playlists SET updated_at = now() WHERE id = $1`, playlistID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "touch playlist", err)
	}
	return nil
}

// AddCollaborator grants a non-owner user view or edit access; only
// the owner may manage collaborators.
func (s *Store) AddCollaborator(ctx context.Context, ownerID, playlistID, collaboratorID int64, canEdit bool) error {
	var actualOwner int64
	if err := s.db.QueryRow(ctx, `SELECT owner_id FROM playlists WHERE id = $1`, playlistID).Scan(&actualOwner); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "playlist not found", err)
	}
	if actualOwner != ownerID {
		return apperr.New(apperr.KindForbidden, "only the owner may manage collaborators")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO playlist_users (playlist_id, user_id, can_edit) VALUES ($1, $2, $3)
		ON CONFLICT (playlist_id, user_id) DO UPDATE SET can_edit = EXCLUDED.can_edit
	`, playlistID, collaboratorID, canEdit)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "add playlist collaborator", err)
	}
	return nil
}

func (s *Store) RemoveCollaborator(ctx context.Context, ownerID, playlistID, collaboratorID int64) error {
	var actualOwner int64
	if err := s.db.QueryRow(ctx, `SELECT owner_id FROM playlists WHERE id = $1`, playlistID).Scan(&actualOwner); err != nil {
		return apperr.Wrap(apperr.KindNotFound, "playlist not found", err)
	}
	if actualOwner != ownerID {
		return apperr.New(apperr.KindForbidden, "only the owner may manage collaborators")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM playlist_users WHERE playlist_id = $1 AND user_id = $2`, playlistID, collaboratorID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "remove playlist collaborator", err)
	}
	return nil
}

// WithTx returns a Store bound to an in-progress transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}
