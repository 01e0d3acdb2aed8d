package library

import (
	"context"
	"time"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/auth"
	"github.com/nghego/nghego/internal/models"
)

// HasAnyUser reports whether the users table has at least one row,
// gating the one-shot setup endpoint.
func (s *Store) HasAnyUser(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users)`).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.KindIO, "check users table", err)
	}
	return exists, nil
}

// CreateUser inserts a new user with password encrypted under
// serverSecret. Returns KindInvalidParameter on an empty username, and
// KindInvalidParameter wrapping the insert error (a unique-violation on
// a duplicate username among them) when the insert fails.
func (s *Store) CreateUser(ctx context.Context, serverSecret, username, password, email string, isAdmin, canStream, canDownload, canShare bool) (int64, error) {
	if username == "" {
		return 0, apperr.New(apperr.KindInvalidParameter, "username must not be empty")
	}
	enc, err := auth.EncryptPassword(serverSecret, password)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "encrypt password", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (username, password_enc, email, is_admin, can_stream, can_download, can_share)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, username, enc, email, isAdmin, canStream, canDownload, canShare).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalidParameter, "create user", err)
	}
	return id, nil
}

// UpdateUser patches the fields of an existing user; a nil password
// leaves the stored credential untouched.
func (s *Store) UpdateUser(ctx context.Context, serverSecret string, userID int64, email string, password *string, isAdmin, canStream, canDownload, canShare bool) error {
	if password != nil {
		enc, err := auth.EncryptPassword(serverSecret, *password)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "encrypt password", err)
		}
		_, err = s.db.Exec(ctx, `
			UPDATE users SET email = $2, password_enc = $3, is_admin = $4, can_stream = $5, can_download = $6, can_share = $7
			WHERE id = $1
		`, userID, email, enc, isAdmin, canStream, canDownload, canShare)
		if err != nil {
			return apperr.Wrap(apperr.KindIO, "update user", err)
		}
		return nil
	}

	_, err := s.db.Exec(ctx, `
		UPDATE users SET email = $2, is_admin = $3, can_stream = $4, can_download = $5, can_share = $6
		WHERE id = $1
	`, userID, email, isAdmin, canStream, canDownload, canShare)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "update user", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}

// GrantFolderPermission adds (or no-ops on an existing) permission row.
func (s *Store) GrantFolderPermission(ctx context.Context, userID, folderID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_music_folder_permissions (user_id, music_folder_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, music_folder_id) DO NOTHING
	`, userID, folderID)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "grant folder permission", err)
	}
	return nil
}

// GetCoverArt fetches a stored cover image by its content-addressed id.
func (s *Store) GetCoverArt(ctx context.Context, coverArtID int64) (*models.CoverArt, error) {
	var c models.CoverArt
	err := s.db.QueryRow(ctx, `SELECT id, hash, size, format, data FROM cover_art WHERE id = $1`, coverArtID).
		Scan(&c.ID, &c.Hash, &c.Size, &c.Format, &c.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "cover art not found", err)
	}
	return &c, nil
}

// GetSongCoverArtID returns the cover art id a song resolves to,
// falling back to its album's cover when the song has none of its own.
func (s *Store) GetSongCoverArtID(ctx context.Context, songID int64) (int64, error) {
	var coverID *int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(s.cover_art_id, al.cover_art_id)
		FROM songs s
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE s.id = $1
	`, songID).Scan(&coverID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindNotFound, "song not found", err)
	}
	if coverID == nil {
		return 0, apperr.New(apperr.KindNotFound, "no cover art for song")
	}
	return *coverID, nil
}

// GetAlbumCoverArtID mirrors GetSongCoverArtID for an album.
func (s *Store) GetAlbumCoverArtID(ctx context.Context, albumID int64) (int64, error) {
	var coverID *int64
	err := s.db.QueryRow(ctx, `SELECT cover_art_id FROM albums WHERE id = $1`, albumID).Scan(&coverID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindNotFound, "album not found", err)
	}
	if coverID == nil {
		return 0, apperr.New(apperr.KindNotFound, "no cover art for album")
	}
	return *coverID, nil
}

// GetLyricsBySongID returns every lyric row (embedded first, then
// sidecar) attached to a song.
func (s *Store) GetLyricsBySongID(ctx context.Context, songID int64) ([]models.Lyric, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, song_id, description, language, external, synced, content
		FROM lyrics WHERE song_id = $1
		ORDER BY external ASC
	`, songID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get lyrics", err)
	}
	defer rows.Close()

	var out []models.Lyric
	for rows.Next() {
		var l models.Lyric
		if err := rows.Scan(&l.ID, &l.SongID, &l.Description, &l.Language, &l.External, &l.Synced, &l.Content); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan lyric", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecordPlayback inserts a scrobble row for a user/song pair. A nil
// playedAt defaults to the current time.
func (s *Store) RecordPlayback(ctx context.Context, userID, songID int64, playedAt *time.Time) error {
	var err error
	if playedAt != nil {
		_, err = s.db.Exec(ctx, `INSERT INTO playbacks (user_id, song_id, played_at) VALUES ($1, $2, $3)`, userID, songID, *playedAt)
	} else {
		_, err = s.db.Exec(ctx, `INSERT INTO playbacks (user_id, song_id, played_at) VALUES ($1, $2, NOW())`, userID, songID)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "record playback", err)
	}
	return nil
}
