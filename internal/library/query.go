package library

import (
	"context"
	"fmt"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/models"
)

// ArtistID3 is the nested id3-style projection returned by GetArtist.
type ArtistID3 struct {
	models.Artist
	AlbumCount int
	Albums     []AlbumID3
}

type AlbumID3 struct {
	models.Album
	ArtistName string
	SongCount  int
	Songs      []models.Song
}

// GetArtists lists every artist visible to userID, optionally scoped to
// explicitFolderIDs, grouped by derived index for client-side indexing.
func (s *Store) GetArtists(ctx context.Context, userID int64, explicitFolderIDs []int64) ([]ArtistID3, error) {
	filter, args, _ := permissionFilter("al.music_folder_id", userID, explicitFolderIDs, 1)
	q := fmt.Sprintf(`
		SELECT ar.id, ar.name, ar.sort_name, ar.musicbrainz_id, ar.index,
		       COUNT(DISTINCT al.id) AS album_count
		FROM artists ar
		JOIN song_album_artists saa ON saa.artist_id = ar.id
		JOIN songs s ON s.id = saa.song_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE %s
		GROUP BY ar.id
		ORDER BY ar.sort_name
	`, filter)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get artists", err)
	}
	defer rows.Close()

	var out []ArtistID3
	for rows.Next() {
		var a ArtistID3
		var mbid *string
		if err := rows.Scan(&a.ID, &a.Name, &a.SortName, &mbid, &a.Index, &a.AlbumCount); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan artist", err)
		}
		if mbid != nil {
			a.MusicBrainzID = *mbid
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetArtist(ctx context.Context, userID int64, artistID int64, explicitFolderIDs []int64) (*ArtistID3, error) {
	filter, filterArgs, next := permissionFilter("al.music_folder_id", userID, explicitFolderIDs, 1)
	mainArgs := append(append([]interface{}{}, filterArgs...), artistID)

	q := fmt.Sprintf(`
		SELECT ar.id, ar.name, ar.sort_name, ar.musicbrainz_id, ar.index
		FROM artists ar
		JOIN song_album_artists saa ON saa.artist_id = ar.id
		JOIN songs s ON s.id = saa.song_id
		LEFT JOIN albums al ON al.id = s.album_id
		WHERE %s AND ar.id = $%d
		GROUP BY ar.id
	`, filter, next)
	var a ArtistID3
	var mbid *string
	err := s.db.QueryRow(ctx, q, mainArgs...).Scan(&a.ID, &a.Name, &a.SortName, &mbid, &a.Index)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "artist not found", err)
	}
	if mbid != nil {
		a.MusicBrainzID = *mbid
	}

	albums, err := s.getArtistAlbums(ctx, filter, filterArgs, artistID)
	if err != nil {
		return nil, err
	}
	a.Albums = albums
	a.AlbumCount = len(albums)
	return &a, nil
}

func (s *Store) getArtistAlbums(ctx context.Context, filter string, filterArgs []interface{}, artistID int64) ([]AlbumID3, error) {
	args := append(append([]interface{}{}, filterArgs...), artistID)
	q := fmt.Sprintf(`
		SELECT al.id, al.music_folder_id, al.name, al.sort_name, al.musicbrainz_id, al.year, al.month, al.day,
		       COUNT(s.id) AS song_count
		FROM albums al
		JOIN songs s ON s.album_id = al.id
		JOIN song_album_artists saa ON saa.song_id = s.id
		WHERE %s AND saa.artist_id = $%d
		GROUP BY al.id
		ORDER BY al.year NULLS LAST, al.name
	`, filter, len(args))

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get artist albums", err)
	}
	defer rows.Close()

	var out []AlbumID3
	for rows.Next() {
		var al AlbumID3
		var mbid *string
		if err := rows.Scan(&al.ID, &al.MusicFolderID, &al.Name, &al.SortName, &mbid, &al.Year, &al.Month, &al.Day, &al.SongCount); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan album", err)
		}
		if mbid != nil {
			al.MusicBrainzID = *mbid
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (s *Store) GetAlbum(ctx context.Context, userID int64, albumID int64, explicitFolderIDs []int64) (*AlbumID3, error) {
	filter, args, next := permissionFilter("al.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, albumID)

	q := fmt.Sprintf(`
		SELECT al.id, al.music_folder_id, al.name, al.sort_name, al.musicbrainz_id, al.year, al.month, al.day
		FROM albums al WHERE %s AND al.id = $%d
	`, filter, next)

	var a AlbumID3
	var mbid *string
	if err := s.db.QueryRow(ctx, q, args...).Scan(&a.ID, &a.MusicFolderID, &a.Name, &a.SortName, &mbid, &a.Year, &a.Month, &a.Day); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "album not found", err)
	}
	if mbid != nil {
		a.MusicBrainzID = *mbid
	}

	songs, err := s.GetAlbumSongs(ctx, userID, albumID, explicitFolderIDs)
	if err != nil {
		return nil, err
	}
	a.Songs = songs
	a.SongCount = len(songs)
	return &a, nil
}

func (s *Store) GetAlbumSongs(ctx context.Context, userID int64, albumID int64, explicitFolderIDs []int64) ([]models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, albumID)
	q := fmt.Sprintf(`
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.musicbrainz_id, s.track_number, s.disc_number, s.disc_subtitle, s.duration,
		       s.bitrate, s.sample_rate, s.channels, s.format, s.file_size, s.compilation
		FROM songs s
		WHERE %s AND s.album_id = $%d
		ORDER BY s.disc_number NULLS FIRST, s.track_number NULLS LAST, s.title
	`, filter, next)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get album songs", err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		var sg models.Song
		var mbid *string
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&mbid, &sg.TrackNumber, &sg.DiscNumber, &sg.DiscSubtitle, &sg.Duration,
			&sg.Bitrate, &sg.SampleRate, &sg.Channels, &sg.Format, &sg.FileSize, &sg.Compilation); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan song", err)
		}
		if mbid != nil {
			sg.MusicBrainzID = *mbid
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *Store) GetSong(ctx context.Context, userID int64, songID int64, explicitFolderIDs []int64) (*models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, songID)
	q := fmt.Sprintf(`
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.musicbrainz_id, s.track_number, s.disc_number, s.disc_subtitle, s.duration,
		       s.bitrate, s.sample_rate, s.channels, s.format, s.file_size, s.compilation
		FROM songs s WHERE %s AND s.id = $%d
	`, filter, next)

	var sg models.Song
	var mbid *string
	err := s.db.QueryRow(ctx, q, args...).Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
		&mbid, &sg.TrackNumber, &sg.DiscNumber, &sg.DiscSubtitle, &sg.Duration,
		&sg.Bitrate, &sg.SampleRate, &sg.Channels, &sg.Format, &sg.FileSize, &sg.Compilation)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "song not found", err)
	}
	if mbid != nil {
		sg.MusicBrainzID = *mbid
	}
	return &sg, nil
}

// GetSongByPath looks up a song by its natural key, unfiltered by
// permission (the scanner runs with full folder access). Returns
// apperr.KindNotFound when absent, which the scanner treats as "new file".
func (s *Store) GetSongByPath(ctx context.Context, folderID int64, relativePath string) (*models.Song, error) {
	var sg models.Song
	var mbid *string
	err := s.db.QueryRow(ctx, `
		SELECT id, music_folder_id, album_id, relative_path, title, sort_title, musicbrainz_id,
		       track_number, disc_number, disc_subtitle, duration, bitrate, sample_rate, channels,
		       format, file_size, file_hash, file_modified, compilation
		FROM songs WHERE music_folder_id = $1 AND relative_path = $2
	`, folderID, relativePath).Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle, &mbid,
		&sg.TrackNumber, &sg.DiscNumber, &sg.DiscSubtitle, &sg.Duration, &sg.Bitrate, &sg.SampleRate, &sg.Channels,
		&sg.Format, &sg.FileSize, &sg.FileHash, &sg.FileModified, &sg.Compilation)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "song not found", err)
	}
	if mbid != nil {
		sg.MusicBrainzID = *mbid
	}
	return &sg, nil
}

// GetUserByUsername satisfies auth.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_enc, email, is_admin, can_stream, can_download, can_share, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordEnc, &u.Email, &u.IsAdmin, &u.CanStream, &u.CanDownload, &u.CanShare, &u.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "user not found", err)
	}
	return &u, nil
}

func (s *Store) GetGenres(ctx context.Context, userID int64, explicitFolderIDs []int64) ([]models.Genre, error) {
	filter, args, _ := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	q := fmt.Sprintf(`
		SELECT g.id, g.name
		FROM genres g
		JOIN song_genres sg ON sg.genre_id = g.id
		JOIN songs s ON s.id = sg.song_id
		WHERE %s
		GROUP BY g.id
		ORDER BY g.name
	`, filter)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get genres", err)
	}
	defer rows.Close()
	var out []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan genre", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AlbumListMode selects the ordering of GetAlbumList.
type AlbumListMode string

const (
	AlbumListRandom              AlbumListMode = "random"
	AlbumListNewest              AlbumListMode = "newest"
	AlbumListRecent              AlbumListMode = "recent"
	AlbumListByYear              AlbumListMode = "byYear"
	AlbumListByGenre             AlbumListMode = "byGenre"
	AlbumListAlphabeticalByName  AlbumListMode = "alphabeticalByName"
)

type AlbumListQuery struct {
	Mode            AlbumListMode
	Size            int
	Offset          int
	FromYear        *int
	ToYear          *int
	Genre           string
	ExplicitFolders []int64
}

func (s *Store) GetAlbumList(ctx context.Context, userID int64, q AlbumListQuery) ([]models.Album, error) {
	filter, args, next := permissionFilter("al.music_folder_id", userID, q.ExplicitFolders, 1)

	join := ""
	extra := ""
	switch q.Mode {
	case AlbumListByGenre:
		join = "JOIN songs s2 ON s2.album_id = al.id JOIN song_genres sg2 ON sg2.song_id = s2.id JOIN genres g2 ON g2.id = sg2.genre_id"
		extra = fmt.Sprintf(" AND g2.name = $%d", next)
		args = append(args, q.Genre)
		next++
	case AlbumListByYear:
		if q.FromYear != nil {
			extra += fmt.Sprintf(" AND al.year >= $%d", next)
			args = append(args, *q.FromYear)
			next++
		}
		if q.ToYear != nil {
			extra += fmt.Sprintf(" AND al.year <= $%d", next)
			args = append(args, *q.ToYear)
			next++
		}
	}

	var order string
	switch q.Mode {
	case AlbumListRandom:
		order = "RANDOM()"
	case AlbumListNewest:
		order = "al.created_at DESC"
	case AlbumListRecent:
		order = "al.updated_at DESC"
	case AlbumListByYear:
		order = "al.year ASC NULLS LAST"
	case AlbumListAlphabeticalByName:
		order = "al.name ASC"
	default:
		order = "al.name ASC"
	}

	sizeArg, offsetArg := next, next+1
	args = append(args, q.Size, q.Offset)

	query := fmt.Sprintf(`
		SELECT DISTINCT al.id, al.music_folder_id, al.name, al.sort_name, al.musicbrainz_id, al.year, al.month, al.day
		FROM albums al
		%s
		WHERE %s%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, join, filter, extra, order, sizeArg, offsetArg)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get album list", err)
	}
	defer rows.Close()

	var out []models.Album
	for rows.Next() {
		var a models.Album
		var mbid *string
		if err := rows.Scan(&a.ID, &a.MusicFolderID, &a.Name, &a.SortName, &mbid, &a.Year, &a.Month, &a.Day); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan album", err)
		}
		if mbid != nil {
			a.MusicBrainzID = *mbid
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetRandomSongs(ctx context.Context, userID int64, size int, genre string, fromYear, toYear *int, explicitFolderIDs []int64) ([]models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	join := ""
	extra := ""
	if genre != "" {
		join = "JOIN song_genres sg ON sg.song_id = s.id JOIN genres g ON g.id = sg.genre_id"
		extra += fmt.Sprintf(" AND g.name = $%d", next)
		args = append(args, genre)
		next++
	}
	if fromYear != nil {
		join += " JOIN albums al2 ON al2.id = s.album_id"
		extra += fmt.Sprintf(" AND al2.year >= $%d", next)
		args = append(args, *fromYear)
		next++
	}
	if toYear != nil {
		if fromYear == nil {
			join += " JOIN albums al2 ON al2.id = s.album_id"
		}
		extra += fmt.Sprintf(" AND al2.year <= $%d", next)
		args = append(args, *toYear)
		next++
	}
	args = append(args, size)

	q := fmt.Sprintf(`
		SELECT DISTINCT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.track_number, s.disc_number, s.duration, s.format
		FROM songs s
		%s
		WHERE %s%s
		ORDER BY RANDOM()
		LIMIT $%d
	`, join, filter, extra, next)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get random songs", err)
	}
	defer rows.Close()
	var out []models.Song
	for rows.Next() {
		var sg models.Song
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&sg.TrackNumber, &sg.DiscNumber, &sg.Duration, &sg.Format); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan song", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *Store) GetSongsByGenre(ctx context.Context, userID int64, genre string, size, offset int, explicitFolderIDs []int64) ([]models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, genre, size, offset)
	q := fmt.Sprintf(`
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.track_number, s.disc_number, s.duration, s.format
		FROM songs s
		JOIN song_genres sg ON sg.song_id = s.id
		JOIN genres g ON g.id = sg.genre_id
		WHERE %s AND g.name = $%d
		ORDER BY s.title
		LIMIT $%d OFFSET $%d
	`, filter, next, next+1, next+2)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get songs by genre", err)
	}
	defer rows.Close()
	var out []models.Song
	for rows.Next() {
		var sg models.Song
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&sg.TrackNumber, &sg.DiscNumber, &sg.Duration, &sg.Format); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan song", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *Store) GetTopSongs(ctx context.Context, userID int64, artistName string, count int, explicitFolderIDs []int64) ([]models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, artistName, count)
	q := fmt.Sprintf(`
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.track_number, s.disc_number, s.duration, s.format,
		       COUNT(p.id) AS play_count
		FROM songs s
		JOIN song_artists sa ON sa.song_id = s.id
		JOIN artists ar ON ar.id = sa.artist_id
		LEFT JOIN playbacks p ON p.song_id = s.id
		WHERE %s AND ar.name = $%d
		GROUP BY s.id
		ORDER BY play_count DESC, s.title
		LIMIT $%d
	`, filter, next, next+1)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get top songs", err)
	}
	defer rows.Close()
	var out []models.Song
	for rows.Next() {
		var sg models.Song
		var playCount int
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&sg.TrackNumber, &sg.DiscNumber, &sg.Duration, &sg.Format, &playCount); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan song", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// AlphabeticalSearch is the empty-query fallback: alphabetical ordering
// over the permission-filtered base query, bypassing the search index
// entirely.
func (s *Store) AlphabeticalSearch(ctx context.Context, userID int64, size, offset int, explicitFolderIDs []int64) ([]models.Song, error) {
	filter, args, next := permissionFilter("s.music_folder_id", userID, explicitFolderIDs, 1)
	args = append(args, size, offset)
	q := fmt.Sprintf(`
		SELECT s.id, s.music_folder_id, s.album_id, s.relative_path, s.title, s.sort_title,
		       s.track_number, s.disc_number, s.duration, s.format
		FROM songs s
		WHERE %s
		ORDER BY s.sort_title
		LIMIT $%d OFFSET $%d
	`, filter, next, next+1)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "alphabetical search", err)
	}
	defer rows.Close()
	var out []models.Song
	for rows.Next() {
		var sg models.Song
		if err := rows.Scan(&sg.ID, &sg.MusicFolderID, &sg.AlbumID, &sg.RelativePath, &sg.Title, &sg.SortTitle,
			&sg.TrackNumber, &sg.DiscNumber, &sg.Duration, &sg.Format); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan song", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// PermittedFolderIDs returns every music folder userID has permission
// on, used by internal/search to post-filter bleve hits.
func (s *Store) PermittedFolderIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT music_folder_id FROM user_music_folder_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "get permitted folders", err)
	}
	defer rows.Close()
	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan folder id", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
