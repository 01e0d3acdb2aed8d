package library

import (
	"context"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/models"
)

// StartScan inserts a running scan row for folderID and returns its id.
func (s *Store) StartScan(ctx context.Context, folderID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO scans (music_folder_id, started_at, status, files_seen, files_added, files_updated, files_removed, errors)
		VALUES ($1, now(), $2, 0, 0, 0, 0, 0)
		RETURNING id
	`, folderID, models.ScanStatusRunning).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "start scan", err)
	}
	return id, nil
}

// FinishScan stamps the final counters and status of a completed scan.
func (s *Store) FinishScan(ctx context.Context, scanID int64, status models.ScanStatus, seen, added, updated, removed, errs int, lastErr string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scans SET finished_at = now(), status = $2, files_seen = $3, files_added = $4,
		       files_updated = $5, files_removed = $6, errors = $7, last_error = $8
		WHERE id = $1
	`, scanID, status, seen, added, updated, removed, errs, lastErr)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "finish scan", err)
	}
	return nil
}

func (s *Store) GetScan(ctx context.Context, scanID int64) (*models.Scan, error) {
	var sc models.Scan
	err := s.db.QueryRow(ctx, `
		SELECT id, music_folder_id, started_at, finished_at, status, files_seen, files_added, files_updated, files_removed, errors, last_error
		FROM scans WHERE id = $1
	`, scanID).Scan(&sc.ID, &sc.MusicFolderID, &sc.StartedAt, &sc.FinishedAt, &sc.Status, &sc.FilesSeen, &sc.FilesAdded, &sc.FilesUpdated, &sc.FilesRemoved, &sc.Errors, &sc.LastError)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "scan not found", err)
	}
	return &sc, nil
}

// LatestScan returns the most recently started scan for a folder, if any.
func (s *Store) LatestScan(ctx context.Context, folderID int64) (*models.Scan, error) {
	var sc models.Scan
	err := s.db.QueryRow(ctx, `
		SELECT id, music_folder_id, started_at, finished_at, status, files_seen, files_added, files_updated, files_removed, errors, last_error
		FROM scans WHERE music_folder_id = $1 ORDER BY started_at DESC LIMIT 1
	`, folderID).Scan(&sc.ID, &sc.MusicFolderID, &sc.StartedAt, &sc.FinishedAt, &sc.Status, &sc.FilesSeen, &sc.FilesAdded, &sc.FilesUpdated, &sc.FilesRemoved, &sc.Errors, &sc.LastError)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "no scan found", err)
	}
	return &sc, nil
}

// MusicFolders and folder CRUD, grounded on the same Store so the API
// layer has one place to reach for both library reads and admin writes.
func (s *Store) ListMusicFolders(ctx context.Context) ([]models.MusicFolder, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, path, backend, watch, created_at FROM music_folders ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "list music folders", err)
	}
	defer rows.Close()
	var out []models.MusicFolder
	for rows.Next() {
		var f models.MusicFolder
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.Backend, &f.Watch, &f.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "scan music folder", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetMusicFolder looks up a single folder by id, used to resolve the
// fs.Backend a stream/download/scan request needs.
func (s *Store) GetMusicFolder(ctx context.Context, id int64) (*models.MusicFolder, error) {
	var f models.MusicFolder
	err := s.db.QueryRow(ctx, `SELECT id, name, path, backend, watch, created_at FROM music_folders WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.Path, &f.Backend, &f.Watch, &f.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "music folder not found", err)
	}
	return &f, nil
}

func (s *Store) AddMusicFolder(ctx context.Context, name, path, backend string, watch bool) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO music_folders (name, path, backend, watch, created_at) VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, name, path, backend, watch).Scan(&id)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIO, "add music folder", err)
	}
	return id, nil
}

func (s *Store) RemoveMusicFolder(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM music_folders WHERE id = $1`, id); err != nil {
		return apperr.Wrap(apperr.KindIO, "remove music folder", err)
	}
	return nil
}
