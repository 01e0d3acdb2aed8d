// Package scanner walks a music folder, extracts and normalizes tags,
// upserts the library graph, and indexes songs for search. Grounded on
// the teacher's internal/scanner/scanner.go worker-pool/debounce idiom,
// rebuilt against internal/fs.Backend and internal/library.Store
// instead of direct os/sql calls.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dhowden/tag"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/semaphore"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/config"
	"github.com/nghego/nghego/internal/database"
	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/lyrics"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/search"
	"github.com/nghego/nghego/internal/tagext"
)

// Service runs folder scans. One Service is shared across every
// configured music folder; a folder-level mutex guard (held) enforces
// that at most one scan runs per folder at a time, while different
// folders scan concurrently.
type Service struct {
	db     *database.DB
	store  *library.Store
	index  *search.Index
	cfg    config.ScanConfig
	active sync.Map // folderID -> struct{}
}

func New(db *database.DB, store *library.Store, index *search.Index, cfg config.ScanConfig) *Service {
	return &Service{db: db, store: store, index: index, cfg: cfg}
}

// counters is the atomic tally threaded through the worker pool.
type counters struct {
	seen, added, updated, errors int64
}

// ScanFolder walks folder through backend and upserts everything it
// finds. force re-reads and re-extracts every file regardless of
// recorded modification time; otherwise unchanged files are only
// touched (to survive cleanup) and skipped entirely.
func (s *Service) ScanFolder(ctx context.Context, folder models.MusicFolder, backend nfs.Backend, force bool) (*models.Scan, error) {
	if _, alreadyRunning := s.active.LoadOrStore(folder.ID, struct{}{}); alreadyRunning {
		return nil, apperr.New(apperr.KindInvalidParameter, fmt.Sprintf("scan already running for folder %q", folder.Name))
	}
	defer s.active.Delete(folder.ID)

	scanStartedAt := time.Now()
	scanID, err := s.store.StartScan(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(s.cfg.AllowedExtensions))
	for _, e := range s.cfg.AllowedExtensions {
		exts[e] = struct{}{}
	}

	var c counters
	var walkErrMu sync.Mutex
	var walkErrs []error
	onErr := func(path string, err error) {
		walkErrMu.Lock()
		walkErrs = append(walkErrs, fmt.Errorf("%s: %w", path, err))
		walkErrMu.Unlock()
		atomic.AddInt64(&c.errors, 1)
	}

	paths, err := backend.Walk(ctx, folder.Path, exts, onErr)
	if err != nil {
		_ = s.store.FinishScan(ctx, scanID, models.ScanStatusFailedUnrecoverable, 0, 0, 0, 0, 0, err.Error())
		return nil, apperr.Wrap(apperr.KindIO, "walk folder", err)
	}

	sem := semaphore.NewWeighted(int64(maxInt(s.cfg.WorkerConcurrency, 1)))
	var wg sync.WaitGroup

	for pi := range paths {
		pi := pi
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			atomic.AddInt64(&c.seen, 1)
			changed, err := s.processFile(ctx, folder, backend, pi, force, scanStartedAt)
			if err != nil {
				log.Printf("scan: %s: %v", pi.RelativePath, err)
				atomic.AddInt64(&c.errors, 1)
				return
			}
			if changed {
				atomic.AddInt64(&c.added, 1)
			} else {
				atomic.AddInt64(&c.updated, 1)
			}
		}()
	}
	wg.Wait()

	removed := 0
	if err := s.store.GlobalCleanup(ctx, folder.ID, scanStartedAt); err != nil {
		log.Printf("scan: global cleanup for folder %q: %v", folder.Name, err)
		atomic.AddInt64(&c.errors, 1)
	}
	if err := s.store.RebuildArtistIndexes(ctx); err != nil {
		log.Printf("scan: rebuild artist indexes: %v", err)
		atomic.AddInt64(&c.errors, 1)
	}

	status := models.ScanStatusCompleted
	lastErr := ""
	if len(walkErrs) > 0 {
		status = models.ScanStatusFailedRecoverable
		lastErr = walkErrs[len(walkErrs)-1].Error()
	}

	if err := s.store.FinishScan(ctx, scanID, status, int(c.seen), int(c.added), int(c.updated), removed, int(c.errors), lastErr); err != nil {
		return nil, err
	}
	return s.store.GetScan(ctx, scanID)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// processFile reads, extracts, and upserts one file. Returns true if
// the song row was newly inserted (vs. an existing one refreshed).
func (s *Service) processFile(ctx context.Context, folder models.MusicFolder, backend nfs.Backend, pi nfs.PathInfo, force bool, scanStartedAt time.Time) (bool, error) {
	existing, err := s.store.GetSongByPath(ctx, folder.ID, pi.RelativePath)
	isNew := err != nil

	if !isNew && !force && existing.FileSize == pi.Size && existing.FileModified.Equal(pi.LastModified) {
		return false, s.store.TouchSong(ctx, existing.ID)
	}

	data, err := backend.ReadAll(ctx, pi.AbsolutePath)
	if err != nil {
		return false, apperr.Wrap(apperr.KindIO, "read file", err)
	}
	hash := xxhash.Sum64(data)
	if !isNew && !force && existing.FileHash == hash {
		return false, s.store.TouchSong(ctx, existing.ID)
	}

	rawTags, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return false, apperr.Wrap(apperr.KindMediaParse, "read tags", err)
	}
	md, err := tagext.ExtractFrom(rawTags)
	if err != nil {
		return false, err
	}
	md = tagext.Normalize(md)
	if md.Title == "" {
		return false, apperr.New(apperr.KindMediaParse, "no title tag")
	}

	props, err := probeAudioProperties(pi.AbsolutePath)
	if err != nil {
		// Missing stream properties should not abandon the whole file;
		// the song is still usable for browsing, just without exact
		// duration/bitrate until a future scan with a readable source.
		log.Printf("scan: probe %s: %v", pi.RelativePath, err)
	}

	var songID int64
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		txStore := s.store.WithTx(tx)

		artistIDs, err := upsertArtists(ctx, txStore, md.Artists)
		if err != nil {
			return err
		}
		albumArtistIDs, err := upsertArtists(ctx, txStore, md.AlbumArtists)
		if err != nil {
			return err
		}

		var albumID *int64
		if md.Album != "" {
			id, err := txStore.UpsertAlbum(ctx, folder.ID, md.Album, md.Album, md.MusicBrainzID, md.Year, md.Month, md.Day)
			if err != nil {
				return err
			}
			albumID = &id
		}

		genreIDs := make([]int64, 0, len(md.Genres))
		for _, g := range md.Genres {
			if g == "" {
				continue
			}
			id, err := txStore.UpsertGenre(ctx, g)
			if err != nil {
				return err
			}
			genreIDs = append(genreIDs, id)
		}

		id, err := txStore.UpsertSong(ctx, library.SongUpsertInput{
			MusicFolderID: folder.ID,
			RelativePath:  pi.RelativePath,
			AlbumID:       albumID,
			Metadata:      md,
			Duration:      props.Duration,
			Bitrate:       props.Bitrate,
			SampleRate:    props.SampleRate,
			Channels:      props.Channels,
			Format:        props.Format,
			FileSize:      pi.Size,
			FileHash:      hash,
			FileModified:  pi.LastModified,
		})
		if err != nil {
			return err
		}
		songID = id

		if err := txStore.SyncSongArtists(ctx, songID, artistIDs, scanStartedAt); err != nil {
			return err
		}
		var compilationArtistIDs []int64
		if md.Compilation {
			compilationArtistIDs = artistIDs
		}
		if err := txStore.SyncSongAlbumArtists(ctx, songID, albumArtistIDs, compilationArtistIDs, scanStartedAt); err != nil {
			return err
		}
		if err := txStore.SyncSongGenres(ctx, songID, genreIDs, scanStartedAt); err != nil {
			return err
		}

		if md.Picture != nil {
			format := pictureFormat(md.Picture.MIMEType)
			caID, err := txStore.UpsertCoverArt(ctx, xxhash.Sum64(md.Picture.Data), int64(len(md.Picture.Data)), format, md.Picture.Data)
			if err != nil {
				return err
			}
			if err := txStore.SetSongCoverArt(ctx, songID, caID); err != nil {
				return err
			}
		}

		return s.scanSidecarLyric(ctx, txStore, backend, pi, songID)
	})
	if err != nil {
		return false, err
	}

	doc := search.Document{
		ID:            fmt.Sprintf("song:%d", songID),
		Kind:          search.KindSong,
		Title:         md.Title,
		Album:         md.Album,
		MusicFolderID: folder.ID,
	}
	if len(md.Artists) > 0 {
		doc.Artist = md.Artists[0]
	}
	if len(md.AlbumArtists) > 0 {
		doc.AlbumArtist = md.AlbumArtists[0]
	}
	if len(md.Genres) > 0 {
		doc.Genre = md.Genres[0]
	}
	if md.Year != nil {
		doc.Year = *md.Year
	}
	if s.index != nil {
		if err := s.index.IndexDocument(doc); err != nil {
			log.Printf("scan: index song %d: %v", songID, err)
		}
	}

	return isNew, nil
}

func upsertArtists(ctx context.Context, store *library.Store, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := store.UpsertArtist(ctx, name, name, "")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pictureFormat(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	default:
		return "jpeg"
	}
}

// scanSidecarLyric looks for a <basename>.lrc file next to the song and
// upserts it as an external lyric if present, marked synced when the
// parsed file carries timestamps. Embedded lyric
// frames are out of scope for dhowden/tag's Raw() surface, so external
// sidecars are the only lyric source the scanner itself handles.
func (s *Service) scanSidecarLyric(ctx context.Context, store *library.Store, backend nfs.Backend, pi nfs.PathInfo, songID int64) error {
	lrcPath := backend.WithExt(pi.AbsolutePath, ".lrc")
	data, err := backend.ReadAll(ctx, lrcPath)
	if err != nil {
		return nil // no sidecar, not an error
	}
	doc, err := lyrics.Parse(bytes.NewReader(data))
	if err != nil {
		log.Printf("scan: parse lrc %s: %v", lrcPath, err)
		return nil
	}

	content := doc.PlainText()
	if doc.Synced() {
		content = doc.SyncedText()
	}
	_, err = store.UpsertLyric(ctx, library.LyricUpsertInput{
		SongID:      songID,
		Description: doc.Metadata.Description,
		Language:    doc.DetectLanguage(),
		External:    true,
		Synced:      doc.Synced(),
		Content:     content,
	})
	return err
}
