package jobs

import (
	"context"
	"fmt"
	"log"

	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/scanner"
)

// BackendResolver returns the fs.Backend for a music folder, wired by
// cmd/nghego from the folder's Backend field ("local" vs "s3").
type BackendResolver func(folder models.MusicFolder) (nfs.Backend, error)

type ScanFolderHandler struct {
	scanner  *scanner.Service
	store    *library.Store
	backends BackendResolver
}

func NewScanFolderHandler(scanner *scanner.Service, store *library.Store, backends BackendResolver) *ScanFolderHandler {
	return &ScanFolderHandler{scanner: scanner, store: store, backends: backends}
}

func (h *ScanFolderHandler) Handle(ctx context.Context, job *Job) error {
	payload, ok := job.PayloadData.(ScanFolderJobPayload)
	if !ok {
		return fmt.Errorf("invalid payload type for scan_folder job")
	}

	folders, err := h.store.ListMusicFolders(ctx)
	if err != nil {
		return fmt.Errorf("list music folders: %w", err)
	}
	var folder *models.MusicFolder
	for i := range folders {
		if folders[i].ID == payload.MusicFolderID {
			folder = &folders[i]
			break
		}
	}
	if folder == nil {
		return fmt.Errorf("music folder %d not found", payload.MusicFolderID)
	}

	backend, err := h.backends(*folder)
	if err != nil {
		return fmt.Errorf("resolve backend for folder %q: %w", folder.Name, err)
	}

	log.Printf("scanning folder %q (force=%t)", folder.Name, payload.Force)
	result, err := h.scanner.ScanFolder(ctx, *folder, backend, payload.Force)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	log.Printf("scan of %q completed: %d seen, %d added, %d updated, %d removed, %d errors",
		folder.Name, result.FilesSeen, result.FilesAdded, result.FilesUpdated, result.FilesRemoved, result.Errors)
	return nil
}

// DetectLyricLanguageHandler backfills Lyric.Language on rows that
// still carry an empty or stale language, without requiring a rescan.
type DetectLyricLanguageHandler struct {
	store *library.Store
}

func NewDetectLyricLanguageHandler(store *library.Store) *DetectLyricLanguageHandler {
	return &DetectLyricLanguageHandler{store: store}
}

func (h *DetectLyricLanguageHandler) Handle(ctx context.Context, job *Job) error {
	payload, ok := job.PayloadData.(DetectLyricLanguageJobPayload)
	if !ok {
		return fmt.Errorf("invalid payload type for detect_lyric_language job")
	}
	log.Printf("detecting language for lyric %d", payload.LyricID)
	return h.store.DetectLyricLanguage(ctx, payload.LyricID)
}

// CleanupHandler removes completed job_queue rows older than the job
// payload's OlderThan duration.
type CleanupHandler struct {
	queue *Queue
}

func NewCleanupHandler(queue *Queue) *CleanupHandler {
	return &CleanupHandler{queue: queue}
}

func (h *CleanupHandler) Handle(ctx context.Context, job *Job) error {
	payload, ok := job.PayloadData.(CleanupJobPayload)
	if !ok {
		return fmt.Errorf("invalid payload type for cleanup job")
	}
	count, err := h.queue.CleanupCompletedJobs(ctx, payload.OlderThan)
	if err != nil {
		return fmt.Errorf("cleanup completed jobs: %w", err)
	}
	log.Printf("cleanup removed %d completed jobs", count)
	return nil
}
