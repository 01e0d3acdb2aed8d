// Package jobs implements a Postgres SKIP LOCKED job queue and worker
// pool, grounded on the teacher's internal/jobs/queue.go and worker.go,
// repurposed for folder scans and lyric-language backfills instead of
// korus's metadata-extraction/transcode/stats job set.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nghego/nghego/internal/database"
)

const (
	JobTypeScanFolder           = "scan_folder"
	JobTypeDetectLyricLanguage  = "detect_lyric_language"
	JobTypeCleanup              = "cleanup"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Queue struct {
	db *database.DB
}

// Job is one row of the job_queue table; PayloadData is the typed,
// unmarshaled view of Payload, set once Dequeue/GetJob knows JobType.
type Job struct {
	ID          int64
	JobType     string
	Payload     []byte
	Status      string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
	LastError   string
	PayloadData interface{} `json:"-"`
}

// ScanFolderJobPayload schedules an incremental (or forced) walk of one
// configured music folder.
type ScanFolderJobPayload struct {
	MusicFolderID int64 `json:"music_folder_id"`
	Force         bool  `json:"force"`
}

// DetectLyricLanguageJobPayload backfills Lyric.Language for rows that
// predate language detection, or whose [la:] tag was absent at scan
// time, without requiring a full rescan.
type DetectLyricLanguageJobPayload struct {
	LyricID int64 `json:"lyric_id"`
}

type CleanupJobPayload struct {
	OlderThan time.Time `json:"older_than"`
}

func NewQueue(db *database.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO job_queue (job_type, payload, status, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, job_type, payload, status, created_at, processed_at, attempts, last_error
	`

	var job Job
	err = q.db.QueryRow(ctx, query, jobType, payloadBytes, JobStatusPending).
		Scan(&job.ID, &job.JobType, &job.Payload, &job.Status,
			&job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	job.PayloadData = payload
	return &job, nil
}

func (q *Queue) Dequeue(ctx context.Context, jobTypes []string) (*Job, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue
		WHERE status = $1 AND job_type = ANY($2)
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var job Job
	err = tx.QueryRow(ctx, query, JobStatusPending, jobTypes).
		Scan(&job.ID, &job.JobType, &job.Payload, &job.Status,
			&job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE job_queue SET status = $1, attempts = attempts + 1 WHERE id = $2",
		JobStatusProcessing, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark job as processing: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := q.unmarshalPayload(&job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, jobID int64) error {
	_, err := q.db.Exec(ctx,
		`UPDATE job_queue SET status = $1, processed_at = NOW() WHERE id = $2`,
		JobStatusCompleted, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job as completed: %w", err)
	}
	return nil
}

func (q *Queue) Fail(ctx context.Context, jobID int64, errorMsg string) error {
	_, err := q.db.Exec(ctx,
		`UPDATE job_queue SET status = $1, last_error = $2, processed_at = NOW() WHERE id = $3`,
		JobStatusFailed, errorMsg, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	return nil
}

func (q *Queue) Retry(ctx context.Context, jobID int64, maxAttempts int) error {
	_, err := q.db.Exec(ctx, `
		UPDATE job_queue SET
			status = CASE WHEN attempts < $2 THEN $3 ELSE $4 END,
			last_error = CASE WHEN attempts >= $2 THEN 'max retry attempts exceeded' ELSE last_error END
		WHERE id = $1
	`, jobID, maxAttempts, JobStatusPending, JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}
	return nil
}

func (q *Queue) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	var job Job
	err := q.db.QueryRow(ctx, `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue WHERE id = $1
	`, jobID).Scan(&job.ID, &job.JobType, &job.Payload, &job.Status,
		&job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if err := q.unmarshalPayload(&job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &job, nil
}

func (q *Queue) ListJobs(ctx context.Context, status string, limit, offset int) ([]Job, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status,
			&job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if err := q.unmarshalPayload(&job); err != nil {
			fmt.Printf("warning: failed to unmarshal payload for job %d: %v\n", job.ID, err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (q *Queue) CleanupCompletedJobs(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM job_queue WHERE status = $1 AND processed_at < $2`,
		JobStatusCompleted, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup completed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *Queue) GetQueueStats(ctx context.Context) (map[string]int, error) {
	rows, err := q.db.Query(ctx, `SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (q *Queue) unmarshalPayload(job *Job) error {
	if job.Payload == nil {
		return nil
	}
	switch job.JobType {
	case JobTypeScanFolder:
		var payload ScanFolderJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		job.PayloadData = payload
	case JobTypeDetectLyricLanguage:
		var payload DetectLyricLanguageJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		job.PayloadData = payload
	case JobTypeCleanup:
		var payload CleanupJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		job.PayloadData = payload
	}
	return nil
}
