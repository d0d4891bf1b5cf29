package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lectern/internal/services"
)

// NewJob enqueues a source video for processing. Every stage starts
// pending and the job joins the back of the FIFO queue.
func (s *Store) NewJob(ctx context.Context, sourcePath, title, owner string) (*Job, error) {
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "", "enqueue job", "source path is required", nil)
	}
	if title == "" {
		title = InferTitle(sourcePath)
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, source_path, title, owner_id, status, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sourcePath,
		nullableString(title),
		nullableString(owner),
		StatusQueued,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when no job matches.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindBySourcePath returns the most recent job for a source file, if any.
func (s *Store) FindBySourcePath(ctx context.Context, sourcePath string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_path = ? ORDER BY created_at DESC, id LIMIT 1`,
		sourcePath,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source path: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET source_path = ?, title = ?, owner_id = ?, status = ?, current_stage = ?, progress = ?,
             error_message = ?, cancel_requested = ?, retry_count = ?,
             stage_extract_audio = ?, stage_extract_frames = ?, stage_transcribe = ?,
             stage_ocr = ?, stage_integrate = ?, stage_summarize = ?, stage_generate_output = ?,
             audio_path = ?, frames_path = ?, transcript_path = ?, ocr_frames_path = ?,
             chapters_path = ?, summary_path = ?, output_path = ?,
             updated_at = ?, started_at = ?, completed_at = ?
         WHERE id = ?`,
		job.SourcePath,
		nullableString(job.Title),
		nullableString(job.OwnerID),
		job.Status,
		nullableString(string(job.CurrentStage)),
		job.Progress,
		nullableString(job.ErrorMessage),
		boolToInt(job.CancelRequested),
		job.RetryCount,
		job.StageState(StageExtractAudio),
		job.StageState(StageExtractFrames),
		job.StageState(StageTranscribe),
		job.StageState(StageOCR),
		job.StageState(StageIntegrate),
		job.StageState(StageSummarize),
		job.StageState(StageGenerateOutput),
		nullableString(job.Artifacts.AudioPath),
		nullableString(job.Artifacts.FramesPath),
		nullableString(job.Artifacts.TranscriptPath),
		nullableString(job.Artifacts.OCRFramesPath),
		nullableString(job.Artifacts.ChaptersPath),
		nullableString(job.Artifacts.SummaryPath),
		nullableString(job.Artifacts.OutputPath),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), ordered by enqueue time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var items []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, job)
	}
	return items, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
