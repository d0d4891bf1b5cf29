package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lectern/internal/services"
)

// ClaimNextQueued atomically promotes the oldest queued job to
// processing and returns it. Returns nil when the queue is empty.
// Claim order is strictly FIFO by enqueue time.
func (s *Store) ClaimNextQueued(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusQueued,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan queued job: %w", err)
		}

		now := time.Now().UTC()
		job.Status = StatusProcessing
		job.UpdatedAt = now
		if job.StartedAt == nil {
			job.StartedAt = &now
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusProcessing,
			nullableTime(job.StartedAt),
			now.Format(time.RFC3339Nano),
			job.ID,
			StatusQueued,
		)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RequestCancel asks for a job to stop. Queued jobs cancel immediately;
// processing jobs get a cooperative flag checked between stages.
// Terminal jobs reject the request.
func (s *Store) RequestCancel(ctx context.Context, id string) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, cancel_requested = 1, current_stage = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled, now, now, id, StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel queued job: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if affected > 0 {
		return s.reloadCancelled(ctx, id)
	}

	res, err = s.execWithRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status = ?`,
		now, id, StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("flag processing job: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if affected > 0 {
		return s.reloadCancelled(ctx, id)
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "cancel job", "no job with id "+id, nil)
	}
	return nil, services.Wrap(services.ErrInvalidState, "", "cancel job",
		fmt.Sprintf("job is already %s", job.Status), nil)
}

// reloadCancelled fetches the job after a cancellation update. The row
// can be removed between the update and the fetch; that surfaces as
// not-found rather than a nil job with a nil error.
func (s *Store) reloadCancelled(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "cancel job", "no job with id "+id, nil)
	}
	return job, nil
}

// Retry requeues a failed job. Only the failed stage is rewound;
// artifacts from completed stages are reused on the next attempt.
func (s *Store) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "retry job", "no job with id "+id, nil)
	}
	if err := job.PrepareRetry(); err != nil {
		return nil, err
	}
	job.CancelRequested = false
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ResetStuckProcessing rewinds jobs left in processing by an unclean
// daemon exit. The in-flight stage returns to pending and the job
// rejoins the queue in its original position. Jobs with a pending
// cancellation are finalized as cancelled instead.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	stuck, err := s.List(ctx, StatusProcessing)
	if err != nil {
		return 0, err
	}
	var reset int64
	for _, job := range stuck {
		if job.CancelRequested {
			job.MarkCancelled()
		} else {
			for _, stage := range StageOrder() {
				if job.StageState(stage) == StageProcessing {
					job.setStageState(stage, StagePending)
				}
			}
			job.Status = StatusQueued
			job.CurrentStage = ""
		}
		if err := s.Update(ctx, job); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}
