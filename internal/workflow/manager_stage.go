package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/services"
)

// processJob drives one claimed job through the pipeline until it
// completes, fails, or a cancellation request is observed. Cancellation
// is cooperative: the flag is checked between stages, never mid-stage.
func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *jobs.Job) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Reload so a cancel flag set by the API or CLI is seen.
		current, err := m.store.GetByID(ctx, job.ID)
		if err != nil {
			m.setLastError(err)
			workerLogger.Error("failed to reload job", logging.Error(err))
			return err
		}
		if current == nil {
			workerLogger.Warn("job disappeared mid-pipeline",
				logging.String(logging.FieldJobID, job.ID))
			return nil
		}
		job = current

		if job.CancelRequested {
			return m.finalizeCancellation(ctx, workerLogger, job)
		}

		stageID, ok := job.NextPendingStage()
		if !ok {
			m.setLastJob(job)
			return nil
		}

		if err := m.executeStage(ctx, workerLogger, job, stageID); err != nil {
			return err
		}
	}
}

func (m *Manager) executeStage(ctx context.Context, workerLogger *slog.Logger, job *jobs.Job, stageID jobs.Stage) error {
	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, stageID, job, requestID)
	stageLogger := logging.WithContext(stageCtx, workerLogger)

	handler, ok := m.handlerFor(stageID)
	if !ok {
		err := fmt.Errorf("stage %s has no registered handler", stageID)
		m.failStage(stageCtx, stageLogger, job, stageID, err)
		return err
	}

	if err := job.BeginStage(stageID); err != nil {
		m.setLastError(err)
		stageLogger.Error("stage transition rejected", logging.Error(err))
		return err
	}
	if err := m.store.Update(stageCtx, job); err != nil {
		wrapped := fmt.Errorf("persist stage start: %w", err)
		m.setLastError(wrapped)
		stageLogger.Error("failed to persist stage start", logging.Error(wrapped))
		return wrapped
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(job.Title)),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
	)

	if err := handler.Prepare(stageCtx, job); err != nil {
		m.failStage(stageCtx, stageLogger, job, stageID, err)
		return err
	}
	if err := m.store.Update(stageCtx, job); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		m.setLastError(wrapped)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		return wrapped
	}

	if execErr := handler.Execute(stageCtx, job); execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.failStage(stageCtx, stageLogger, job, stageID, execErr)
		return execErr
	}

	if err := job.CompleteStage(stageID); err != nil {
		m.setLastError(err)
		stageLogger.Error("stage completion rejected", logging.Error(err))
		return err
	}
	if err := m.store.Update(stageCtx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		m.setLastError(wrapped)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		return wrapped
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("progress", job.Progress),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	if job.Status == jobs.StatusCompleted {
		stageLogger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("output_file", strings.TrimSpace(job.Artifacts.OutputPath)),
		)
	}
	m.setLastJob(job)
	return nil
}

func (m *Manager) finalizeCancellation(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	job.MarkCancelled()
	if err := m.store.Update(ctx, job); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist cancellation", logging.Error(err))
		return err
	}
	logger.Info("job cancelled",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	m.setLastJob(job)
	return nil
}

func withStageContext(ctx context.Context, stageID jobs.Stage, job *jobs.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
	}
	ctx = services.WithStage(ctx, string(stageID))
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

// DeriveStageLabel renders a stage identifier for human-facing output.
func DeriveStageLabel(stageID jobs.Stage) string {
	if stageID == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(stageID), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
