package workflow

import (
	"context"
	"errors"
	"log/slog"

	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/services"
)

func (m *Manager) failStage(ctx context.Context, logger *slog.Logger, job *jobs.Job, stageID jobs.Stage, stageErr error) {
	message := services.FailureMessage(stageErr)
	if message == "" {
		message = string(stageID) + " failed without error detail"
	}

	if err := job.FailStage(stageID, message); err != nil {
		// The stage never reached processing; record the failure on
		// the job and the stage directly so it does not stay claimed
		// forever and a later retry can find the stage to rewind.
		if job.StageStates == nil {
			job.StageStates = jobs.NewStageStates()
		}
		job.StageStates[stageID] = jobs.StageFailed
		job.Status = jobs.StatusFailed
		job.ErrorMessage = message
		job.CurrentStage = stageID
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastError(stageErr)
	m.setLastJob(job)
}
