// Package api exposes the job pipeline to the surrounding application:
// a typed service used by the CLI and daemon, plus a small HTTP surface.
package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
)

// Notifier wakes the scheduler after an enqueue. The workflow manager
// satisfies it; tests substitute a stub.
type Notifier interface {
	Notify()
}

// NopNotifier is used when no scheduler is running in-process, such as
// CLI enqueues against the daemon's store.
type NopNotifier struct{}

func (NopNotifier) Notify() {}

// Service is the application-facing job interface.
type Service struct {
	cfg      *config.Config
	store    *jobs.Store
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs the job service.
func NewService(cfg *config.Config, store *jobs.Store, notifier Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Submit enqueues a source video. The file is moved into the job's
// staging workspace so later cleanup of the incoming directory cannot
// disturb a job in flight.
func (s *Service) Submit(ctx context.Context, sourcePath, owner string) (*jobs.Job, error) {
	if sourcePath == "" {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "source path is required", nil)
	}
	absPath, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "cannot resolve source path", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "source video is not readable", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "", "submit", "source path is a directory", nil)
	}

	job, err := s.store.NewJob(ctx, absPath, "", owner)
	if err != nil {
		return nil, err
	}

	staged := filepath.Join(job.WorkspaceRoot(s.cfg.Paths.StagingDir), "source"+filepath.Ext(absPath))
	if err := moveFile(absPath, staged); err != nil {
		s.logger.Warn("staging move failed, processing in place",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	} else {
		job.SourcePath = staged
		if err := s.store.Update(ctx, job); err != nil {
			return nil, err
		}
	}

	s.notifier.Notify()
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", job.SourcePath),
		logging.String("owner", owner))
	return job, nil
}

// Status returns a snapshot of one job.
func (s *Service) Status(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "status", fmt.Sprintf("no job with id %s", id), nil)
	}
	return job, nil
}

// Result returns the summarized unified transcript of a completed job.
func (s *Service) Result(ctx context.Context, id string) (*media.UnifiedTranscript, error) {
	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != jobs.StatusCompleted {
		return nil, services.Wrap(services.ErrNotReady, "", "result",
			fmt.Sprintf("job is %s; result is available once it completes", job.Status), nil)
	}
	var transcript media.UnifiedTranscript
	if err := media.LoadJSON(job.Artifacts.SummaryPath, &transcript); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "", "result", "result artifact is missing", err)
	}
	return &transcript, nil
}

// Cancel requests cancellation of a queued or processing job.
func (s *Service) Cancel(ctx context.Context, id string) error {
	job, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "", "cancel", "no job with id "+id, nil)
	}
	s.logger.Info("cancellation requested",
		logging.String(logging.FieldJobID, id),
		logging.String("status", string(job.Status)))
	return nil
}

// Retry re-queues a failed job. Only the failed stage is re-run;
// completed stage artifacts are reused.
func (s *Service) Retry(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := s.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	s.logger.Info("job requeued",
		logging.String(logging.FieldJobID, id),
		logging.Int("retry_count", job.RetryCount))
	return job, nil
}

// List returns jobs filtered by the given statuses, oldest first.
func (s *Service) List(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error) {
	return s.store.List(ctx, statuses...)
}

// moveFile renames src to dst, falling back to copy-and-remove for
// cross-filesystem moves.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
