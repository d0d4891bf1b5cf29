// Package daemon wires the pipeline together for background operation:
// single-instance locking, crash recovery, the worker pool, the
// incoming directory watcher, and the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"lectern/internal/api"
	"lectern/internal/config"
	"lectern/internal/extraction"
	"lectern/internal/integration"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/ocrstage"
	"lectern/internal/render"
	"lectern/internal/summarization"
	"lectern/internal/transcription"
	"lectern/internal/watcher"
	"lectern/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager
	jobSvc   *api.Service
	watcher  *watcher.Watcher
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	JobDBPath    string
	LockFilePath string
}

// New constructs a daemon with all collaborators wired: the seven stage
// handlers, the scheduler, the watcher, and the HTTP server.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureStages(workflow.StageSet{
		ExtractAudio:   extraction.NewAudioExtractor(cfg, logger),
		ExtractFrames:  extraction.NewFrameExtractor(cfg, logger),
		Transcribe:     transcription.NewTranscriber(cfg, logger),
		OCR:            ocrstage.NewRecognizer(cfg, logger),
		Integrate:      integration.NewIntegrator(cfg, logger),
		Summarize:      summarization.NewSummarizer(cfg, logger),
		GenerateOutput: render.NewRenderer(cfg, logger),
	})

	jobSvc := api.NewService(cfg, store, manager, logger)
	lockPath := filepath.Join(cfg.Paths.LogDir, "lecternd.lock")

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: manager,
		jobSvc:   jobSvc,
		watcher:  watcher.New(cfg, jobSvc, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// JobService exposes the job interface wired to this daemon's store and
// scheduler.
func (d *Daemon) JobService() *api.Service {
	return d.jobSvc
}

// APIAddr reports the bound HTTP listener address, or "" when the API
// server is disabled or not yet started.
func (d *Daemon) APIAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}

// Start acquires the instance lock, recovers jobs interrupted by a
// previous crash, and launches the workers, watcher, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lectern daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	recovered, err := d.store.ResetStuckProcessing(runCtx)
	if err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("recovered interrupted jobs", logging.Int64("jobs", recovered))
	}

	if err := d.workflow.Start(runCtx); err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.watcher.Start(runCtx); err != nil {
		d.workflow.Stop()
		d.releaseOnStartFailure()
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.watcher.Stop()
		d.workflow.Stop()
		d.releaseOnStartFailure()
		return err
	}

	d.running.Store(true)
	d.logger.Info("lectern daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()))
	return nil
}

func (d *Daemon) releaseOnStartFailure() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lectern daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports runtime state for the health endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
