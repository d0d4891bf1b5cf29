// Package watcher monitors the incoming directory and submits finished
// video files to the job pipeline. Files are only submitted once their
// size has stopped changing, so partially copied uploads never enter
// the queue.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
)

// videoExtensions lists the source container formats accepted for
// submission. Anything else dropped into the incoming dir is ignored.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
}

// Submitter enqueues a stable file. The api service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sourcePath, owner string) (*jobs.Job, error)
}

// Watcher submits video files that appear in the incoming directory.
type Watcher struct {
	cfg       *config.Config
	logger    *slog.Logger
	submitter Submitter

	stabilityInterval time.Duration
	stabilityTimeout  time.Duration

	mu       sync.Mutex
	running  bool
	inFlight map[string]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New constructs a watcher over cfg.Paths.IncomingDir.
func New(cfg *config.Config, submitter Submitter, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:               cfg,
		logger:            logging.NewComponentLogger(logger, "watcher"),
		submitter:         submitter,
		stabilityInterval: 500 * time.Millisecond,
		stabilityTimeout:  10 * time.Minute,
		inFlight:          make(map[string]struct{}),
	}
}

// WithStabilityWindow overrides the size polling cadence (used in tests).
func (w *Watcher) WithStabilityWindow(interval, timeout time.Duration) {
	w.stabilityInterval = interval
	w.stabilityTimeout = timeout
}

// Start begins watching. Files already present in the incoming
// directory are picked up immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.cfg.Paths.IncomingDir, 0o755); err != nil {
		notifier.Close()
		return err
	}
	if err := notifier.Add(w.cfg.Paths.IncomingDir); err != nil {
		notifier.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx, notifier)

	w.scanExisting(runCtx)
	w.logger.Info("watching incoming directory", logging.String("dir", w.cfg.Paths.IncomingDir))
	return nil
}

// Stop ends watching and waits for pending submissions to settle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, notifier *fsnotify.Watcher) {
	defer w.wg.Done()
	defer notifier.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.maybeSubmit(ctx, event.Name)
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Paths.IncomingDir)
	if err != nil {
		w.logger.Warn("initial scan failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.maybeSubmit(ctx, filepath.Join(w.cfg.Paths.IncomingDir, entry.Name()))
	}
}

func (w *Watcher) maybeSubmit(ctx context.Context, path string) {
	if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return
	}

	w.mu.Lock()
	if _, busy := w.inFlight[path]; busy {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()
		w.submitWhenStable(ctx, path)
	}()
}

func (w *Watcher) submitWhenStable(ctx context.Context, path string) {
	if err := w.waitForStableSize(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("file never stabilized",
				logging.String("path", path),
				logging.Error(err))
		}
		return
	}
	job, err := w.submitter.Submit(ctx, path, "")
	if err != nil {
		w.logger.Error("submission failed",
			logging.String("path", path),
			logging.Error(err))
		return
	}
	w.logger.Info("file submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("path", path))
}

// waitForStableSize polls the file size until two consecutive reads
// agree on a non-zero value.
func (w *Watcher) waitForStableSize(ctx context.Context, path string) error {
	deadline := time.Now().Add(w.stabilityTimeout)
	var lastSize int64 = -1

	ticker := time.NewTicker(w.stabilityInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		size := info.Size()
		if size > 0 && size == lastSize {
			return nil
		}
		lastSize = size

		if time.Now().After(deadline) {
			return errors.New("size still changing at deadline")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
