package workflow

import (
	"log/slog"
	"sync"
	"time"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/stage"
)

// Manager coordinates job processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *jobs.Store
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	workerCount  int

	handlers map[jobs.Stage]stage.Handler

	wake chan struct{}

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
	lastJob *jobs.Job
}

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	ExtractAudio   stage.Handler
	ExtractFrames  stage.Handler
	Transcribe     stage.Handler
	OCR            stage.Handler
	Integrate      stage.Handler
	Summarize      stage.Handler
	GenerateOutput stage.Handler
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *jobs.Store, logger *slog.Logger) *Manager {
	workers := cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		workerCount:  workers,
		wake:         make(chan struct{}, 1),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	handlers := map[jobs.Stage]stage.Handler{
		jobs.StageExtractAudio:   set.ExtractAudio,
		jobs.StageExtractFrames:  set.ExtractFrames,
		jobs.StageTranscribe:     set.Transcribe,
		jobs.StageOCR:            set.OCR,
		jobs.StageIntegrate:      set.Integrate,
		jobs.StageSummarize:      set.Summarize,
		jobs.StageGenerateOutput: set.GenerateOutput,
	}
	for stageID, handler := range handlers {
		if handler == nil {
			delete(handlers, stageID)
		}
	}

	m.mu.Lock()
	m.handlers = handlers
	m.mu.Unlock()
}

// Notify wakes an idle worker after a job has been enqueued or requeued.
// It never blocks; a single pending wakeup is enough.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) handlerFor(stageID jobs.Stage) (stage.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[stageID]
	return handler, ok
}
