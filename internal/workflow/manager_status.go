package workflow

import (
	"context"

	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	LastJob     *jobs.Job
	QueueStats  map[jobs.Status]int
	StageHealth map[jobs.Stage]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := make(map[jobs.Stage]stage.Handler, len(m.handlers))
	for stageID, handler := range m.handlers {
		handlers[stageID] = handler
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}

	health := make(map[jobs.Stage]stage.Health, len(handlers))
	for stageID, handler := range handlers {
		health[stageID] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     m.workerCount,
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		cp := *lastJob
		summary.LastJob = &cp
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobs.Job) {
	m.mu.Lock()
	if job != nil {
		cp := *job
		m.lastJob = &cp
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
