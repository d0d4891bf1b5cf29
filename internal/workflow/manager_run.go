package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lectern/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	workers := m.workerCount
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}

	return nil
}

// Stop terminates background processing and waits for workers to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, workerID int) {
	defer m.wg.Done()

	logger := m.workerLogger(workerID)

	pollInterval := m.pollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextQueued(ctx)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx, ticker)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
		// Releasing a worker may unblock the next queued job immediately.
		m.Notify()
	}
}

func (m *Manager) workerLogger(workerID int) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-worker-%d", workerID)),
	)
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next queued job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
	)
	retryDelay := m.retryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(retryDelay):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context, ticker *time.Ticker) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-ticker.C:
	}
}
