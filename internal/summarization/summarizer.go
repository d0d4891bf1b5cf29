// Package summarization implements the summarize pipeline stage: it
// runs the token-budgeted batcher over the unified transcript using the
// chat completion client.
package summarization

import (
	"context"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/services/summarizer"
	"lectern/internal/stage"
	"lectern/internal/summarize"
)

// Summarizer handles the summarize stage.
type Summarizer struct {
	cfg    *config.Config
	logger *slog.Logger
	client summarize.Completer
}

// NewSummarizer constructs the summarize stage handler.
func NewSummarizer(cfg *config.Config, logger *slog.Logger) *Summarizer {
	return NewSummarizerWithClient(cfg, logger, summarizer.NewClient(cfg.Summarizer))
}

// NewSummarizerWithClient allows injecting the completion client (used in tests).
func NewSummarizerWithClient(cfg *config.Config, logger *slog.Logger, client summarize.Completer) *Summarizer {
	return &Summarizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "summarizer"),
		client: client,
	}
}

func (s *Summarizer) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Artifacts.ChaptersPath == "" {
		return services.Wrap(services.ErrValidation, "summarize", "validate inputs", "no unified transcript present; integrate must complete first", nil)
	}
	return nil
}

func (s *Summarizer) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	var transcript media.UnifiedTranscript
	if err := media.LoadJSON(job.Artifacts.ChaptersPath, &transcript); err != nil {
		return services.Wrap(services.ErrSummarization, "summarize", "load transcript", "cannot read unified transcript", err)
	}

	batcher := summarize.NewBatcher(s.client, s.cfg.Summarizer.MaxInputTokens, logger)
	report, err := batcher.SummarizeTranscript(ctx, &transcript)
	if err != nil {
		return err
	}

	outPath := filepath.Join(job.WorkspaceRoot(s.cfg.Paths.StagingDir), "summary.json")
	if err := media.SaveJSON(outPath, &transcript); err != nil {
		return services.Wrap(services.ErrSummarization, "summarize", "write transcript", "cannot persist summarized transcript", err)
	}
	job.Artifacts.SummaryPath = outPath
	logger.Info("summarization complete",
		logging.Int("chapters", len(transcript.Chapters)),
		logging.Int("map_calls", report.MapCalls),
		logging.Int("reduce_calls", report.ReduceCalls),
		logging.Int("oversized", len(report.Oversized)),
		logging.String("summary", outPath))
	return nil
}

func (s *Summarizer) HealthCheck(ctx context.Context) stage.Health {
	if err := summarizer.HealthCheck(s.cfg.Summarizer); err != nil {
		return stage.Unhealthy("summarizer", err.Error())
	}
	return stage.Healthy("summarizer")
}
