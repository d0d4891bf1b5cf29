// Package integration implements the integrate pipeline stage: it
// merges the transcript and OCR artifacts into the unified chaptered
// transcript.
package integration

import (
	"context"
	"path/filepath"
	"time"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/integrate"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/services/ffmpeg"
	"lectern/internal/stage"
)

// DurationProber reports the duration of a media file in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, source string) (float64, error)
}

// Integrator handles the integrate stage.
type Integrator struct {
	cfg    *config.Config
	logger *slog.Logger
	prober DurationProber
}

// NewIntegrator constructs the integrate stage handler.
func NewIntegrator(cfg *config.Config, logger *slog.Logger) *Integrator {
	return NewIntegratorWithProber(cfg, logger, ffmpeg.NewService(cfg.Extraction))
}

// NewIntegratorWithProber allows injecting the duration prober (used in tests).
func NewIntegratorWithProber(cfg *config.Config, logger *slog.Logger, prober DurationProber) *Integrator {
	return &Integrator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "integrator"),
		prober: prober,
	}
}

func (g *Integrator) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Artifacts.TranscriptPath == "" {
		return services.Wrap(services.ErrValidation, "integrate", "validate inputs", "no transcript artifact present; transcribe must complete first", nil)
	}
	if job.Artifacts.OCRFramesPath == "" {
		return services.Wrap(services.ErrValidation, "integrate", "validate inputs", "no OCR artifact present; ocr must complete first", nil)
	}
	return nil
}

func (g *Integrator) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, g.logger)

	var segments []media.SpeechSegment
	if err := media.LoadJSON(job.Artifacts.TranscriptPath, &segments); err != nil {
		return services.Wrap(services.ErrIntegration, "integrate", "load transcript", "cannot read transcript artifact", err)
	}
	var frames []media.FrameRecord
	if err := media.LoadJSON(job.Artifacts.OCRFramesPath, &frames); err != nil {
		return services.Wrap(services.ErrIntegration, "integrate", "load frames", "cannot read OCR artifact", err)
	}

	chapters, err := integrate.Integrate(frames, segments)
	if err != nil {
		return err
	}

	transcript := media.UnifiedTranscript{
		Metadata: media.TranscriptMetadata{
			SourceFile:  job.SourcePath,
			TotalFrames: len(frames),
		},
		Chapters: chapters,
	}
	if duration, err := g.prober.ProbeDuration(ctx, job.SourcePath); err == nil {
		transcript.Metadata.Duration = duration
	} else {
		logger.Warn("duration probe failed", logging.Error(err))
	}
	if job.StartedAt != nil {
		transcript.Metadata.ProcessingSeconds = time.Since(*job.StartedAt).Seconds()
	}

	outPath := filepath.Join(job.WorkspaceRoot(g.cfg.Paths.StagingDir), "chapters.json")
	if err := media.SaveJSON(outPath, &transcript); err != nil {
		return services.Wrap(services.ErrIntegration, "integrate", "write transcript", "cannot persist unified transcript", err)
	}
	job.Artifacts.ChaptersPath = outPath
	logger.Info("transcript integrated",
		logging.Int("chapters", len(chapters)),
		logging.Int("words", transcript.WordCount()),
		logging.String("transcript", outPath))
	return nil
}

func (g *Integrator) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("integrator")
}
