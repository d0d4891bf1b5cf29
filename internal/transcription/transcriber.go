// Package transcription implements the transcribe pipeline stage over
// the whisper service.
package transcription

import (
	"context"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/services/whisper"
	"lectern/internal/stage"
)

// SpeechService describes the whisper operations the stage uses.
type SpeechService interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) ([]media.SpeechSegment, error)
	HealthCheck() error
}

// Transcriber handles the transcribe stage: it turns the extracted WAV
// into an ordered speech segment artifact.
type Transcriber struct {
	cfg    *config.Config
	logger *slog.Logger
	speech SpeechService
}

// NewTranscriber constructs the transcribe stage handler.
func NewTranscriber(cfg *config.Config, logger *slog.Logger) *Transcriber {
	return NewTranscriberWithService(cfg, logger, whisper.NewService(cfg.Transcriber))
}

// NewTranscriberWithService allows injecting the speech service (used in tests).
func NewTranscriberWithService(cfg *config.Config, logger *slog.Logger, svc SpeechService) *Transcriber {
	return &Transcriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcriber"),
		speech: svc,
	}
}

func (t *Transcriber) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Artifacts.AudioPath == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "validate inputs", "no audio artifact present; extract_audio must complete first", nil)
	}
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	workDir := job.WorkspaceRoot(t.cfg.Paths.StagingDir)
	transcriptPath := filepath.Join(workDir, "transcript.json")

	segments, err := t.speech.Transcribe(ctx, job.Artifacts.AudioPath, workDir)
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "run whisper", "transcription failed; check the transcriber binary and model", err)
	}
	if err := media.SaveJSON(transcriptPath, segments); err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "write transcript", "cannot persist transcript artifact", err)
	}
	job.Artifacts.TranscriptPath = transcriptPath
	logger.Info("transcription complete",
		logging.Int("segments", len(segments)),
		logging.String("transcript", transcriptPath))
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if err := t.speech.HealthCheck(); err != nil {
		return stage.Unhealthy("transcriber", err.Error())
	}
	return stage.Healthy("transcriber")
}
