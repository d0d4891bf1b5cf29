// Package extraction implements the extract_audio and extract_frames
// pipeline stages over the ffmpeg service.
package extraction

import (
	"context"
	"os"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/services/ffmpeg"
	"lectern/internal/stage"
)

// MediaService describes the ffmpeg operations the extraction stages use.
type MediaService interface {
	ExtractAudio(ctx context.Context, source, dest string) error
	ExtractKeyFrames(ctx context.Context, source, outDir string) ([]media.FrameRecord, error)
	ProbeDuration(ctx context.Context, source string) (float64, error)
	HealthCheck() error
}

// AudioExtractor handles the extract_audio stage: it produces a mono
// 16 kHz WAV from the job's source video.
type AudioExtractor struct {
	cfg    *config.Config
	logger *slog.Logger
	media  MediaService
}

// NewAudioExtractor constructs the extract_audio stage handler.
func NewAudioExtractor(cfg *config.Config, logger *slog.Logger) *AudioExtractor {
	return NewAudioExtractorWithService(cfg, logger, ffmpeg.NewService(cfg.Extraction))
}

// NewAudioExtractorWithService allows injecting the media service (used in tests).
func NewAudioExtractorWithService(cfg *config.Config, logger *slog.Logger, svc MediaService) *AudioExtractor {
	return &AudioExtractor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "audio-extractor"),
		media:  svc,
	}
}

func (a *AudioExtractor) Prepare(ctx context.Context, job *jobs.Job) error {
	if err := validateSource(job, "extract_audio"); err != nil {
		return err
	}
	workDir := job.WorkspaceRoot(a.cfg.Paths.StagingDir)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, "extract_audio", "ensure workspace", "cannot create job workspace; check staging_dir permissions", err)
	}
	return nil
}

func (a *AudioExtractor) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, a.logger)
	dest := filepath.Join(job.WorkspaceRoot(a.cfg.Paths.StagingDir), "audio.wav")
	if artifactExists(job.Artifacts.AudioPath) {
		logger.Info("reusing audio artifact", logging.String("path", job.Artifacts.AudioPath))
		return nil
	}
	if err := a.media.ExtractAudio(ctx, job.SourcePath, dest); err != nil {
		return services.Wrap(services.ErrExtraction, "extract_audio", "run ffmpeg", "audio extraction failed; check the source file and ffmpeg_binary", err)
	}
	job.Artifacts.AudioPath = dest
	logger.Info("audio extracted", logging.String("path", dest))
	return nil
}

func (a *AudioExtractor) HealthCheck(ctx context.Context) stage.Health {
	if err := a.media.HealthCheck(); err != nil {
		return stage.Unhealthy("audio-extractor", err.Error())
	}
	return stage.Healthy("audio-extractor")
}

func validateSource(job *jobs.Job, stageLabel string) error {
	if job.SourcePath == "" {
		return services.Wrap(services.ErrValidation, stageLabel, "validate inputs", "job has no source path", nil)
	}
	if _, err := os.Stat(job.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, stageLabel, "validate inputs", "source video is not readable", err)
	}
	return nil
}

func artifactExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
