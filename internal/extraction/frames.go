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

// FrameExtractor handles the extract_frames stage: it runs scene-change
// detection over the source video and writes the selected key frames
// plus a manifest recording their timestamps.
type FrameExtractor struct {
	cfg    *config.Config
	logger *slog.Logger
	media  MediaService
}

// NewFrameExtractor constructs the extract_frames stage handler.
func NewFrameExtractor(cfg *config.Config, logger *slog.Logger) *FrameExtractor {
	return NewFrameExtractorWithService(cfg, logger, ffmpeg.NewService(cfg.Extraction))
}

// NewFrameExtractorWithService allows injecting the media service (used in tests).
func NewFrameExtractorWithService(cfg *config.Config, logger *slog.Logger, svc MediaService) *FrameExtractor {
	return &FrameExtractor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "frame-extractor"),
		media:  svc,
	}
}

func (f *FrameExtractor) Prepare(ctx context.Context, job *jobs.Job) error {
	if err := validateSource(job, "extract_frames"); err != nil {
		return err
	}
	framesDir := f.framesDir(job)
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, "extract_frames", "ensure frames directory", "cannot create frames directory; check staging_dir permissions", err)
	}
	return nil
}

func (f *FrameExtractor) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	manifestPath := filepath.Join(job.WorkspaceRoot(f.cfg.Paths.StagingDir), "frames.json")
	if artifactExists(job.Artifacts.FramesPath) {
		logger.Info("reusing frames artifact", logging.String("path", job.Artifacts.FramesPath))
		return nil
	}

	frames, err := f.media.ExtractKeyFrames(ctx, job.SourcePath, f.framesDir(job))
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extract_frames", "run ffmpeg", "key frame detection failed; check the source file and scene_threshold", err)
	}
	if err := media.SaveJSON(manifestPath, frames); err != nil {
		return services.Wrap(services.ErrExtraction, "extract_frames", "write manifest", "cannot persist frame manifest", err)
	}
	job.Artifacts.FramesPath = manifestPath
	logger.Info("key frames extracted",
		logging.Int("frames", len(frames)),
		logging.String("manifest", manifestPath))
	return nil
}

func (f *FrameExtractor) HealthCheck(ctx context.Context) stage.Health {
	if err := f.media.HealthCheck(); err != nil {
		return stage.Unhealthy("frame-extractor", err.Error())
	}
	return stage.Healthy("frame-extractor")
}

func (f *FrameExtractor) framesDir(job *jobs.Job) string {
	return filepath.Join(job.WorkspaceRoot(f.cfg.Paths.StagingDir), "frames")
}
