// Package ocrstage implements the ocr pipeline stage: per-frame text
// recognition over the tesseract service, followed by near-duplicate
// frame pruning on the recognized text.
package ocrstage

import (
	"context"
	"path/filepath"

	"log/slog"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/services"
	"lectern/internal/services/tesseract"
	"lectern/internal/stage"
	"lectern/internal/textutil"
)

// TextService describes the OCR operations the stage uses.
type TextService interface {
	RecognizeImage(ctx context.Context, imagePath string) (string, error)
	HealthCheck() error
}

// Recognizer handles the ocr stage: it annotates each extracted key
// frame with its on-screen text and drops consecutive frames that show
// the same slide.
type Recognizer struct {
	cfg    *config.Config
	logger *slog.Logger
	ocr    TextService
}

// NewRecognizer constructs the ocr stage handler.
func NewRecognizer(cfg *config.Config, logger *slog.Logger) *Recognizer {
	return NewRecognizerWithService(cfg, logger, tesseract.NewService(cfg.OCR))
}

// NewRecognizerWithService allows injecting the OCR service (used in tests).
func NewRecognizerWithService(cfg *config.Config, logger *slog.Logger, svc TextService) *Recognizer {
	return &Recognizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "ocr"),
		ocr:    svc,
	}
}

func (r *Recognizer) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Artifacts.FramesPath == "" {
		return services.Wrap(services.ErrValidation, "ocr", "validate inputs", "no frames artifact present; extract_frames must complete first", nil)
	}
	return nil
}

func (r *Recognizer) Execute(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, r.logger)

	var frames []media.FrameRecord
	if err := media.LoadJSON(job.Artifacts.FramesPath, &frames); err != nil {
		return services.Wrap(services.ErrOCR, "ocr", "load frames", "cannot read frame manifest", err)
	}

	for i := range frames {
		text, err := r.ocr.RecognizeImage(ctx, frames[i].ImagePath)
		if err != nil {
			return services.Wrap(services.ErrOCR, "ocr", "recognize frame", "text recognition failed; check the ocr binary and languages", err)
		}
		frames[i].OCRText = text
	}

	kept := r.pruneDuplicates(frames)
	outPath := filepath.Join(job.WorkspaceRoot(r.cfg.Paths.StagingDir), "ocr_frames.json")
	if err := media.SaveJSON(outPath, kept); err != nil {
		return services.Wrap(services.ErrOCR, "ocr", "write results", "cannot persist OCR artifact", err)
	}
	job.Artifacts.OCRFramesPath = outPath
	logger.Info("frame text recognized",
		logging.Int("frames", len(frames)),
		logging.Int("kept", len(kept)),
		logging.String("results", outPath))
	return nil
}

// pruneDuplicates drops frames whose text reads as the same slide as
// the previously kept frame. The earlier frame wins so chapter starts
// stay anchored to the first appearance of a slide.
func (r *Recognizer) pruneDuplicates(frames []media.FrameRecord) []media.FrameRecord {
	threshold := r.cfg.Extraction.SimilarityThreshold
	if threshold <= 0 || len(frames) == 0 {
		return frames
	}
	kept := make([]media.FrameRecord, 0, len(frames))
	kept = append(kept, frames[0])
	for _, frame := range frames[1:] {
		if textutil.NearDuplicate(kept[len(kept)-1].OCRText, frame.OCRText, threshold) {
			continue
		}
		kept = append(kept, frame)
	}
	return kept
}

func (r *Recognizer) HealthCheck(ctx context.Context) stage.Health {
	if err := r.ocr.HealthCheck(); err != nil {
		return stage.Unhealthy("ocr", err.Error())
	}
	return stage.Healthy("ocr")
}
