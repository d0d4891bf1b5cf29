package ocrstage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/media"
	"lectern/internal/ocrstage"
	"lectern/internal/services"
	"lectern/internal/testsupport"
)

type stubOCR struct {
	texts map[string]string
	err   error
	calls int
}

func (s *stubOCR) RecognizeImage(_ context.Context, imagePath string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.texts[filepath.Base(imagePath)], nil
}

func (s *stubOCR) HealthCheck() error { return nil }

func writeManifest(t *testing.T, cfg *config.Config, job *jobs.Job, frames []media.FrameRecord) {
	t.Helper()
	path := filepath.Join(job.WorkspaceRoot(cfg.Paths.StagingDir), "frames.json")
	if err := media.SaveJSON(path, frames); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	job.Artifacts.FramesPath = path
}

func TestRecognizerAnnotatesFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &jobs.Job{ID: "job-ocr", Status: jobs.StatusProcessing, StageStates: jobs.NewStageStates()}
	writeManifest(t, cfg, job, []media.FrameRecord{
		{Timestamp: 0, ImagePath: "/frames/frame_00001.png"},
		{Timestamp: 300, ImagePath: "/frames/frame_00002.png"},
	})

	stub := &stubOCR{texts: map[string]string{
		"frame_00001.png": "Lecture 1: Introduction to Compilers",
		"frame_00002.png": "Lexical Analysis and Tokens",
	}}
	handler := ocrstage.NewRecognizerWithService(cfg, logging.NewNop(), stub)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var frames []media.FrameRecord
	if err := media.LoadJSON(job.Artifacts.OCRFramesPath, &frames); err != nil {
		t.Fatalf("load results: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[1].OCRText != "Lexical Analysis and Tokens" {
		t.Errorf("frame 1 text = %q", frames[1].OCRText)
	}
}

func TestRecognizerPrunesDuplicateSlides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extraction.SimilarityThreshold = 0.9
	job := &jobs.Job{ID: "job-ocr", Status: jobs.StatusProcessing, StageStates: jobs.NewStageStates()}
	writeManifest(t, cfg, job, []media.FrameRecord{
		{Timestamp: 0, ImagePath: "/frames/frame_00001.png"},
		{Timestamp: 120, ImagePath: "/frames/frame_00002.png"},
		{Timestamp: 480, ImagePath: "/frames/frame_00003.png"},
	})

	stub := &stubOCR{texts: map[string]string{
		"frame_00001.png": "Lexical Analysis and Tokens",
		"frame_00002.png": "Lexical Analysis and Tokens!",
		"frame_00003.png": "Parsing: Context Free Grammars",
	}}
	handler := ocrstage.NewRecognizerWithService(cfg, logging.NewNop(), stub)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var frames []media.FrameRecord
	if err := media.LoadJSON(job.Artifacts.OCRFramesPath, &frames); err != nil {
		t.Fatalf("load results: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2 after pruning: %+v", len(frames), frames)
	}
	if frames[0].Timestamp != 0 || frames[1].Timestamp != 480 {
		t.Errorf("kept wrong frames: %+v", frames)
	}
}

func TestRecognizerKeepsTextFreeFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Extraction.SimilarityThreshold = 0.9
	job := &jobs.Job{ID: "job-ocr", Status: jobs.StatusProcessing, StageStates: jobs.NewStageStates()}
	writeManifest(t, cfg, job, []media.FrameRecord{
		{Timestamp: 0, ImagePath: "/frames/frame_00001.png"},
		{Timestamp: 200, ImagePath: "/frames/frame_00002.png"},
		{Timestamp: 400, ImagePath: "/frames/frame_00003.png"},
	})

	stub := &stubOCR{texts: map[string]string{}}
	handler := ocrstage.NewRecognizerWithService(cfg, logging.NewNop(), stub)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var frames []media.FrameRecord
	if err := media.LoadJSON(job.Artifacts.OCRFramesPath, &frames); err != nil {
		t.Fatalf("load results: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3 (blank frames are distinct scenes)", len(frames))
	}
}

func TestRecognizerWrapsToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := &jobs.Job{ID: "job-ocr", Status: jobs.StatusProcessing, StageStates: jobs.NewStageStates()}
	writeManifest(t, cfg, job, []media.FrameRecord{
		{Timestamp: 0, ImagePath: "/frames/frame_00001.png"},
	})

	stub := &stubOCR{err: errors.New("exit status 1")}
	handler := ocrstage.NewRecognizerWithService(cfg, logging.NewNop(), stub)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrOCR) {
		t.Fatalf("error = %v, want ocr marker", err)
	}
}

func TestRecognizerRequiresFramesArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := ocrstage.NewRecognizerWithService(cfg, logging.NewNop(), &stubOCR{})
	job := &jobs.Job{ID: "job-ocr", Status: jobs.StatusProcessing, StageStates: jobs.NewStageStates()}

	err := handler.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation marker", err)
	}
}
