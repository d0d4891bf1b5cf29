package jobs_test

import (
	"errors"
	"testing"

	"lectern/internal/jobs"
	"lectern/internal/services"
)

func processingJob() *jobs.Job {
	return &jobs.Job{
		ID:          "job-1",
		SourcePath:  "/videos/lecture.mp4",
		Status:      jobs.StatusProcessing,
		StageStates: jobs.NewStageStates(),
	}
}

func TestStageLifecycleAdvancesInOrder(t *testing.T) {
	job := processingJob()

	for _, stage := range jobs.StageOrder() {
		next, ok := job.NextPendingStage()
		if !ok || next != stage {
			t.Fatalf("expected next stage %s, got %s (ok=%v)", stage, next, ok)
		}
		if err := job.BeginStage(stage); err != nil {
			t.Fatalf("BeginStage(%s) failed: %v", stage, err)
		}
		if job.CurrentStage != stage {
			t.Fatalf("current stage = %s, want %s", job.CurrentStage, stage)
		}
		if err := job.CheckStageInvariant(); err != nil {
			t.Fatalf("invariant violated during %s: %v", stage, err)
		}
		if err := job.CompleteStage(stage); err != nil {
			t.Fatalf("CompleteStage(%s) failed: %v", stage, err)
		}
	}

	if job.Status != jobs.StatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if job.CompletedAt == nil {
		t.Error("completed job should record completion time")
	}
}

func TestBeginStageRejectsOutOfOrder(t *testing.T) {
	job := processingJob()

	err := job.BeginStage(jobs.StageTranscribe)
	if err == nil {
		t.Fatal("expected error when skipping ahead")
	}
	if !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("error should wrap ErrInvalidState: %v", err)
	}
	if job.StageState(jobs.StageTranscribe) != jobs.StagePending {
		t.Error("rejected transition should not mutate stage state")
	}
}

func TestBeginStageRequiresProcessingJob(t *testing.T) {
	job := processingJob()
	job.Status = jobs.StatusQueued

	if err := job.BeginStage(jobs.StageExtractAudio); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("expected invalid state error, got %v", err)
	}
}

func TestProgressIsMonotoneAndRounded(t *testing.T) {
	job := processingJob()

	wantAfter := []int{14, 29, 43, 57, 71, 86, 100}
	last := 0
	for i, stage := range jobs.StageOrder() {
		if err := job.BeginStage(stage); err != nil {
			t.Fatalf("BeginStage(%s) failed: %v", stage, err)
		}
		if err := job.CompleteStage(stage); err != nil {
			t.Fatalf("CompleteStage(%s) failed: %v", stage, err)
		}
		if job.Progress != wantAfter[i] {
			t.Errorf("progress after %d stages = %d, want %d", i+1, job.Progress, wantAfter[i])
		}
		if job.Progress < last {
			t.Errorf("progress decreased from %d to %d", last, job.Progress)
		}
		last = job.Progress
	}
}

func TestFailStageHaltsPipeline(t *testing.T) {
	job := processingJob()
	if err := job.BeginStage(jobs.StageExtractAudio); err != nil {
		t.Fatalf("BeginStage failed: %v", err)
	}
	if err := job.CompleteStage(jobs.StageExtractAudio); err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}
	if err := job.BeginStage(jobs.StageExtractFrames); err != nil {
		t.Fatalf("BeginStage failed: %v", err)
	}

	if err := job.FailStage(jobs.StageExtractFrames, "ffmpeg exited 1"); err != nil {
		t.Fatalf("FailStage failed: %v", err)
	}
	if job.Status != jobs.StatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
	if job.ErrorMessage != "ffmpeg exited 1" {
		t.Errorf("error message = %q", job.ErrorMessage)
	}
	if _, ok := job.NextPendingStage(); ok {
		t.Error("failed stage should block further dispatch")
	}
	for _, stage := range jobs.StageOrder()[2:] {
		if job.StageState(stage) != jobs.StagePending {
			t.Errorf("stage %s should remain pending after failure", stage)
		}
	}
}

func TestPrepareRetryRewindsOnlyFailedStage(t *testing.T) {
	job := processingJob()
	for _, stage := range jobs.StageOrder()[:3] {
		if err := job.BeginStage(stage); err != nil {
			t.Fatalf("BeginStage failed: %v", err)
		}
		if err := job.CompleteStage(stage); err != nil {
			t.Fatalf("CompleteStage failed: %v", err)
		}
	}
	if err := job.BeginStage(jobs.StageOCR); err != nil {
		t.Fatalf("BeginStage failed: %v", err)
	}
	if err := job.FailStage(jobs.StageOCR, "tesseract missing"); err != nil {
		t.Fatalf("FailStage failed: %v", err)
	}
	progressBefore := job.Progress

	if err := job.PrepareRetry(); err != nil {
		t.Fatalf("PrepareRetry failed: %v", err)
	}
	if job.Status != jobs.StatusQueued {
		t.Errorf("job status = %s, want queued", job.Status)
	}
	if job.ErrorMessage != "" {
		t.Errorf("error message should clear, got %q", job.ErrorMessage)
	}
	if job.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", job.RetryCount)
	}
	if job.Progress != progressBefore {
		t.Errorf("retry changed progress from %d to %d", progressBefore, job.Progress)
	}
	for _, stage := range jobs.StageOrder()[:3] {
		if job.StageState(stage) != jobs.StageCompleted {
			t.Errorf("completed stage %s should survive retry", stage)
		}
	}
	if next, ok := job.NextPendingStage(); !ok || next != jobs.StageOCR {
		t.Errorf("next stage after retry = %s (ok=%v), want ocr", next, ok)
	}
}

func TestPrepareRetryRejectsNonFailedJobs(t *testing.T) {
	job := processingJob()
	job.Status = jobs.StatusQueued
	if err := job.PrepareRetry(); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("expected invalid state error, got %v", err)
	}
}

func TestMarkCancelledRewindsInFlightStage(t *testing.T) {
	job := processingJob()
	if err := job.BeginStage(jobs.StageExtractAudio); err != nil {
		t.Fatalf("BeginStage failed: %v", err)
	}

	job.MarkCancelled()
	if job.Status != jobs.StatusCancelled {
		t.Errorf("job status = %s, want cancelled", job.Status)
	}
	if job.StageState(jobs.StageExtractAudio) != jobs.StagePending {
		t.Error("in-flight stage should rewind to pending on cancellation")
	}
	if err := job.CheckStageInvariant(); err != nil {
		t.Errorf("cancelled job violates stage invariant: %v", err)
	}
}

func TestCheckStageInvariantRejectsHoles(t *testing.T) {
	job := processingJob()
	job.StageStates[jobs.StageExtractAudio] = jobs.StageCompleted
	job.StageStates[jobs.StageTranscribe] = jobs.StageCompleted // hole at extract_frames

	if err := job.CheckStageInvariant(); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("expected invariant violation, got %v", err)
	}
}

func TestInferTitle(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/incoming/intro_to_compilers.mp4", "intro to compilers"},
		{"/incoming/Week 3 - Parsing.mkv", "Week 3 - Parsing"},
		{"lecture.01.linear.algebra.webm", "lecture 01 linear algebra"},
	}
	for _, tc := range cases {
		if got := jobs.InferTitle(tc.path); got != tc.want {
			t.Errorf("InferTitle(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
