package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"lectern/internal/config"
	"lectern/internal/jobs"
	"lectern/internal/logging"
	"lectern/internal/services"
	"lectern/internal/stage"
	"lectern/internal/testsupport"
	"lectern/internal/workflow"
)

type stubStage struct {
	name        string
	mu          sync.Mutex
	executions  int
	prepareHook func(*jobs.Job)
	executeHook func(*jobs.Job)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *jobs.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, job *jobs.Job) error {
	s.mu.Lock()
	s.executions++
	s.mu.Unlock()
	if s.executeHook != nil {
		s.executeHook(job)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions
}

type stubSet struct {
	extractAudio   *stubStage
	extractFrames  *stubStage
	transcribe     *stubStage
	ocr            *stubStage
	integrate      *stubStage
	summarize      *stubStage
	generateOutput *stubStage
}

func newStubSet() *stubSet {
	return &stubSet{
		extractAudio:   newStubStage("extract-audio"),
		extractFrames:  newStubStage("extract-frames"),
		transcribe:     newStubStage("transcribe"),
		ocr:            newStubStage("ocr"),
		integrate:      newStubStage("integrate"),
		summarize:      newStubStage("summarize"),
		generateOutput: newStubStage("generate-output"),
	}
}

func (s *stubSet) stageSet() workflow.StageSet {
	return workflow.StageSet{
		ExtractAudio:   s.extractAudio,
		ExtractFrames:  s.extractFrames,
		Transcribe:     s.transcribe,
		OCR:            s.ocr,
		Integrate:      s.integrate,
		Summarize:      s.summarize,
		GenerateOutput: s.generateOutput,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.MaxConcurrentJobs = 1
	return cfg
}

func startManager(t *testing.T, cfg *config.Config, store *jobs.Store, set workflow.StageSet) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, store *jobs.Store, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to reach %s", id, want)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesJobToCompletion(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	set.extractAudio.executeHook = func(job *jobs.Job) {
		job.Artifacts.AudioPath = "/staging/audio.wav"
	}
	set.generateOutput.executeHook = func(job *jobs.Job) {
		job.Artifacts.OutputPath = "/output/lecture.html"
	}
	mgr := startManager(t, cfg, store, set.stageSet())

	job := testsupport.NewJob(t, store, "/videos/lecture.mp4", "")
	mgr.Notify()

	done := waitForStatus(t, store, job.ID, jobs.StatusCompleted)
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	if done.Artifacts.AudioPath == "" || done.Artifacts.OutputPath == "" {
		t.Errorf("stage artifacts not persisted: %#v", done.Artifacts)
	}
	for _, stageID := range jobs.StageOrder() {
		if done.StageState(stageID) != jobs.StageCompleted {
			t.Errorf("stage %s = %s, want completed", stageID, done.StageState(stageID))
		}
	}
	if set.transcribe.Executions() != 1 {
		t.Errorf("transcribe ran %d times, want 1", set.transcribe.Executions())
	}
}

func TestManagerFailureHaltsPipeline(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	set.transcribe.executeErr = services.Wrap(services.ErrTranscription, "transcribe", "run whisper", "exit status 1", nil)
	mgr := startManager(t, cfg, store, set.stageSet())

	job := testsupport.NewJob(t, store, "/videos/lecture.mp4", "")
	mgr.Notify()

	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	if failed.StageState(jobs.StageTranscribe) != jobs.StageFailed {
		t.Errorf("transcribe stage = %s, want failed", failed.StageState(jobs.StageTranscribe))
	}
	if failed.StageState(jobs.StageOCR) != jobs.StagePending {
		t.Errorf("ocr stage = %s, want pending", failed.StageState(jobs.StageOCR))
	}
	if failed.ErrorMessage != "transcribe: run whisper: exit status 1" {
		t.Errorf("error message = %q", failed.ErrorMessage)
	}
	if set.ocr.Executions() != 0 {
		t.Errorf("ocr ran %d times after upstream failure", set.ocr.Executions())
	}
}

func TestManagerMissingHandlerLeavesJobRetryable(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	stages := set.stageSet()
	stages.Transcribe = nil
	mgr := startManager(t, cfg, store, stages)

	job := testsupport.NewJob(t, store, "/videos/lecture.mp4", "")
	mgr.Notify()
	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)

	if got := failed.StageState(jobs.StageTranscribe); got != jobs.StageFailed {
		t.Errorf("transcribe stage state = %s, want %s", got, jobs.StageFailed)
	}
	if failed.ErrorMessage == "" {
		t.Error("failure reason not recorded")
	}

	// The job must stay retryable even though the stage never began.
	requeued, err := store.Retry(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if requeued.Status != jobs.StatusQueued {
		t.Errorf("status after retry = %s, want %s", requeued.Status, jobs.StatusQueued)
	}
	if got := requeued.StageState(jobs.StageTranscribe); got != jobs.StagePending {
		t.Errorf("transcribe stage state after retry = %s, want %s", got, jobs.StagePending)
	}
}

func TestManagerRetryResumesFromFailedStage(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	var transcribeMu sync.Mutex
	failOnce := true
	set.transcribe.executeHook = func(*jobs.Job) {
		transcribeMu.Lock()
		defer transcribeMu.Unlock()
		if failOnce {
			failOnce = false
			set.transcribe.executeErr = services.Wrap(services.ErrTranscription, "transcribe", "run whisper", "exit status 1", nil)
		} else {
			set.transcribe.executeErr = nil
		}
	}
	mgr := startManager(t, cfg, store, set.stageSet())

	job := testsupport.NewJob(t, store, "/videos/lecture.mp4", "")
	mgr.Notify()
	waitForStatus(t, store, job.ID, jobs.StatusFailed)

	if _, err := store.Retry(context.Background(), job.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	mgr.Notify()

	done := waitForStatus(t, store, job.ID, jobs.StatusCompleted)
	if done.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", done.RetryCount)
	}
	// Completed stages are never recomputed on retry.
	if set.extractAudio.Executions() != 1 {
		t.Errorf("extract audio ran %d times, want 1", set.extractAudio.Executions())
	}
	if set.extractFrames.Executions() != 1 {
		t.Errorf("extract frames ran %d times, want 1", set.extractFrames.Executions())
	}
	if set.transcribe.Executions() != 2 {
		t.Errorf("transcribe ran %d times, want 2", set.transcribe.Executions())
	}
}

func TestManagerHonorsCancelBetweenStages(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	set.extractFrames.executeHook = func(job *jobs.Job) {
		if _, err := store.RequestCancel(context.Background(), job.ID); err != nil {
			t.Errorf("RequestCancel failed: %v", err)
		}
	}
	mgr := startManager(t, cfg, store, set.stageSet())

	job := testsupport.NewJob(t, store, "/videos/lecture.mp4", "")
	mgr.Notify()

	cancelled := waitForStatus(t, store, job.ID, jobs.StatusCancelled)
	// The in-flight stage finishes, then the flag stops the job before
	// the next stage starts.
	if cancelled.StageState(jobs.StageExtractFrames) != jobs.StageCompleted {
		t.Errorf("extract frames stage = %s, want completed", cancelled.StageState(jobs.StageExtractFrames))
	}
	if set.transcribe.Executions() != 0 {
		t.Errorf("transcribe ran %d times after cancel", set.transcribe.Executions())
	}
}

func TestManagerProcessesQueueInOrder(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	var orderMu sync.Mutex
	var order []string
	set := newStubSet()
	set.extractAudio.executeHook = func(job *jobs.Job) {
		orderMu.Lock()
		order = append(order, job.SourcePath)
		orderMu.Unlock()
	}
	mgr := startManager(t, cfg, store, set.stageSet())

	first := testsupport.NewJob(t, store, "/videos/first.mp4", "")
	second := testsupport.NewJob(t, store, "/videos/second.mp4", "")
	mgr.Notify()

	waitForStatus(t, store, first.ID, jobs.StatusCompleted)
	waitForStatus(t, store, second.ID, jobs.StatusCompleted)

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != 2 || order[0] != "/videos/first.mp4" || order[1] != "/videos/second.mp4" {
		t.Errorf("jobs processed out of order: %v", order)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := newStubSet()
	set.ocr.health = stage.Unhealthy("ocr", "tesseract binary not found")

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set.stageSet())

	status := mgr.Status(context.Background())
	if status.Running {
		t.Error("manager should not report running before Start")
	}
	health, ok := status.StageHealth[jobs.StageOCR]
	if !ok {
		t.Fatal("expected stage health entry for ocr")
	}
	if health.Ready {
		t.Error("ocr health should be unready")
	}
	if health.Detail != "tesseract binary not found" {
		t.Errorf("health detail = %q", health.Detail)
	}
}
