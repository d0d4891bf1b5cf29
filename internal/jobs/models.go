package jobs

import (
	"fmt"
	"math"
	"strings"
	"time"

	"lectern/internal/services"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageExtractAudio   Stage = "extract_audio"
	StageExtractFrames  Stage = "extract_frames"
	StageTranscribe     Stage = "transcribe"
	StageOCR            Stage = "ocr"
	StageIntegrate      Stage = "integrate"
	StageSummarize      Stage = "summarize"
	StageGenerateOutput Stage = "generate_output"
)

var stageOrder = []Stage{
	StageExtractAudio,
	StageExtractFrames,
	StageTranscribe,
	StageOCR,
	StageIntegrate,
	StageSummarize,
	StageGenerateOutput,
}

// StageOrder returns the fixed pipeline order.
func StageOrder() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// StageStatus represents the state of a single stage within a job.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// ParseStageStatus converts a string into a known StageStatus.
func ParseStageStatus(value string) (StageStatus, bool) {
	switch normalized := StageStatus(strings.ToLower(strings.TrimSpace(value))); normalized {
	case StagePending, StageProcessing, StageCompleted, StageFailed:
		return normalized, true
	default:
		return "", false
	}
}

// Artifacts records the durable outputs of completed stages. A non-empty
// path means the producing stage completed and its output may be reused
// on retry instead of being recomputed.
type Artifacts struct {
	AudioPath      string
	FramesPath     string
	TranscriptPath string
	OCRFramesPath  string
	ChaptersPath   string
	SummaryPath    string
	OutputPath     string
}

// Job represents one source video moving through the pipeline,
// persisted in SQLite.
type Job struct {
	ID              string
	SourcePath      string
	Title           string
	OwnerID         string
	Status          Status
	StageStates     map[Stage]StageStatus
	CurrentStage    Stage
	Progress        int
	ErrorMessage    string
	CancelRequested bool
	RetryCount      int
	Artifacts       Artifacts
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewStageStates returns a fresh stage map with every stage pending.
func NewStageStates() map[Stage]StageStatus {
	states := make(map[Stage]StageStatus, len(stageOrder))
	for _, stage := range stageOrder {
		states[stage] = StagePending
	}
	return states
}

// StageState returns the recorded status of a stage, defaulting to pending.
func (j *Job) StageState(stage Stage) StageStatus {
	if j.StageStates == nil {
		return StagePending
	}
	if status, ok := j.StageStates[stage]; ok {
		return status
	}
	return StagePending
}

func (j *Job) setStageState(stage Stage, status StageStatus) {
	if j.StageStates == nil {
		j.StageStates = NewStageStates()
	}
	j.StageStates[stage] = status
}

// CompletedStages counts stages recorded as completed.
func (j *Job) CompletedStages() int {
	count := 0
	for _, stage := range stageOrder {
		if j.StageState(stage) == StageCompleted {
			count++
		}
	}
	return count
}

// ComputeProgress derives the percentage from completed stage count,
// rounded to the nearest integer. It reaches 100 only when every stage
// has completed.
func (j *Job) ComputeProgress() int {
	return int(math.Round(100 * float64(j.CompletedStages()) / float64(len(stageOrder))))
}

func (j *Job) refreshProgress() {
	if next := j.ComputeProgress(); next > j.Progress {
		j.Progress = next
	}
}

// NextPendingStage returns the first stage still pending, in pipeline
// order. The second result is false when every stage has completed.
func (j *Job) NextPendingStage() (Stage, bool) {
	for _, stage := range stageOrder {
		switch j.StageState(stage) {
		case StageCompleted:
			continue
		case StagePending:
			return stage, true
		default:
			// A processing or failed stage blocks everything after it.
			return "", false
		}
	}
	return "", false
}

// BeginStage transitions a stage from pending to processing. Exactly one
// stage may be processing at a time, and only the first pending stage
// after the completed prefix is eligible.
func (j *Job) BeginStage(stage Stage) error {
	if j.Status != StatusProcessing {
		return services.Wrap(services.ErrInvalidState, string(stage), "begin stage",
			fmt.Sprintf("job is %s, not processing", j.Status), nil)
	}
	next, ok := j.NextPendingStage()
	if !ok || next != stage {
		return services.Wrap(services.ErrInvalidState, string(stage), "begin stage",
			"stage is not next in pipeline order", nil)
	}
	j.setStageState(stage, StageProcessing)
	j.CurrentStage = stage
	return nil
}

// CompleteStage transitions a processing stage to completed and refreshes
// the progress percentage.
func (j *Job) CompleteStage(stage Stage) error {
	if j.StageState(stage) != StageProcessing {
		return services.Wrap(services.ErrInvalidState, string(stage), "complete stage",
			fmt.Sprintf("stage is %s, not processing", j.StageState(stage)), nil)
	}
	j.setStageState(stage, StageCompleted)
	j.CurrentStage = ""
	j.refreshProgress()
	if j.CompletedStages() == len(stageOrder) {
		j.Status = StatusCompleted
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	return nil
}

// FailStage marks the in-flight stage failed and halts the job. Stages
// after the failed one stay pending so a retry can resume in place.
func (j *Job) FailStage(stage Stage, message string) error {
	if j.StageState(stage) != StageProcessing {
		return services.Wrap(services.ErrInvalidState, string(stage), "fail stage",
			fmt.Sprintf("stage is %s, not processing", j.StageState(stage)), nil)
	}
	j.setStageState(stage, StageFailed)
	j.CurrentStage = stage
	j.Status = StatusFailed
	j.ErrorMessage = message
	return nil
}

// FailedStage returns the stage recorded as failed, if any.
func (j *Job) FailedStage() (Stage, bool) {
	for _, stage := range stageOrder {
		if j.StageState(stage) == StageFailed {
			return stage, true
		}
	}
	return "", false
}

// PrepareRetry rewinds a failed job for another attempt. Only the failed
// stage resets to pending; completed stages keep their recorded
// artifacts and are not recomputed.
func (j *Job) PrepareRetry() error {
	if j.Status != StatusFailed {
		return services.Wrap(services.ErrInvalidState, "", "retry",
			fmt.Sprintf("job is %s, only failed jobs can be retried", j.Status), nil)
	}
	stage, ok := j.FailedStage()
	if !ok {
		return services.Wrap(services.ErrInvalidState, "", "retry",
			"failed job has no failed stage recorded", nil)
	}
	j.setStageState(stage, StagePending)
	j.Status = StatusQueued
	j.CurrentStage = ""
	j.ErrorMessage = ""
	j.RetryCount++
	return nil
}

// MarkCancelled records a terminal cancellation. An in-flight stage is
// rewound to pending so the record never shows processing work on a
// cancelled job.
func (j *Job) MarkCancelled() {
	for _, stage := range stageOrder {
		if j.StageState(stage) == StageProcessing {
			j.setStageState(stage, StagePending)
		}
	}
	j.Status = StatusCancelled
	j.CurrentStage = ""
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// CheckStageInvariant verifies the structural shape of the stage map: a
// completed prefix, at most one processing or failed stage immediately
// after it, and a pending suffix.
func (j *Job) CheckStageInvariant() error {
	inPrefix := true
	for _, stage := range stageOrder {
		status := j.StageState(stage)
		switch {
		case inPrefix && status == StageCompleted:
		case inPrefix && status != StageCompleted:
			// The prefix ends at the first non-completed stage; only
			// pending stages may follow it.
			inPrefix = false
		case status != StagePending:
			return services.Wrap(services.ErrInvalidState, string(stage), "stage invariant",
				fmt.Sprintf("unexpected %s stage after pipeline break", status), nil)
		}
	}
	return nil
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}
