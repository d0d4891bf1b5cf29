package api

import (
	"time"

	"lectern/internal/jobs"
)

// JobView is the wire representation of a job snapshot.
type JobView struct {
	ID           string            `json:"id"`
	SourcePath   string            `json:"sourcePath"`
	Title        string            `json:"title,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Status       string            `json:"status"`
	CurrentStage string            `json:"currentStage,omitempty"`
	Progress     int               `json:"progress"`
	Stages       map[string]string `json:"stages"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	RetryCount   int               `json:"retryCount,omitempty"`
	OutputPath   string            `json:"outputPath,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	StartedAt    string            `json:"startedAt,omitempty"`
	CompletedAt  string            `json:"completedAt,omitempty"`
}

// ToJobView converts a job into its wire representation.
func ToJobView(job *jobs.Job) JobView {
	view := JobView{
		ID:           job.ID,
		SourcePath:   job.SourcePath,
		Title:        job.Title,
		Owner:        job.OwnerID,
		Status:       string(job.Status),
		CurrentStage: string(job.CurrentStage),
		Progress:     job.Progress,
		Stages:       make(map[string]string, len(jobs.StageOrder())),
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		OutputPath:   job.Artifacts.OutputPath,
		CreatedAt:    formatViewTime(job.CreatedAt),
	}
	for _, stage := range jobs.StageOrder() {
		view.Stages[string(stage)] = string(job.StageState(stage))
	}
	if job.StartedAt != nil {
		view.StartedAt = formatViewTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		view.CompletedAt = formatViewTime(*job.CompletedAt)
	}
	return view
}

// ToJobViews converts a job list, preserving order.
func ToJobViews(items []*jobs.Job) []JobView {
	views := make([]JobView, 0, len(items))
	for _, job := range items {
		views = append(views, ToJobView(job))
	}
	return views
}

func formatViewTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
