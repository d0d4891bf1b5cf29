package stage

import (
	"context"

	"lectern/internal/jobs"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	Prepare(context.Context, *jobs.Job) error
	Execute(context.Context, *jobs.Job) error
	HealthCheck(context.Context) Health
}
