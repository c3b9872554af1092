package api

import "time"

// Status represents the lifecycle state of a workflow invocation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Invocation records one run of a workflow: what was asked, what came out,
// and how it ended. Outputs from a failed invocation are discarded; only
// completed invocations carry outputs.
type Invocation struct {
	ID       string
	Workflow string
	Status   Status

	Inputs  map[string]any
	Outputs map[string]any

	// FailedStep is the id of the step whose failure aborted the
	// invocation, if any.
	FailedStep string
	Err        error

	StartedAt  time.Time
	FinishedAt time.Time
}

// InvocationFilter selects invocations from a store. Zero values mean
// "no filter" for that field.
type InvocationFilter struct {
	// Workflow, if non-empty, limits results to invocations of the given
	// workflow qualified name.
	Workflow string

	// Status, if non-empty, limits results to invocations with the given
	// status.
	Status Status
}
