// Package task carries the shared contract for reporting and querying
// background-job progress, plus an in-process worker-pool queue that
// executes submitted jobs.
package task

import "context"

// State is the lifecycle state of a background job.
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Progress is the payload a job pushes as it advances. Within one job
// Current is monotonically non-decreasing and ends equal to Total.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Status is the latest known state of one task, as seen by a polling
// caller. Only the last pushed progress payload is retained; delivery
// of every intermediate update is not guaranteed.
type Status struct {
	ID       string   `json:"id"`
	State    State    `json:"state"`
	Progress Progress `json:"progress"`

	// Reason holds the failure reason when State is StateFailure.
	Reason string `json:"reason,omitempty"`
}

// Reporter pushes progress updates from inside a job body.
type Reporter interface {
	Report(p Progress)
}

// Job is one unit of background work. The returned error decides the
// terminal state: nil means success, anything else failure.
type Job func(ctx context.Context, r Reporter) error
