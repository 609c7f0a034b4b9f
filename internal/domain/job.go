package domain

import "time"

// JobState tracks one transcription job through its lifecycle.
type JobState string

const (
	JobStateCreated      JobState = "created"
	JobStateStaged       JobState = "staged"
	JobStateRunning      JobState = "running"
	JobStateCompleted    JobState = "completed"
	JobStateEngineFailed JobState = "engine_failed"
	JobStateTimedOut     JobState = "timed_out"
	JobStateNoOutput     JobState = "no_output"
	JobStateStageFailed  JobState = "stage_failed"
	JobStateUnexpected   JobState = "unexpected"
)

// IsTerminal reports whether no further transition can leave the state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted,
		JobStateEngineFailed,
		JobStateTimedOut,
		JobStateNoOutput,
		JobStateStageFailed,
		JobStateUnexpected:
		return true
	default:
		return false
	}
}

// ValidJobTransition enforces the allowed job state machine edges.
func ValidJobTransition(from, to JobState) bool {
	if to == JobStateUnexpected {
		return !from.IsTerminal()
	}
	switch from {
	case JobStateCreated:
		return to == JobStateStaged || to == JobStateStageFailed
	case JobStateStaged:
		return to == JobStateRunning
	case JobStateRunning:
		return to == JobStateCompleted ||
			to == JobStateEngineFailed ||
			to == JobStateTimedOut ||
			to == JobStateNoOutput
	default:
		return false
	}
}

// JobSnapshot is the externally visible view of one job.
type JobSnapshot struct {
	ID         string        `json:"id"`
	State      JobState      `json:"state"`
	Ext        string        `json:"ext,omitempty"`
	ExitCode   int           `json:"exitCode,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	Duration   time.Duration `json:"duration,omitempty"`
	ErrorLabel string        `json:"error,omitempty"`
}
