package transcribe

import (
	"time"

	"appshell/internal/domain"
)

// Transition describes one job state change.
type Transition struct {
	JobID    string
	From     domain.JobState
	To       domain.JobState
	At       time.Time
	Started  time.Time
	ExitCode int
	// Label is the response error label for failed terminal states.
	Label string
}

// Elapsed is the time since the job was created.
func (t Transition) Elapsed() time.Duration {
	return t.At.Sub(t.Started)
}

// Observer receives job transitions. Implementations must not block.
type Observer interface {
	JobTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// JobTransition calls f.
func (f ObserverFunc) JobTransition(t Transition) {
	f(t)
}
