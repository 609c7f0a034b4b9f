package transcribe

import (
	"errors"
	"fmt"
)

// Kind classifies why a job did not complete.
type Kind string

const (
	KindInvalidAudio Kind = "invalid_audio"
	KindStageFailed  Kind = "stage_failed"
	KindEngineFailed Kind = "engine_failed"
	KindTimedOut     Kind = "timed_out"
	KindNoOutput     Kind = "no_output"
	KindUnexpected   Kind = "unexpected"
)

var (
	ErrInvalidAudio = errors.New("invalid audio payload")
	ErrStageFailed  = errors.New("audio staging failed")
	ErrEngineFailed = errors.New("speech engine failed")
	ErrTimedOut     = fmt.Errorf("speech engine timed out: %w", ErrEngineFailed)
	ErrNoOutput     = errors.New("speech engine produced no transcript")
	ErrUnexpected   = errors.New("unexpected transcription failure")
)

// JobError is a classified job failure with optional engine diagnostics.
type JobError struct {
	Kind    Kind
	JobID   string
	Message string
	// Detail is the bounded diagnostic bundle; only set for engine failures.
	Detail string
	Err    error
}

// Error formats job failures for logs.
func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *JobError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindInvalidAudio:
		return target == ErrInvalidAudio
	case KindStageFailed:
		return target == ErrStageFailed
	case KindEngineFailed:
		return target == ErrEngineFailed
	case KindTimedOut:
		return target == ErrTimedOut || target == ErrEngineFailed
	case KindNoOutput:
		return target == ErrNoOutput
	case KindUnexpected:
		return target == ErrUnexpected
	}
	return false
}

func newJobError(kind Kind, jobID, message string, err error) *JobError {
	return &JobError{Kind: kind, JobID: jobID, Message: message, Err: err}
}
