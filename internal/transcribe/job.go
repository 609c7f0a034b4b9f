package transcribe

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"appshell/internal/domain"
)

// TimeoutExitCode is reported when the engine is killed at the deadline.
const TimeoutExitCode = 124

// LaunchFailedExitCode is reported when the engine process never started.
const LaunchFailedExitCode = -1

// Job is the per-request state owned by one Run call.
type Job struct {
	ID        string
	Ext       string
	AudioPath string
	OutputDir string
	State     domain.JobState
	ExitCode  int
	Stdout    string
	Stderr    string
	Text      string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns the externally visible view of the job.
func (j *Job) Snapshot() domain.JobSnapshot {
	return domain.JobSnapshot{
		ID:        j.ID,
		State:     j.State,
		Ext:       j.Ext,
		ExitCode:  j.ExitCode,
		StartedAt: j.StartedAt,
		UpdatedAt: j.UpdatedAt,
		Duration:  j.UpdatedAt.Sub(j.StartedAt),
	}
}

// transition moves the job to a new state if the edge is allowed.
func (j *Job) transition(to domain.JobState, at time.Time) error {
	if !domain.ValidJobTransition(j.State, to) {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.State, to)
	}
	j.State = to
	j.UpdatedAt = at
	return nil
}

// SanitizeExt keeps ASCII letters and digits, lowercased. An empty result
// falls back to fallback.
func SanitizeExt(raw, fallback string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// newJobID builds "<prefix><unix millis>_<suffix>".
func newJobID(prefix string, now time.Time, suffix string) string {
	return prefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + suffix
}

// randomSuffix returns twelve lowercase hex digits taken from a UUIDv4.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// jobPaths derives the staged audio path and engine output directory.
func jobPaths(root, id, ext string) (audioPath, outputDir string) {
	return filepath.Join(root, id+"."+ext), filepath.Join(root, id+"_out")
}
