package transcribe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"appshell/internal/logging"
)

// cleanup removes the job's staged audio and output directory. Every removal
// is independent; failures are logged and counted but never change the
// job's outcome. Missing paths are not failures, so cleanup is idempotent.
func (o *Orchestrator) cleanup(job *Job) int {
	failures := 0
	if !o.removeQuietly(job, job.AudioPath) {
		failures++
	}

	if job.OutputDir == "" {
		return failures
	}
	entries, err := o.readDir(job.OutputDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		failures++
		logging.WarnWithContext(o.logger, "list engine output for cleanup failed", "cleanup_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("path", job.OutputDir),
			logging.Error(err),
		)
	}
	for _, entry := range entries {
		if !o.removeQuietly(job, filepath.Join(job.OutputDir, entry.Name())) {
			failures++
		}
	}
	if !o.removeQuietly(job, job.OutputDir) {
		failures++
	}
	return failures
}

func (o *Orchestrator) removeQuietly(job *Job, path string) bool {
	if path == "" {
		return true
	}
	err := o.remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	logging.WarnWithContext(o.logger, "remove temporary file failed", "cleanup_failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "file will be removed by the next startup sweep"),
	)
	return false
}

// SweepStale removes leftovers of earlier jobs (files and output
// directories whose name starts with prefix) last modified before cutoff.
// It returns the removed paths.
func SweepStale(root, prefix string, cutoff time.Time) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("sweep: job prefix is required")
	}
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
