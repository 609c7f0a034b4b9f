package transcribe

import (
	"errors"
	"path/filepath"
	"strings"

	"appshell/internal/logging"
)

// transcriptSuffix is the artifact the engine writes with --output_format txt.
const transcriptSuffix = ".txt"

var (
	errNoArtifact      = errors.New("no transcript artifact in output directory")
	errEmptyTranscript = errors.New("transcript artifact is empty")
)

// extract reads the first .txt artifact in the job's output directory.
// Directory order is the lexical order os.ReadDir returns.
func (o *Orchestrator) extract(job *Job) (string, error) {
	entries, err := o.readDir(job.OutputDir)
	if err != nil {
		return "", newJobError(KindNoOutput, job.ID, "list engine output", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), transcriptSuffix) {
			continue
		}

		path := filepath.Join(job.OutputDir, entry.Name())
		content, err := o.readFile(path)
		if err != nil {
			return "", newJobError(KindNoOutput, job.ID, "read transcript", err)
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			return "", newJobError(KindNoOutput, job.ID, "read transcript", errEmptyTranscript)
		}
		o.logger.Debug("transcript extracted",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("artifact", entry.Name()),
			logging.Int("chars", len(text)),
		)
		return text, nil
	}

	return "", newJobError(KindNoOutput, job.ID, "locate transcript", errNoArtifact)
}
