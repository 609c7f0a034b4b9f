package transcribe

import (
	"errors"
	"io/fs"
	"os"

	"appshell/internal/logging"
)

// stage writes the audio payload and prepares the engine output directory.
// The audio file is created exclusively; a job whose paths already exist
// gives up its paths so cleanup leaves the other job's files alone.
func (o *Orchestrator) stage(job *Job, data []byte) error {
	if err := o.writeFile(job.AudioPath, data, 0o600); err != nil {
		if errors.Is(err, fs.ErrExist) {
			job.AudioPath, job.OutputDir = "", ""
		}
		return newJobError(KindStageFailed, job.ID, "write staged audio", err)
	}

	if err := o.mkdirAll(job.OutputDir, 0o755); err != nil {
		logging.WarnWithContext(o.logger, "create engine output directory failed", "stage_output_dir_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("output_dir", job.OutputDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "engine may be unable to write its transcript"),
		)
	}

	if o.settings.ModelDir != "" {
		if err := o.mkdirAll(o.settings.ModelDir, 0o755); err != nil {
			logging.WarnWithContext(o.logger, "create model cache directory failed", "stage_model_dir_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("model_dir", o.settings.ModelDir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the application data directory"),
			)
		}
	}
	return nil
}

// writeNewFile is os.WriteFile that refuses to replace an existing file.
func writeNewFile(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
