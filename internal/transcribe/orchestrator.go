package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"appshell/internal/config"
	"appshell/internal/domain"
	"appshell/internal/logging"
)

// Settings is the fixed engine configuration for every job.
type Settings struct {
	Command         string
	PrefixArgs      []string
	EngineDir       string
	Language        string
	Model           string
	ModelDir        string
	Timeout         time.Duration
	StagingDir      string
	JobPrefix       string
	DefaultExt      string
	DiagnosticLimit int
	ExtraPathDirs   []string
}

// SettingsFromConfig maps the [engine] config section.
func SettingsFromConfig(e config.Engine) Settings {
	return Settings{
		Command:         e.Command,
		PrefixArgs:      append([]string(nil), e.PrefixArgs...),
		EngineDir:       e.Dir,
		Language:        e.Language,
		Model:           e.Model,
		ModelDir:        e.ModelDir,
		Timeout:         e.Timeout(),
		StagingDir:      e.StagingDir,
		JobPrefix:       e.JobPrefix,
		DefaultExt:      e.DefaultExt,
		DiagnosticLimit: e.DiagnosticLimit,
		ExtraPathDirs:   append([]string(nil), e.ExtraPathDirs...),
	}
}

// Orchestrator runs transcription jobs. It holds no per-job state and is
// safe for concurrent use.
type Orchestrator struct {
	settings  Settings
	logger    *slog.Logger
	observers []Observer
	runner    commandRunner
	env       *EnvResolver
	now       func() time.Time
	newSuffix func() string
	mkdirAll  func(path string, perm os.FileMode) error
	writeFile func(name string, data []byte, perm os.FileMode) error
	stat      func(name string) (os.FileInfo, error)
	readDir   func(name string) ([]os.DirEntry, error)
	readFile  func(name string) ([]byte, error)
	remove    func(name string) error
}

// New constructs the production orchestrator with OS dependencies.
func New(settings Settings, logger *slog.Logger, observers ...Observer) *Orchestrator {
	settings = withDefaults(settings)
	logger = logging.NewComponentLogger(logger, "transcribe")

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Debug("user home unavailable; home-relative codec paths skipped", logging.Error(err))
	}

	return &Orchestrator{
		settings:  settings,
		logger:    logger,
		observers: observers,
		runner:    &execRunner{},
		env: &EnvResolver{
			GOOS:      runtime.GOOS,
			Home:      home,
			ExtraDirs: settings.ExtraPathDirs,
			Environ:   os.Environ,
			Stat:      os.Stat,
			Logger:    logger,
		},
		now:       time.Now,
		newSuffix: randomSuffix,
		mkdirAll:  os.MkdirAll,
		writeFile: writeNewFile,
		stat:      os.Stat,
		readDir:   os.ReadDir,
		readFile:  os.ReadFile,
		remove:    os.Remove,
	}
}

func withDefaults(s Settings) Settings {
	if s.Command == "" {
		s.Command = config.DefaultEngineCommand(runtime.GOOS)
	}
	if s.Language == "" {
		s.Language = "de"
	}
	if s.Model == "" {
		s.Model = "tiny"
	}
	if s.Timeout <= 0 {
		s.Timeout = 180 * time.Second
	}
	if s.StagingDir == "" {
		s.StagingDir = os.TempDir()
	}
	if s.JobPrefix == "" {
		s.JobPrefix = "appshell_voice_"
	}
	if s.DefaultExt == "" {
		s.DefaultExt = "webm"
	}
	if s.DiagnosticLimit <= 0 {
		s.DiagnosticLimit = 4000
	}
	return s
}

// Settings returns the engine configuration in effect.
func (o *Orchestrator) Settings() Settings {
	return o.settings
}

// Environment returns the environment the engine would be launched with.
func (o *Orchestrator) Environment() []string {
	return o.env.Resolve()
}

// PathValue returns PATH from a resolved environment.
func (o *Orchestrator) PathValue(env []string) string {
	return o.env.PathValue(env)
}

// Transcribe runs one job and converts its outcome into a Response.
func (o *Orchestrator) Transcribe(ctx context.Context, req Request) Response {
	return ResponseFor(o.Run(ctx, req))
}

// Run stages the audio, runs the engine, extracts the transcript, and removes
// every temporary file before returning. Errors are always *JobError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (text string, err error) {
	if len(req.Data) == 0 || req.Ext == "" {
		o.logger.Info("transcription rejected",
			logging.String(logging.FieldEventType, "transcribe_invalid_audio"),
			logging.Int("bytes", len(req.Data)),
			logging.Bool("has_ext", req.Ext != ""),
		)
		return "", newJobError(KindInvalidAudio, "", "audio data and extension are required", nil)
	}

	job := o.newJob(req.Ext)
	o.notify(job, "", job.State, "")
	logger := o.logger.With(logging.String(logging.FieldJobID, job.ID))
	logger.Info("transcription started",
		logging.String("ext", job.Ext),
		logging.Int("bytes", len(req.Data)),
	)

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("%v", r)
			logger.Error("transcription panicked", logging.Error(cause))
			o.finish(job, domain.JobStateUnexpected, cause.Error())
			text, err = "", newJobError(KindUnexpected, job.ID, "transcription aborted", cause)
		}

		if failures := o.cleanup(job); failures > 0 {
			logger.Debug("cleanup incomplete", logging.Int("failures", failures))
		}

		attrs := []logging.Attr{
			logging.String("state", string(job.State)),
			logging.Int("exit_code", job.ExitCode),
			logging.Duration("elapsed", job.UpdatedAt.Sub(job.StartedAt)),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		logger.Info("transcription finished", logging.Args(attrs...)...)
	}()

	return o.execute(ctx, job, req.Data)
}

func (o *Orchestrator) execute(ctx context.Context, job *Job, data []byte) (string, error) {
	if err := o.stage(job, data); err != nil {
		o.finish(job, domain.JobStateStageFailed, LabelWriteFailed)
		return "", err
	}
	o.advance(job, domain.JobStateStaged)

	spec := o.commandSpec(job, o.env.Resolve())
	o.advance(job, domain.JobStateRunning)

	result, runErr := o.runner.Run(ctx, spec)
	job.ExitCode = result.ExitCode
	job.Stdout = result.Stdout
	job.Stderr = result.Stderr

	switch {
	case result.TimedOut:
		jobErr := newJobError(KindTimedOut, job.ID, fmt.Sprintf("engine exceeded %s", spec.Timeout), runErr)
		jobErr.Detail = o.diagnosticDetail(spec, job)
		o.finish(job, domain.JobStateTimedOut, LabelWhisperFailed)
		return "", jobErr
	case runErr != nil && ctx.Err() != nil:
		o.finish(job, domain.JobStateUnexpected, ctx.Err().Error())
		return "", newJobError(KindUnexpected, job.ID, "transcription interrupted", ctx.Err())
	case runErr != nil || result.ExitCode != 0:
		if runErr == nil {
			runErr = fmt.Errorf("exit status %d", result.ExitCode)
		}
		jobErr := newJobError(KindEngineFailed, job.ID, "engine exited unsuccessfully", runErr)
		jobErr.Detail = o.diagnosticDetail(spec, job)
		o.finish(job, domain.JobStateEngineFailed, LabelWhisperFailed)
		return "", jobErr
	}

	text, err := o.extract(job)
	if err != nil {
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			o.logger.Info("engine produced no usable transcript",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("reason", jobErr.Error()),
			)
		}
		o.finish(job, domain.JobStateNoOutput, LabelNoTranscript)
		return "", err
	}

	job.Text = text
	o.finish(job, domain.JobStateCompleted, "")
	return text, nil
}

func (o *Orchestrator) newJob(rawExt string) *Job {
	now := o.now()
	ext := SanitizeExt(rawExt, o.settings.DefaultExt)
	id := newJobID(o.settings.JobPrefix, now, o.newSuffix())
	audioPath, outputDir := jobPaths(o.settings.StagingDir, id, ext)
	return &Job{
		ID:        id,
		Ext:       ext,
		AudioPath: audioPath,
		OutputDir: outputDir,
		State:     domain.JobStateCreated,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// advance applies a non-terminal transition.
func (o *Orchestrator) advance(job *Job, to domain.JobState) {
	o.finish(job, to, "")
}

// finish applies a transition and notifies observers.
func (o *Orchestrator) finish(job *Job, to domain.JobState, label string) {
	from := job.State
	if err := job.transition(to, o.now()); err != nil {
		o.logger.Error("job state machine violation", logging.Error(err))
		return
	}
	o.notify(job, from, to, label)
}

func (o *Orchestrator) notify(job *Job, from, to domain.JobState, label string) {
	t := Transition{
		JobID:    job.ID,
		From:     from,
		To:       to,
		At:       job.UpdatedAt,
		Started:  job.StartedAt,
		ExitCode: job.ExitCode,
		Label:    label,
	}
	for _, observer := range o.observers {
		observer.JobTransition(t)
	}
}

func (o *Orchestrator) commandSpec(job *Job, env []string) commandSpec {
	return commandSpec{
		Name:    o.settings.Command,
		Args:    append(append([]string(nil), o.settings.PrefixArgs...), buildEngineArgs(o.settings, job)...),
		Dir:     o.workDir(job),
		Env:     env,
		Timeout: o.settings.Timeout,
	}
}

// workDir returns the engine directory when it exists. Otherwise the child
// inherits the current directory, since a missing cwd fails the launch.
func (o *Orchestrator) workDir(job *Job) string {
	dir := o.settings.EngineDir
	if dir == "" {
		return ""
	}
	if info, err := o.stat(dir); err != nil || !info.IsDir() {
		o.logger.Debug("engine directory unavailable; using current directory",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("engine_dir", dir),
		)
		return ""
	}
	return dir
}

// buildEngineArgs builds the engine argument vector for one job.
func buildEngineArgs(s Settings, job *Job) []string {
	return []string{
		job.AudioPath,
		"--language", s.Language,
		"--model", s.Model,
		"--model_dir", s.ModelDir,
		"--fp16", "False",
		"--task", "transcribe",
		"--verbose", "False",
		"--output_format", "txt",
		"--output_dir", job.OutputDir,
	}
}

// diagnosticDetail renders the bounded failure bundle shown to operators.
func (o *Orchestrator) diagnosticDetail(spec commandSpec, job *Job) string {
	var args bytes.Buffer
	enc := json.NewEncoder(&args)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(spec.Args); err != nil {
		args.Reset()
		args.WriteString(strings.Join(spec.Args, " "))
	}

	return strings.Join([]string{
		"code=" + strconv.Itoa(job.ExitCode),
		"python=" + spec.Name,
		"cwd=" + spec.Dir,
		"audio=" + job.AudioPath,
		"args=" + strings.TrimSpace(args.String()),
		"stdout=" + truncateChars(job.Stdout, o.settings.DiagnosticLimit),
		"stderr=" + truncateChars(job.Stderr, o.settings.DiagnosticLimit),
	}, " | ")
}

// truncateChars keeps at most limit characters (runes) of s.
func truncateChars(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
