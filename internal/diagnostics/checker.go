package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"appshell/internal/domain"
	"appshell/internal/transcribe"
)

// Checker validates the speech engine, its codec dependency, and the
// directories a transcription job writes to.
type Checker struct {
	goos       string
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		goos:       runtime.GOOS,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks. pathValue is the PATH the engine will be
// launched with, after codec directory resolution.
func (c *Checker) Run(settings transcribe.Settings, pathValue string) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("engine", settings.Command, pathValue, "Install Python 3 and openai-whisper, or set engine.command in the config file."),
		c.checkTool("ffmpeg", "ffmpeg", pathValue, "Install ffmpeg or add its directory to engine.extra_path_dirs."),
		c.checkModel(settings.Model),
		c.checkEngineDir(settings.EngineDir),
		c.checkWritableDir("model_dir", "Model cache", settings.ModelDir, "The engine downloads models here on first use."),
		c.checkWritableDir("staging_dir", "Staging directory", settings.StagingDir, "Recorded audio is written here before transcription."),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies an executable is reachable on the given PATH.
func (c *Checker) checkTool(id, name, pathValue, hint string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool_" + id,
		Name: name,
	}
	if strings.TrimSpace(name) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No command configured."
		item.Hint = hint
		return item
	}

	path, err := c.lookPath(name, pathValue)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", name)
		item.Hint = hint
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkModel warns about model names the engine may not recognise.
func (c *Checker) checkModel(model string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Model",
	}
	if _, ok := domain.LookupEngineModel(model); !ok {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("Unknown model: %q", model)
		item.Hint = "Use one of the catalog models, for example tiny or base."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model %s", model)
	return item
}

// checkEngineDir validates the engine working directory.
func (c *Checker) checkEngineDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "engine_dir",
		Name: "Engine directory",
	}
	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No engine directory configured; the current directory is used."
		return item
	}

	info, err := c.stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine directory does not exist: %s", dir)
		item.Hint = "Create the directory or change engine.dir; the engine cannot start without it."
	case err != nil:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access engine directory: %s", dir)
		item.Hint = "Check permissions for the engine directory."
	case !info.IsDir():
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine directory is a file: %s", dir)
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Directory: %s", dir)
	}
	return item
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir, hint string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   id,
		Name: name,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = hint
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = hint
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// lookPath searches pathValue rather than the process PATH, because the
// engine runs with a resolved environment.
func (c *Checker) lookPath(name, pathValue string) (string, error) {
	candidates := []string{name}
	if c.goos == "windows" && filepath.Ext(name) == "" {
		candidates = append(candidates, name+".exe")
	}

	if strings.ContainsAny(name, `/\`) {
		for _, candidate := range candidates {
			if c.isExecutable(candidate) {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	sep := ":"
	if c.goos == "windows" {
		sep = ";"
	}
	for _, dir := range strings.Split(pathValue, sep) {
		if dir == "" {
			continue
		}
		for _, candidate := range candidates {
			full := filepath.Join(dir, candidate)
			if c.isExecutable(full) {
				return full, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

func (c *Checker) isExecutable(path string) bool {
	info, err := c.stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if c.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	goos string,
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		goos:       goos,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
