package transcribe

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"appshell/internal/logging"
)

// codecBinary is the engine's decoding dependency that must be on PATH.
const codecBinary = "ffmpeg"

// EnvResolver builds the subprocess environment, appending known install
// locations of the codec dependency to PATH when they contain it. It never
// touches the process environment.
type EnvResolver struct {
	GOOS      string
	Home      string
	ExtraDirs []string
	Environ   func() []string
	Stat      func(string) (os.FileInfo, error)
	Logger    *slog.Logger
}

// CandidateDirs lists the platform-specific directories probed for ffmpeg.
func (r *EnvResolver) CandidateDirs() []string {
	var dirs []string
	switch r.GOOS {
	case "windows":
		if r.Home != "" {
			base := filepath.Join(r.Home, "AppData", "Local", "Programs", "Python")
			dirs = append(dirs,
				filepath.Join(base, "Python311", "Scripts"),
				filepath.Join(base, "Python310", "Scripts"),
				filepath.Join(base, "Python39", "Scripts"),
			)
		}
		dirs = append(dirs, `C:\ffmpeg\bin`)
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/bin", "/usr/local/bin")
		if r.Home != "" {
			dirs = append(dirs, filepath.Join(r.Home, ".local", "bin"))
		}
	default:
		if r.Home != "" {
			dirs = append(dirs, filepath.Join(r.Home, ".local", "bin"))
		}
		dirs = append(dirs, "/usr/local/bin", "/opt/ffmpeg/bin")
	}
	return append(dirs, r.ExtraDirs...)
}

// Resolve returns a copy of the inherited environment with an augmented PATH.
func (r *EnvResolver) Resolve() []string {
	env := append([]string(nil), r.environ()...)
	key, value, idx := r.findPath(env)

	sep := string(os.PathListSeparator)
	if r.GOOS == "windows" {
		sep = ";"
	} else if r.GOOS != "" {
		sep = ":"
	}

	present := map[string]struct{}{}
	for _, entry := range strings.Split(value, sep) {
		if entry != "" {
			present[filepath.Clean(entry)] = struct{}{}
		}
	}

	for _, dir := range r.CandidateDirs() {
		if _, ok := present[filepath.Clean(dir)]; ok {
			continue
		}
		if !r.hasCodec(dir) {
			continue
		}
		if value == "" {
			value = dir
		} else {
			value += sep + dir
		}
		present[filepath.Clean(dir)] = struct{}{}
	}

	entry := key + "=" + value
	if idx >= 0 {
		env[idx] = entry
	} else {
		env = append(env, entry)
	}
	return env
}

// PathValue returns the PATH entry of a resolved environment.
func (r *EnvResolver) PathValue(env []string) string {
	_, value, _ := r.findPath(env)
	return value
}

func (r *EnvResolver) hasCodec(dir string) bool {
	name := codecBinary
	if r.GOOS == "windows" {
		name += ".exe"
	}
	stat := r.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(filepath.Join(dir, name))
	if err != nil {
		if !os.IsNotExist(err) && r.Logger != nil {
			r.Logger.Debug("codec probe failed; candidate skipped",
				logging.String("dir", dir),
				logging.Error(err),
			)
		}
		return false
	}
	return !info.IsDir()
}

func (r *EnvResolver) environ() []string {
	if r.Environ == nil {
		return os.Environ()
	}
	return r.Environ()
}

// findPath locates PATH, case-insensitively on Windows where it is "Path".
func (r *EnvResolver) findPath(env []string) (key, value string, idx int) {
	for i, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if k == "PATH" || (r.GOOS == "windows" && strings.EqualFold(k, "PATH")) {
			return k, v, i
		}
	}
	return "PATH", "", -1
}
