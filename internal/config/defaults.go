package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultConfigPath      = "~/.config/appshell/config.toml"
	defaultEngineModule    = "whisper"
	defaultEngineLanguage  = "de"
	defaultEngineModel     = "tiny"
	defaultEngineTimeout   = 180
	defaultJobPrefix       = "appshell_voice_"
	defaultAudioExt        = "webm"
	defaultDiagnosticLimit = 4000
	defaultChatPort        = 41234
	defaultBroadcastAddr   = "255.255.255.255"
	defaultChatName        = "Unbekannt"
	defaultChatMaxText     = 2000
	defaultWebBind         = "127.0.0.1:5173"
	defaultWebRoot         = "frontend"
	defaultWindowTitle     = "appshell"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Default returns a Config populated with repository defaults. Directory
// fields that depend on the data directory are filled in by normalize.
func Default() Config {
	return Config{
		Engine: Engine{
			PrefixArgs:      []string{"-m", defaultEngineModule},
			Language:        defaultEngineLanguage,
			Model:           defaultEngineModel,
			TimeoutSeconds:  defaultEngineTimeout,
			JobPrefix:       defaultJobPrefix,
			DefaultExt:      defaultAudioExt,
			DiagnosticLimit: defaultDiagnosticLimit,
		},
		Chat: Chat{
			Enabled:       true,
			Port:          defaultChatPort,
			BroadcastAddr: defaultBroadcastAddr,
			DefaultName:   defaultChatName,
			MaxTextLength: defaultChatMaxText,
		},
		Web: Web{
			Bind: defaultWebBind,
			Root: defaultWebRoot,
		},
		Window: Window{
			Title:         defaultWindowTitle,
			Width:         390,
			Height:        844,
			CompactWidth:  320,
			CompactHeight: 620,
			MinWidth:      320,
			MinHeight:     568,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// DefaultEngineCommand is the Python launcher for the current platform.
func DefaultEngineCommand(goos string) string {
	if goos == "windows" {
		return "python"
	}
	return "python3"
}

// defaultDataDir mirrors the per-user application data root of desktop apps.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "appshell")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".appshell")
	}
	return filepath.Join(os.TempDir(), "appshell")
}

// Sample renders the default configuration as TOML for `config init`.
func Sample() (string, error) {
	cfg := Default()
	cfg.Engine.Command = DefaultEngineCommand(runtime.GOOS)
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
