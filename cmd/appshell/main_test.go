package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"appshell/internal/config"
)

// TestHelperProcess is not a real test. It stands in for the speech engine.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if os.Getenv("HELPER_MODE") == "fail" {
		fmt.Fprintln(os.Stderr, "No such file or directory: 'ffmpeg'")
		os.Exit(1)
	}
	audio := args[0]
	outDir := ""
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--output_dir" {
			outDir = args[i+1]
		}
	}
	stem := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	if err := os.WriteFile(filepath.Join(outDir, stem+".txt"), []byte("guten morgen\n"), 0o644); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

type cliTestEnv struct {
	cfg        config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) cliTestEnv {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Engine.Command = os.Args[0]
	cfg.Engine.PrefixArgs = []string{"-test.run=TestHelperProcess", "--"}
	cfg.Engine.StagingDir = filepath.Join(base, "staging")
	cfg.Engine.TimeoutSeconds = 30
	cfg.Chat.Enabled = false
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "error"

	path := filepath.Join(base, "config.toml")
	writeTestConfig(t, path, &cfg)
	return cliTestEnv{cfg: cfg, configPath: path, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatalf("second init without --overwrite should fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "[engine]")
	requireContains(t, out, "whisper-models")
}

func TestInvalidConfigFailsBeforeCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Engine.Model = "gigantic"
	writeTestConfig(t, env.configPath, &env.cfg)

	_, _, err := runCLI(t, []string{"sweep"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "engine.model") {
		t.Fatalf("error = %v", err)
	}
}

func TestTranscribePrintsTranscript(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	env := setupCLITestEnv(t)
	audio := filepath.Join(env.baseDir, "clip.ogg")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	out, _, err := runCLI(t, []string{"transcribe", audio}, env.configPath)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if strings.TrimSpace(out) != "guten morgen" {
		t.Fatalf("output = %q", out)
	}

	out, _, err = runCLI(t, []string{"transcribe", "--json", "--ext", "webm", audio}, env.configPath)
	if err != nil {
		t.Fatalf("transcribe --json: %v", err)
	}
	requireContains(t, out, `"ok": true`)
}

func TestTranscribeReportsEngineFailure(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_MODE", "fail")
	env := setupCLITestEnv(t)
	audio := filepath.Join(env.baseDir, "clip.webm")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	_, stderr, err := runCLI(t, []string{"transcribe", audio}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "whisper-failed") {
		t.Fatalf("error = %v", err)
	}
	requireContains(t, stderr, "code=1 | ")
}

func TestTranscribeRejectsEmptyFile(t *testing.T) {
	env := setupCLITestEnv(t)
	audio := filepath.Join(env.baseDir, "empty.webm")
	if err := os.WriteFile(audio, nil, 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	_, _, err := runCLI(t, []string{"transcribe", audio}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid-audio") {
		t.Fatalf("error = %v", err)
	}
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	env := setupCLITestEnv(t)
	staging := env.cfg.Engine.StagingDir
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := filepath.Join(staging, env.cfg.Engine.JobPrefix+"1_aaaaaa.webm")
	if err := os.WriteFile(stale, []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err := runCLI(t, []string{"sweep"}, env.configPath)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	requireContains(t, out, "Removed 1 stale entries")
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale entry kept")
	}

	if _, _, err := runCLI(t, []string{"sweep", "--older-than=-1h"}, env.configPath); err == nil {
		t.Fatalf("negative age should fail")
	}
}

func TestDoctorRendersReport(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil && !errors.Is(err, errDoctorFailures) {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out, "CHECK")
	requireContains(t, out, "STATUS")
	requireContains(t, out, os.Args[0])

	out, _, err = runCLI(t, []string{"doctor", "--json"}, env.configPath)
	if err != nil && !errors.Is(err, errDoctorFailures) {
		t.Fatalf("doctor --json: %v", err)
	}
	requireContains(t, out, `"items"`)
}

func TestRenderTable(t *testing.T) {
	rendered := renderTable([]string{"Check", "Status"}, [][]string{{"ffmpeg", "OK"}, {"engine"}})
	for _, want := range []string{"CHECK", "STATUS", "ffmpeg", "OK", "engine"} {
		requireContains(t, rendered, want)
	}
	if renderTable(nil, nil) != "" {
		t.Fatalf("empty headers should render nothing")
	}
}
