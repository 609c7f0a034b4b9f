package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"appshell/internal/domain"
	"appshell/internal/logging"
)

// fakeRunner simulates engine execution.
type fakeRunner struct {
	run func(ctx context.Context, spec commandSpec) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, spec commandSpec) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, spec)
}

// recordingObserver captures transitions in order.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recordingObserver) JobTransition(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recordingObserver) states() []domain.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.JobState, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.To)
	}
	return out
}

func newTestOrchestrator(t *testing.T, runner commandRunner, observers ...Observer) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "engine"), 0o755); err != nil {
		t.Fatalf("mkdir engine: %v", err)
	}
	o := New(Settings{
		Command:    "python3",
		PrefixArgs: []string{"-m", "whisper"},
		EngineDir:  filepath.Join(base, "engine"),
		ModelDir:   filepath.Join(root, "models"),
		StagingDir: root,
		Timeout:    time.Second,
	}, logging.NewNop(), observers...)
	o.runner = runner
	o.env = &EnvResolver{
		GOOS:    "linux",
		Environ: func() []string { return []string{"PATH=/usr/bin", "LANG=C"} },
		Stat:    func(string) (os.FileInfo, error) { return nil, os.ErrNotExist },
	}
	return o, root
}

// writeTranscript emulates the engine writing <output_dir>/<audio stem>.txt.
func writeTranscript(t *testing.T, spec commandSpec, content string) {
	t.Helper()
	audio := spec.Args[2]
	stem := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	mustWriteFile(t, filepath.Join(argValue(spec.Args, "--output_dir"), stem+".txt"), content)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func assertStagingEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "appshell_voice_") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

// TestTranscribeSuccessReturnsTrimmedText checks the happy path end to end.
func TestTranscribeSuccessReturnsTrimmedText(t *testing.T) {
	var got commandSpec
	var staged []byte
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		got = spec
		var err error
		staged, err = os.ReadFile(spec.Args[2])
		if err != nil {
			t.Fatalf("staged audio missing: %v", err)
		}
		writeTranscript(t, spec, "  Hallo Welt  \n")
		return commandResult{Stdout: "done"}, nil
	}}
	observer := &recordingObserver{}
	o, root := newTestOrchestrator(t, runner, observer)

	resp := o.Transcribe(context.Background(), Request{Data: []byte("opus-bytes"), Ext: "webm"})
	if !resp.OK || resp.Text != "Hallo Welt" {
		t.Fatalf("response = %+v, want ok with trimmed text", resp)
	}
	if string(staged) != "opus-bytes" {
		t.Fatalf("staged audio = %q", staged)
	}

	if got.Name != "python3" || got.Dir != o.settings.EngineDir || got.Timeout != time.Second {
		t.Fatalf("unexpected command spec: %+v", got)
	}
	want := []string{
		"-m", "whisper",
		got.Args[2],
		"--language", "de",
		"--model", "tiny",
		"--model_dir", filepath.Join(root, "models"),
		"--fp16", "False",
		"--task", "transcribe",
		"--verbose", "False",
		"--output_format", "txt",
		"--output_dir", argValue(got.Args, "--output_dir"),
	}
	if strings.Join(got.Args, " ") != strings.Join(want, " ") {
		t.Fatalf("args = %v\nwant %v", got.Args, want)
	}
	if !strings.HasPrefix(filepath.Base(got.Args[2]), "appshell_voice_") || filepath.Ext(got.Args[2]) != ".webm" {
		t.Fatalf("audio path = %q", got.Args[2])
	}
	if argValue(got.Args, "--output_dir") != strings.TrimSuffix(got.Args[2], ".webm")+"_out" {
		t.Fatalf("output dir = %q", argValue(got.Args, "--output_dir"))
	}

	assertStagingEmpty(t, root)
	if _, err := os.Stat(filepath.Join(root, "models")); err != nil {
		t.Fatalf("model dir should be created: %v", err)
	}

	states := observer.states()
	wantStates := []domain.JobState{
		domain.JobStateCreated,
		domain.JobStateStaged,
		domain.JobStateRunning,
		domain.JobStateCompleted,
	}
	if fmt.Sprint(states) != fmt.Sprint(wantStates) {
		t.Fatalf("states = %v, want %v", states, wantStates)
	}
}

// TestTranscribeEngineFailureReportsDetail checks non-zero exit diagnostics.
func TestTranscribeEngineFailureReportsDetail(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		return commandResult{Stdout: "loading", Stderr: "Traceback: model missing", ExitCode: 1}, errors.New("exit status 1")
	}}
	observer := &recordingObserver{}
	o, root := newTestOrchestrator(t, runner, observer)

	resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "ogg"})
	if resp.OK || resp.Error != LabelWhisperFailed {
		t.Fatalf("response = %+v, want whisper-failed", resp)
	}
	parts := strings.Split(resp.Detail, " | ")
	if len(parts) != 7 {
		t.Fatalf("detail parts = %d: %q", len(parts), resp.Detail)
	}
	for i, prefix := range []string{"code=1", "python=python3", "cwd=" + o.settings.EngineDir, "audio=", "args=[\"-m\",\"whisper\"", "stdout=loading", "stderr=Traceback: model missing"} {
		if !strings.HasPrefix(parts[i], prefix) {
			t.Fatalf("detail part %d = %q, want prefix %q", i, parts[i], prefix)
		}
	}
	assertStagingEmpty(t, root)

	states := observer.states()
	if states[len(states)-1] != domain.JobStateEngineFailed {
		t.Fatalf("final state = %s", states[len(states)-1])
	}
}

// TestTranscribeNoTranscript checks a successful exit without any artifact.
func TestTranscribeNoTranscript(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		return commandResult{}, nil
	}}
	o, root := newTestOrchestrator(t, runner)

	_, err := o.Run(context.Background(), Request{Data: []byte("x"), Ext: "webm"})
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("Run() error = %v, want ErrNoOutput", err)
	}
	if resp := ResponseFor("", err); resp.Error != LabelNoTranscript || resp.Detail != "" {
		t.Fatalf("response = %+v", resp)
	}
	assertStagingEmpty(t, root)
}

// TestTranscribeEmptyTranscriptIsNoOutput checks whitespace-only artifacts.
func TestTranscribeEmptyTranscriptIsNoOutput(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		writeTranscript(t, spec, " \n\t ")
		return commandResult{}, nil
	}}
	o, _ := newTestOrchestrator(t, runner)

	resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "webm"})
	if resp.Error != LabelNoTranscript {
		t.Fatalf("response = %+v, want no-transcript", resp)
	}
}

// TestTranscribeTimeoutReportsExitCode124 checks the timeout outcome.
func TestTranscribeTimeoutReportsExitCode124(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		return commandResult{Stderr: "partial", ExitCode: TimeoutExitCode, TimedOut: true}, context.DeadlineExceeded
	}}
	observer := &recordingObserver{}
	o, root := newTestOrchestrator(t, runner, observer)

	_, err := o.Run(context.Background(), Request{Data: []byte("x"), Ext: "webm"})
	if !errors.Is(err, ErrTimedOut) || !errors.Is(err, ErrEngineFailed) {
		t.Fatalf("Run() error = %v, want ErrTimedOut", err)
	}
	resp := ResponseFor("", err)
	if resp.Error != LabelWhisperFailed || !strings.HasPrefix(resp.Detail, "code=124 | ") {
		t.Fatalf("response = %+v", resp)
	}
	states := observer.states()
	if states[len(states)-1] != domain.JobStateTimedOut {
		t.Fatalf("final state = %s", states[len(states)-1])
	}
	assertStagingEmpty(t, root)
}

// TestTranscribeRejectsInvalidAudio checks that nothing is staged or run.
func TestTranscribeRejectsInvalidAudio(t *testing.T) {
	called := false
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		called = true
		return commandResult{}, nil
	}}
	observer := &recordingObserver{}
	o, root := newTestOrchestrator(t, runner, observer)

	for _, req := range []Request{
		{Data: nil, Ext: "webm"},
		{Data: []byte{}, Ext: "webm"},
		{Data: []byte("x"), Ext: ""},
	} {
		resp := o.Transcribe(context.Background(), req)
		if resp.OK || resp.Error != LabelInvalidAudio {
			t.Fatalf("Transcribe(%+v) = %+v, want invalid-audio", req, resp)
		}
	}
	if called {
		t.Fatalf("engine must not run for invalid input")
	}
	if len(observer.states()) != 0 {
		t.Fatalf("no job should be created, got %v", observer.states())
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("staging dir should be untouched, got %d entries", len(entries))
	}
}

// TestTranscribeStageFailure checks the write-failed response.
func TestTranscribeStageFailure(t *testing.T) {
	called := false
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		called = true
		return commandResult{}, nil
	}}
	observer := &recordingObserver{}
	o, _ := newTestOrchestrator(t, runner, observer)
	o.writeFile = func(string, []byte, os.FileMode) error {
		return errors.New("disk full")
	}

	resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "webm"})
	if resp.Error != "write-failed:disk full" {
		t.Fatalf("response error = %q", resp.Error)
	}
	if called {
		t.Fatalf("engine must not run after staging failure")
	}
	states := observer.states()
	if fmt.Sprint(states) != fmt.Sprint([]domain.JobState{domain.JobStateCreated, domain.JobStateStageFailed}) {
		t.Fatalf("states = %v", states)
	}
}

// TestTranscribeSanitizesExtension checks the staged file name.
func TestTranscribeSanitizesExtension(t *testing.T) {
	var audio string
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		audio = spec.Args[2]
		writeTranscript(t, spec, "ok")
		return commandResult{}, nil
	}}
	o, _ := newTestOrchestrator(t, runner)

	if resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "../WAV!"}); !resp.OK {
		t.Fatalf("response = %+v", resp)
	}
	if filepath.Ext(audio) != ".wav" {
		t.Fatalf("audio path = %q, want .wav", audio)
	}
	for _, ext := range []string{"###", "   ", "\t"} {
		audio = ""
		if resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: ext}); !resp.OK {
			t.Fatalf("Transcribe(ext=%q) = %+v", ext, resp)
		}
		if filepath.Ext(audio) != ".webm" {
			t.Fatalf("ext %q: audio path = %q, want .webm fallback", ext, audio)
		}
	}
}

// TestTranscribeUsesExistingEngineDir checks the child working directory.
func TestTranscribeUsesExistingEngineDir(t *testing.T) {
	var dirs []string
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		dirs = append(dirs, spec.Dir)
		writeTranscript(t, spec, "ok")
		return commandResult{}, nil
	}}
	o, _ := newTestOrchestrator(t, runner)
	engineDir := o.settings.EngineDir
	if err := os.Remove(engineDir); err != nil {
		t.Fatalf("remove engine dir: %v", err)
	}

	if resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "webm"}); !resp.OK {
		t.Fatalf("response = %+v", resp)
	}
	if err := os.MkdirAll(engineDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "webm"}); !resp.OK {
		t.Fatalf("response = %+v", resp)
	}
	if len(dirs) != 2 || dirs[0] != "" || dirs[1] != engineDir {
		t.Fatalf("dirs = %q, want [\"\" %q]", dirs, engineDir)
	}
}

// TestTranscribeStagingCollisionKeepsOtherJobFiles checks the exclusive
// audio create.
func TestTranscribeStagingCollisionKeepsOtherJobFiles(t *testing.T) {
	called := false
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		called = true
		return commandResult{}, nil
	}}
	o, root := newTestOrchestrator(t, runner)
	o.now = func() time.Time { return time.UnixMilli(1700000000123) }
	o.newSuffix = func() string { return "a1b2c3d4e5f6" }

	id := newJobID(o.settings.JobPrefix, o.now(), "a1b2c3d4e5f6")
	audio, out := jobPaths(root, id, "webm")
	mustWriteFile(t, audio, "first")
	mustWriteFile(t, filepath.Join(out, id+".txt"), "first transcript")

	resp := o.Transcribe(context.Background(), Request{Data: []byte("second"), Ext: "webm"})
	if resp.OK || !strings.HasPrefix(resp.Error, LabelWriteFailed) {
		t.Fatalf("response = %+v, want write-failed", resp)
	}
	if called {
		t.Fatalf("engine must not run after a staging collision")
	}
	if data, err := os.ReadFile(audio); err != nil || string(data) != "first" {
		t.Fatalf("existing audio = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(out, id+".txt")); err != nil {
		t.Fatalf("existing output removed: %v", err)
	}
}

// TestTranscribeConcurrentJobsUseDistinctPaths checks per-job isolation.
func TestTranscribeConcurrentJobsUseDistinctPaths(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]struct{}{}
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		mu.Lock()
		seen[spec.Args[2]] = struct{}{}
		seen[argValue(spec.Args, "--output_dir")] = struct{}{}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		writeTranscript(t, spec, filepath.Base(spec.Args[2]))
		return commandResult{}, nil
	}}
	o, root := newTestOrchestrator(t, runner)

	const jobs = 16
	var wg sync.WaitGroup
	texts := make([]string, jobs)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text, err := o.Run(context.Background(), Request{Data: []byte{byte(i)}, Ext: "webm"})
			if err != nil {
				t.Errorf("job %d: %v", i, err)
			}
			texts[i] = text
		}(i)
	}
	wg.Wait()

	if len(seen) != 2*jobs {
		t.Fatalf("distinct paths = %d, want %d", len(seen), 2*jobs)
	}
	unique := map[string]struct{}{}
	for _, text := range texts {
		unique[text] = struct{}{}
	}
	if len(unique) != jobs {
		t.Fatalf("each job must read its own transcript, got %d distinct", len(unique))
	}
	assertStagingEmpty(t, root)
}

// TestTranscribeCanceledContextIsUnexpected checks caller cancellation.
func TestTranscribeCanceledContextIsUnexpected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		cancel()
		return commandResult{ExitCode: LaunchFailedExitCode}, ctx.Err()
	}}
	observer := &recordingObserver{}
	o, root := newTestOrchestrator(t, runner, observer)

	_, err := o.Run(ctx, Request{Data: []byte("x"), Ext: "webm"})
	if !errors.Is(err, ErrUnexpected) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}
	if resp := ResponseFor("", err); resp.Error != context.Canceled.Error() {
		t.Fatalf("response = %+v", resp)
	}
	states := observer.states()
	if states[len(states)-1] != domain.JobStateUnexpected {
		t.Fatalf("final state = %s", states[len(states)-1])
	}
	assertStagingEmpty(t, root)
}

// TestTranscribeRecoversPanics checks that a panic still cleans up.
func TestTranscribeRecoversPanics(t *testing.T) {
	runner := &fakeRunner{run: func(ctx context.Context, spec commandSpec) (commandResult, error) {
		panic("engine adapter exploded")
	}}
	o, root := newTestOrchestrator(t, runner)

	resp := o.Transcribe(context.Background(), Request{Data: []byte("x"), Ext: "webm"})
	if resp.OK || resp.Error != "engine adapter exploded" {
		t.Fatalf("response = %+v", resp)
	}
	assertStagingEmpty(t, root)
}

// TestDiagnosticDetailTruncatesByCharacters checks the output bound.
func TestDiagnosticDetailTruncatesByCharacters(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeRunner{})
	o.settings.DiagnosticLimit = 10
	job := &Job{ID: "j", AudioPath: "/tmp/a&b.webm", ExitCode: 2, Stdout: strings.Repeat("ä", 25), Stderr: "short"}
	spec := o.commandSpec(job, nil)

	detail := o.diagnosticDetail(spec, job)
	if !strings.Contains(detail, "stdout="+strings.Repeat("ä", 10)+" | ") {
		t.Fatalf("stdout not truncated to 10 chars: %q", detail)
	}
	if !strings.HasSuffix(detail, "stderr=short") {
		t.Fatalf("stderr = %q", detail)
	}
	if !strings.Contains(detail, `"/tmp/a&b.webm"`) {
		t.Fatalf("args must not be HTML-escaped: %q", detail)
	}
}

// TestTruncateChars checks rune-safe truncation.
func TestTruncateChars(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "hello", limit: 3, want: "hel"},
		{in: "héllo", limit: 2, want: "hé"},
		{in: "abc", limit: 3, want: "abc"},
		{in: "abc", limit: 10, want: "abc"},
		{in: "abc", limit: 0, want: "abc"},
		{in: "", limit: 4, want: ""},
	}
	for _, tt := range tests {
		if got := truncateChars(tt.in, tt.limit); got != tt.want {
			t.Fatalf("truncateChars(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

// TestWithDefaultsFillsZeroValues checks zero-value fallbacks.
func TestWithDefaultsFillsZeroValues(t *testing.T) {
	s := withDefaults(Settings{})
	if s.Language != "de" || s.Model != "tiny" || s.Timeout != 180*time.Second {
		t.Fatalf("defaults = %+v", s)
	}
	if s.DiagnosticLimit != 4000 || s.DefaultExt != "webm" || s.JobPrefix != "appshell_voice_" {
		t.Fatalf("defaults = %+v", s)
	}
	if s.Command == "" || s.StagingDir == "" {
		t.Fatalf("command and staging dir must default: %+v", s)
	}
}
