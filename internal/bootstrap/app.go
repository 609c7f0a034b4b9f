package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"appshell/internal/chat"
	"appshell/internal/config"
	"appshell/internal/diagnostics"
	"appshell/internal/domain"
	"appshell/internal/jobs"
	"appshell/internal/logging"
	"appshell/internal/metrics"
	"appshell/internal/transcribe"
	"appshell/internal/window"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	// EventChatMessage carries one domain.ChatMessage to the frontend.
	EventChatMessage = "chat:message"
	// EventJob carries one jobs.Event to the frontend.
	EventJob = "stt:job"

	staleStagingAge = time.Hour
)

var (
	// ErrAlreadyRunning is returned by Run when another instance holds the lock.
	ErrAlreadyRunning = errors.New("appshell is already running")
	// ErrChatDisabled is returned by ChatSend when [chat] is disabled.
	ErrChatDisabled = errors.New("chat is disabled")
)

// ToggleResult mirrors the {ok, value} shape the frontend expects from
// window settings calls.
type ToggleResult struct {
	OK    bool   `json:"ok"`
	Value bool   `json:"value"`
	Error string `json:"error,omitempty"`
}

// emitFunc matches wailsruntime.EventsEmit.
type emitFunc func(ctx context.Context, name string, data ...interface{})

// App wires configuration, the transcription orchestrator, chat, and the
// Wails runtime callbacks.
type App struct {
	store    config.Store
	logger   *slog.Logger
	assets   fs.FS
	events   *jobs.EventBus
	registry *jobs.Registry
	metrics  *metrics.Collector
	checker  *diagnostics.Checker
	relay    *chat.Relay
	emit     emitFunc

	mu          sync.Mutex
	cfg         *config.Config
	orch        *transcribe.Orchestrator
	diagnostics domain.DiagnosticReport
	window      *window.Controller
	runtimeCtx  context.Context
	cancel      context.CancelFunc
	detach      []func()
}

// New builds the application from the config file at configPath (empty
// selects the default location).
func New(configPath string) (*App, error) {
	return NewWithAssets(nil, configPath)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS, configPath string) (*App, error) {
	cfg, resolved, _, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	app := newApp(cfg, config.NewTOMLStore(resolved), logger, assets)
	app.sweepStaging()
	app.RefreshDiagnostics()
	return app, nil
}

// newApp assembles services without touching the Wails runtime.
func newApp(cfg *config.Config, store config.Store, logger *slog.Logger, assets fs.FS) *App {
	if logger == nil {
		logger = logging.NewNop()
	}
	collector := metrics.New()
	events := jobs.NewEventBus(1000)
	app := &App{
		store:    store,
		logger:   logger,
		assets:   assets,
		events:   events,
		registry: jobs.NewRegistry(events, 0, logger),
		metrics:  collector,
		checker:  diagnostics.NewChecker(),
		emit:     wailsruntime.EventsEmit,
		cfg:      cfg,
	}
	app.orch = app.newOrchestrator(cfg)
	if cfg.Chat.Enabled {
		app.relay = chat.NewRelay(chat.OptionsFromConfig(cfg.Chat), logger, collector)
	}
	return app
}

func (a *App) newOrchestrator(cfg *config.Config) *transcribe.Orchestrator {
	return transcribe.New(transcribe.SettingsFromConfig(cfg.Engine), a.logger, a.registry, a.metrics)
}

// Run takes the single-instance lock and starts the Wails desktop
// application with the backend bound.
func (a *App) Run() error {
	lock, err := acquireInstanceLock(a.config().LockPath())
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Unlock()
	}()

	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir(a.config().Web.Root))
	}

	win := a.config().Window
	return wails.Run(&options.App{
		Title:            win.Title,
		Width:            win.Width,
		Height:           win.Height,
		MinWidth:         win.MinWidth,
		MinHeight:        win.MinHeight,
		Frameless:        true,
		AlwaysOnTop:      win.AlwaysOnTop,
		BackgroundColour: options.NewRGB(0x11, 0x11, 0x11),
		AssetServer:      assetOptions,
		OnStartup:        a.Startup,
		OnShutdown:       a.Shutdown,
		Bind:             []interface{}{a},
	})
}

// acquireInstanceLock fails with ErrAlreadyRunning when path is held.
func acquireInstanceLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Startup stores the Wails runtime context and starts push subscriptions.
func (a *App) Startup(ctx context.Context) {
	cfg := a.config()
	controller := window.NewController(window.NewWailsSurface(ctx), window.LayoutFromConfig(cfg.Window), cfg.Window.AlwaysOnTop, a.logger)

	a.mu.Lock()
	a.window = controller
	a.mu.Unlock()

	if err := a.attach(ctx); err != nil {
		logging.WarnWithContext(a.logger, "chat relay unavailable", "chat_start_failed", logging.Error(err))
	}
}

// Shutdown stops subscriptions and the chat listener.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	cancel := a.cancel
	detach := a.detach
	a.cancel = nil
	a.detach = nil
	a.runtimeCtx = nil
	a.window = nil
	a.mu.Unlock()

	for _, fn := range detach {
		fn()
	}
	if cancel != nil {
		cancel()
	}
}

// attach forwards job events and chat messages to the runtime and starts
// the chat relay. The relay error is returned after event forwarding is set up.
func (a *App) attach(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	detach := []func(){
		a.events.Subscribe(func(event jobs.Event) {
			a.push(EventJob, event)
		}),
	}

	var relayErr error
	if a.relay != nil {
		detach = append(detach, a.relay.Subscribe(func(msg domain.ChatMessage) {
			a.push(EventChatMessage, msg)
		}))
		relayErr = a.relay.Start(runCtx)
	}

	a.mu.Lock()
	a.runtimeCtx = ctx
	a.cancel = cancel
	a.detach = detach
	a.mu.Unlock()
	return relayErr
}

// push emits a runtime event when the runtime is up.
func (a *App) push(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx == nil {
		return
	}
	a.emit(ctx, name, data)
}

// sweepStaging removes staging leftovers from a previous crash.
func (a *App) sweepStaging() {
	settings := a.orchestrator().Settings()
	removed, err := transcribe.SweepStale(settings.StagingDir, settings.JobPrefix, time.Now().Add(-staleStagingAge))
	if err != nil {
		logging.WarnWithContext(a.logger, "staging sweep failed", "staging_sweep_failed",
			logging.String("staging_dir", settings.StagingDir),
			logging.Error(err),
		)
		return
	}
	if len(removed) > 0 {
		a.logger.Info("removed stale staging entries",
			logging.String("staging_dir", settings.StagingDir),
			logging.Int("count", len(removed)),
		)
	}
}

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) orchestrator() *transcribe.Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orch
}

func (a *App) windowController() *window.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window
}

// Transcribe stages the recorded audio, runs the speech engine, and returns
// the transcript. Audio arrives base64-encoded from the frontend.
func (a *App) Transcribe(data []byte, ext string) transcribe.Response {
	ctx := context.Background()
	a.mu.Lock()
	if a.runtimeCtx != nil {
		ctx = a.runtimeCtx
	}
	a.mu.Unlock()
	return a.orchestrator().Transcribe(ctx, transcribe.Request{Data: data, Ext: ext})
}

// ChatSend broadcasts a chat line and echoes it to the local window.
func (a *App) ChatSend(payload domain.ChatPayload) (domain.ChatMessage, error) {
	if a.relay == nil {
		return domain.ChatMessage{}, ErrChatDisabled
	}
	msg, ok := a.relay.Send(payload)
	if !ok {
		return domain.ChatMessage{}, nil
	}
	a.push(EventChatMessage, msg)
	return msg, nil
}

// WindowMinimize minimizes the window.
func (a *App) WindowMinimize() {
	if c := a.windowController(); c != nil {
		c.Minimize()
	}
}

// WindowClose closes the window and quits.
func (a *App) WindowClose() {
	if c := a.windowController(); c != nil {
		c.Close()
	}
}

// WindowToggleFullscreen flips fullscreen and returns the new state.
func (a *App) WindowToggleFullscreen() bool {
	if c := a.windowController(); c != nil {
		return c.ToggleFullscreen()
	}
	return false
}

// WindowToggleCompact switches between the compact and regular sizes.
func (a *App) WindowToggleCompact() window.Size {
	if c := a.windowController(); c != nil {
		return c.ToggleCompact()
	}
	return window.Size{}
}

// WindowIsAlwaysOnTop reports the always-on-top flag.
func (a *App) WindowIsAlwaysOnTop() bool {
	if c := a.windowController(); c != nil {
		return c.IsAlwaysOnTop()
	}
	return false
}

// WindowSetAlwaysOnTop applies the always-on-top flag.
func (a *App) WindowSetAlwaysOnTop(on bool) ToggleResult {
	c := a.windowController()
	if c == nil {
		return ToggleResult{Error: "window is not ready"}
	}
	return ToggleResult{OK: true, Value: c.SetAlwaysOnTop(on)}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns the environment checks with the current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	orch := a.orchestrator()
	report := a.checker.Run(orch.Settings(), orch.PathValue(orch.Environment()))

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

// GetSettings returns the active configuration.
func (a *App) GetSettings() config.Config {
	return *a.config()
}

// SaveSettings validates and persists cfg, then rebuilds the orchestrator so
// later jobs use the new engine settings. Jobs already running keep theirs.
func (a *App) SaveSettings(cfg config.Config) (config.Config, error) {
	if err := a.store.Save(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("save settings: %w", err)
	}
	saved, err := a.store.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("reload settings: %w", err)
	}
	if err := saved.EnsureDirectories(); err != nil {
		return config.Config{}, err
	}

	orch := a.newOrchestrator(saved)
	a.mu.Lock()
	a.cfg = saved
	a.orch = orch
	a.mu.Unlock()

	a.logger.Info("settings saved",
		logging.String("model", saved.Engine.Model),
		logging.String("language", saved.Engine.Language),
	)
	a.RefreshDiagnostics()
	return *saved, nil
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ActiveJobs lists jobs that have not finished.
func (a *App) ActiveJobs() []domain.JobSnapshot {
	return a.registry.Active()
}

// RecentJobs lists finished jobs, newest first.
func (a *App) RecentJobs() []domain.JobSnapshot {
	return a.registry.Recent()
}

// OpenModelFolder opens the engine model directory in the file manager.
func (a *App) OpenModelFolder() error {
	target := strings.TrimSpace(a.orchestrator().Settings().ModelDir)
	if target == "" {
		return fmt.Errorf("model directory is not configured")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	return openInFileManager(target)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
