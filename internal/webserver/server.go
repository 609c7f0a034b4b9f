// Package webserver runs the frontend in a plain browser: static files,
// chat and job events over a websocket, the transcription endpoint, and
// Prometheus metrics.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"appshell/internal/domain"
	"appshell/internal/jobs"
	"appshell/internal/logging"
	"appshell/internal/metrics"
	"appshell/internal/transcribe"
)

// defaultMaxUpload bounds one uploaded recording.
const defaultMaxUpload = 64 << 20

// Transcriber runs one transcription request.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) transcribe.Response
}

// ChatRelay sends and receives LAN chat messages.
type ChatRelay interface {
	Send(payload domain.ChatPayload) (domain.ChatMessage, bool)
	Subscribe(fn func(domain.ChatMessage)) func()
}

// JobLister exposes job snapshots.
type JobLister interface {
	Active() []domain.JobSnapshot
	Recent() []domain.JobSnapshot
}

// Options configures the listener and the served frontend.
type Options struct {
	Addr           string
	Static         fs.FS
	MaxUploadBytes int64
}

// Deps are the application services behind the HTTP surface. Only
// Transcriber is required.
type Deps struct {
	Transcriber Transcriber
	Chat        ChatRelay
	Jobs        JobLister
	Events      *jobs.EventBus
	Metrics     *metrics.Collector
}

// Server is the browser-mode HTTP server.
type Server struct {
	opts     Options
	deps     Deps
	logger   *slog.Logger
	hub      *Hub
	upgrader websocket.Upgrader
	handler  http.Handler

	mu  sync.RWMutex
	ctx context.Context // nil until Start
}

// New creates a server. Call Start (or Run) before serving requests;
// websocket upgrades are refused with 503 until then.
func New(opts Options, deps Deps, logger *slog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	logger = logging.NewComponentLogger(logger, "webserver")
	s := &Server{
		opts:   opts,
		deps:   deps,
		logger: logger,
		hub:    NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.handler = mux
	return s
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/transcribe", s.withMetrics("/api/transcribe", s.handleTranscribe))
	mux.HandleFunc("/api/jobs", s.withMetrics("/api/jobs", s.handleJobs))
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}
	if s.opts.Static != nil {
		mux.HandleFunc("/", s.withMetrics("/", staticHandler(s.opts.Static)))
	} else {
		mux.HandleFunc("/", s.withMetrics("/", func(w http.ResponseWriter, r *http.Request) { notFound(w) }))
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the websocket hub and forwards chat and job events to it
// until ctx is canceled.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	go s.hub.Run(ctx)

	var unsubscribe []func()
	if s.deps.Chat != nil {
		unsubscribe = append(unsubscribe, s.deps.Chat.Subscribe(func(msg domain.ChatMessage) {
			s.hub.Broadcast("chat:message", msg)
		}))
	}
	if s.deps.Events != nil {
		unsubscribe = append(unsubscribe, s.deps.Events.Subscribe(func(event jobs.Event) {
			s.hub.Broadcast("stt:job", event)
		}))
	}
	go func() {
		<-ctx.Done()
		for _, fn := range unsubscribe {
			fn()
		}
	}()
}

// Run listens on Options.Addr until ctx is canceled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("web server listening", logging.String("address", "http://"+ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("stopping web server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	return nil
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if s.deps.Metrics == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)
		s.deps.Metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleTranscribe accepts the raw recording as the request body and the
// container extension as ?ext=.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	resp := s.deps.Transcriber.Transcribe(r.Context(), transcribe.Request{
		Data: data,
		Ext:  r.URL.Query().Get("ext"),
	})
	writeJSON(w, statusFor(resp), resp)
}

// statusFor picks the HTTP status; the body always carries the full response.
func statusFor(resp transcribe.Response) int {
	switch {
	case resp.OK:
		return http.StatusOK
	case resp.Error == transcribe.LabelInvalidAudio:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleJobs lists in-flight and recent jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Jobs == nil {
		http.Error(w, "Job tracking disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.JobSnapshot{
		"active": s.deps.Jobs.Active(),
		"recent": s.deps.Jobs.Recent(),
	})
}

func (s *Server) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// handleWebSocket upgrades the connection and registers it with the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := s.runContext()
	if ctx == nil {
		http.Error(w, "Server not started", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case s.hub.register <- c:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}
	go s.hub.writePump(c)
	go s.hub.readPump(ctx, c, s.handleFrame)
}

// handleFrame processes one inbound websocket frame.
func (s *Server) handleFrame(c *client, env Envelope) {
	switch env.Type {
	case "chat:send":
		if s.deps.Chat == nil {
			return
		}
		var payload domain.ChatPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.logger.Debug("malformed chat frame", logging.Error(err))
			return
		}
		if msg, ok := s.deps.Chat.Send(payload); ok {
			s.hub.reply(s.runContext(), c, "chat:message", msg)
		}
	default:
		s.logger.Debug("unknown websocket frame", logging.String(logging.FieldEventType, env.Type))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
