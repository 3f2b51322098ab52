package network

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"toylang/internal/database"
	"toylang/internal/errors"
	"toylang/internal/interpreter"
)

// Server is the playground: programs submitted over HTTP or a websocket are
// run in their own interpreter under a step budget and a deadline.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

// NewServer creates a playground server; zero limits get defaults.
func NewServer(cfg Config) *Server {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 1_000_000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 64 << 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		log:     logger,
		clients: make(map[string]*wsClient),
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Handler exposes the routes for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("playground listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout+time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.clients)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": n})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxSourceBytes)
	var req RunRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "source too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return
	}

	var out bytes.Buffer
	res := s.execute(r.Context(), "POST /run", req.Source, &out)

	resp := RunResponse{
		Output:   splitLines(out.String()),
		Error:    res.errorInfo(),
		Status:   res.status(),
		Steps:    res.stats.Steps,
		Duration: res.duration.String(),
		RunID:    res.runID,
	}
	writeJSON(w, http.StatusOK, resp)
}

func splitLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}
	}
	return lines
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type result struct {
	stats    interpreter.Stats
	err      error
	duration time.Duration
	runID    string
}

func (r result) status() string {
	if r.err != nil {
		return database.StatusError
	}
	return database.StatusOK
}

func (r result) errorInfo() *ErrorInfo {
	if r.err == nil {
		return nil
	}
	info := &ErrorInfo{Kind: string(errors.TypeOf(r.err)), Message: r.err.Error()}
	var te *errors.ToyError
	if stderrors.As(r.err, &te) {
		info.Message = te.Message
		info.Line = te.Location.Line
		info.Column = te.Location.Column
	}
	return info
}

// execute runs src under the server's budget and journals the outcome.
func (s *Server) execute(ctx context.Context, name, src string, out io.Writer) result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var captured bytes.Buffer
	start := time.Now()
	stats, err := interpreter.Exec(ctx, src, interpreter.Options{
		Output:      io.MultiWriter(out, &captured),
		BoolFormat:  s.cfg.BoolFormat,
		MaxSteps:    s.cfg.MaxSteps,
		MaxArrayLen: s.cfg.MaxArrayLen,
		Logger:      s.log,
	})
	res := result{stats: stats, err: err, duration: time.Since(start)}
	s.log.Debug("playground run", "endpoint", name, "steps", stats.Steps, "duration", res.duration, "error", err)

	if s.cfg.Journal != nil {
		run := database.Run{
			StartedAt: start,
			Duration:  res.duration,
			Name:      name,
			Digest:    database.Digest(src),
			Status:    res.status(),
			ErrorKind: string(errors.TypeOf(err)),
			Output:    captured.String(),
			Steps:     stats.Steps,
		}
		if err != nil {
			run.Message = err.Error()
		}
		// The request context may already be done; journal regardless.
		id, jerr := s.cfg.Journal.Record(context.WithoutCancel(ctx), run)
		if jerr != nil {
			s.log.Warn("journal write failed", "error", jerr)
		}
		res.runID = id
	}
	return res
}
