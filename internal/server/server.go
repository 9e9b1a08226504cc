// Package server exposes the triage agent over HTTP: the tracker webhook, the
// fix analysis endpoints, the code index endpoints and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/easeaico/bug-triage-agent/internal/analysis"
	"github.com/easeaico/bug-triage-agent/internal/metrics"
	"github.com/easeaico/bug-triage-agent/internal/tracker"
)

// Analyzer is the fix recall policy as used over HTTP.
type Analyzer interface {
	Analyze(ctx context.Context, title, description string, files []string) (map[string]string, error)
	Remember(ctx context.Context, title, description string, fix map[string]string) error
	Generate(ctx context.Context, prompt string) (string, error)
}

// BugProcessor runs a single bug through triage.
type BugProcessor interface {
	ProcessBug(ctx context.Context, issue tracker.Issue) (string, error)
}

// CodeIndex stores and ranks learned source files.
type CodeIndex interface {
	Learn(ctx context.Context, file, content string) error
	Query(ctx context.Context, text string, topK int) ([]string, error)
	Files(ctx context.Context) (map[string]string, error)
}

// Server routes HTTP requests to the triage components. Processor and index
// are optional; their endpoints answer 503 when absent.
type Server struct {
	analyzer  Analyzer
	processor BugProcessor
	index     CodeIndex
	router    *mux.Router
}

// New builds a Server and registers its routes.
func New(analyzer Analyzer, processor BugProcessor, index CodeIndex) *Server {
	s := &Server{
		analyzer:  analyzer,
		processor: processor,
		index:     index,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestLogger)

	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost, http.MethodGet)

	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/remember", s.handleRemember).Methods(http.MethodPost)
	r.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)

	r.HandleFunc("/learn", s.handleLearn).Methods(http.MethodPost)
	r.HandleFunc("/memory", s.handleMemory).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	log := clog.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting webhook server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// requestLogger tags each request's logger with a fresh request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		logger := clog.FromContext(r.Context()).With("request_id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(clog.WithLogger(r.Context(), logger)))
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an analysis error to a response status.
func statusFor(err error) int {
	if errors.Is(err, analysis.ErrAnalysisUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
