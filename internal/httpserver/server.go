package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/syndicator/internal/domain"
)

// Syndicator is the subset of the syndication service the server exposes.
type Syndicator interface {
	Targets() []domain.TargetInfo
	SyndicatePost(ctx context.Context, url string, force bool) (*domain.Outcome, error)
	SyndicatePending(ctx context.Context) (*domain.Summary, error)
}

// Server is the HTTP server that triggers syndication.
type Server struct {
	syndicator Syndicator
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server listening on port.
func NewServer(port int, syndicator Syndicator, logger *slog.Logger) *Server {
	s := &Server{
		syndicator: syndicator,
		logger:     logger,
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// Batches pause between posts, so responses can take a while.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /targets", s.handleTargets)
	mux.HandleFunc("POST /syndicate", s.handleSyndicate)
	return withLogging(s.logger, mux)
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTargets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"targets": s.syndicator.Targets()})
}

// handleSyndicate syndicates the post named by source_url, forcing
// re-delivery to its requested targets, or runs a batch over every pending
// post when no URL is given.
func (s *Server) handleSyndicate(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")

	if sourceURL != "" {
		outcome, err := s.syndicator.SyndicatePost(r.Context(), sourceURL, true)
		if err != nil {
			s.logger.Error("failed to syndicate post", "url", sourceURL, "error", err)
			writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, outcome)
		return
	}

	summary, err := s.syndicator.SyndicatePending(r.Context())
	if err != nil {
		s.logger.Error("failed to run batch", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to run batch")
		return
	}

	s.logger.Info("batch request complete",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
