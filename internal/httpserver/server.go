package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/graph-listings/internal/config"
	"github.com/blackmichael/graph-listings/internal/indexer"
	"github.com/blackmichael/graph-listings/internal/ranking"
)

// Server is the HTTP server that serves the listing read endpoints.
type Server struct {
	cfg        *config.Config
	indexer    *indexer.Indexer
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server over the given indexer.
func NewServer(cfg *config.Config, ix *indexer.Indexer, registry *prometheus.Registry, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		indexer: ix,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/listings", getOnly(http.HandlerFunc(s.handleListing)))
	mux.Handle("/health", getOnly(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/metrics", getOnly(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
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

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "path parameter is required")
		return
	}

	sortName := r.URL.Query().Get("sort")
	if sortName == "" {
		sortName = ranking.SortNew
	}
	if !slices.Contains(ranking.SortNames, sortName) {
		s.logger.Warn("invalid sort parameter", "sort", sortName)
		writeError(w, http.StatusBadRequest, "InvalidRequest", "unknown sort")
		return
	}

	limit := 25
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	ids, err := s.indexer.ThingIDs(r.Context(), path, sortName, limit, offset, nil)
	if err != nil {
		s.logger.Error("failed to read listing",
			"path", path,
			"sort", sortName,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to read listing")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"sort":   sortName,
		"things": ids,
	})
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

// getOnly restricts a handler to GET requests. It stands in for the
// "GET /path" ServeMux patterns of Go 1.22+, which the Go 1.21 mux
// treats as literal paths.
func getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
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
