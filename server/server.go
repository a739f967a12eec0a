// Package server exposes the library core over HTTP/JSON.
//
// Handlers only parse and validate requests, call the LibraryManager and
// render its results; every business rule lives in package library.
package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"library-service/library"
)

// Server is the HTTP layer over one LibraryManager.
type Server struct {
	lib     *library.LibraryManager
	log     *slog.Logger
	metrics *metrics.Set
}

// New creates a server for lib. A nil logger discards output.
func New(lib *library.LibraryManager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{lib: lib, log: log, metrics: metrics.NewSet()}
}

// health answers GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeMetrics answers GET /metrics in Prometheus text format.
func (s *Server) writeMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
}

func (s *Server) count(name string) {
	s.metrics.GetOrCreateCounter(name).Inc()
}
