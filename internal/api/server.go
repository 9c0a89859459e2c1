// Package api exposes run progress, liveness and metrics over HTTP, and a
// gRPC health service.
package api

import (
	"Go2NetIngest/internal/ingest"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProgressReporter returns the state of the current ingest run.
type ProgressReporter interface {
	Snapshot() ingest.ProgressSnapshot
}

// Server is the HTTP status server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewRouter builds the status routes.
func NewRouter(progress ProgressReporter) *mux.Router {
	h := &statusHandler{progress: progress}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/progress", h.progressHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// NewServer creates a status server listening on addr.
func NewServer(addr string, progress ProgressReporter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(progress),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status API starting", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status API stopped", zap.String("addr", s.server.Addr), zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("status API shutting down")
	return s.server.Shutdown(ctx)
}

type statusHandler struct {
	progress ProgressReporter
}

// progressHandler reports committed records and batches of the current run.
func (h *statusHandler) progressHandler(w http.ResponseWriter, _ *http.Request) {
	body, err := json.Marshal(h.progress.Snapshot())
	if err != nil {
		http.Error(w, "failed to marshal progress", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
