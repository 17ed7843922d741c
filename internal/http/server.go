// Package http is the local control surface for the live monitor: an
// external scheduler can read run statistics and force an immediate
// cycle around post-time.
package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/keibalab/racedata-ingester/internal/ingest"
)

// StatusSource exposes the current run's statistics.
type StatusSource interface {
	Snapshot() ingest.Snapshot
}

// DBChecker abstracts the database health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

// Triggers are the callbacks behind the /trigger endpoints. Nil
// callbacks report 404 for their path.
type Triggers struct {
	Realtime   func()
	Historical func()
}

type Server struct {
	srv       *http.Server
	stats     StatusSource
	triggers  Triggers
	dbChecker DBChecker
	logger    *zap.Logger
}

func NewServer(addr string, stats StatusSource, triggers Triggers, dbChecker DBChecker, logger *zap.Logger) *Server {
	s := &Server{
		stats:     stats,
		triggers:  triggers,
		dbChecker: dbChecker,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/trigger", s.handleTrigger(triggers.Realtime, triggers.Historical))
	mux.HandleFunc("/trigger/realtime", s.handleTrigger(triggers.Realtime))
	mux.HandleFunc("/trigger/historical", s.handleTrigger(triggers.Historical))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.stats == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no run active"})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.stats.Snapshot())
}

func (s *Server) handleTrigger(fns ...func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fired := 0
		for _, fn := range fns {
			if fn != nil {
				fn()
				fired++
			}
		}
		if fired == 0 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "trigger not available"})
			return
		}
		s.logger.Info("cycle triggered", zap.String("path", r.URL.Path))
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["database"] = "error"
			allOK = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "error"
		allOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
