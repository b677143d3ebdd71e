// Package api exposes the HTTP status interface for the watcher service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/scheduler"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// StatusSource reports the scheduler's state and last cycle.
type StatusSource interface {
	State() scheduler.State
	Snapshot() scheduler.CycleSnapshot
}

// Server wires HTTP handlers to the scheduler and store.
type Server struct {
	router   chi.Router
	status   StatusSource
	pinger   watch.Pinger
	entities []watch.Entity
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	status StatusSource,
	pinger watch.Pinger,
	entities []watch.Entity,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status:   status,
		pinger:   pinger,
		entities: entities,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/entities", s.listEntities)
		r.Get("/status", s.getStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "store unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type entityView struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

func (s *Server) listEntities(w http.ResponseWriter, _ *http.Request) {
	// Query templates stay private: they routinely carry upstream IDs the
	// operator may not want exposed on an unauthenticated endpoint.
	views := make([]entityView, 0, len(s.entities))
	for _, e := range s.entities {
		views = append(views, entityView{Identifier: e.Identifier, Name: e.Name})
	}
	writeJSON(w, http.StatusOK, views)
}

type statusView struct {
	State     scheduler.State         `json:"state"`
	LastCycle scheduler.CycleSnapshot `json:"last_cycle"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusView{
		State:     s.status.State(),
		LastCycle: s.status.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
