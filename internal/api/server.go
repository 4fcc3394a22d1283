// Package api exposes the per-process control surface. Every fleet process
// runs one: operators stop, restart and inspect the background loop over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
)

const authHeader = "authorization-microservice"

type Server struct {
	service string
	version string
	secret  string
	state   *engine.State

	// storeCount reports held leases; nil for processes that do not hold any.
	storeCount func() int

	log logger.Logger
}

func NewServer(service, version, secret string, state *engine.State, storeCount func() int, log logger.Logger) *Server {
	return &Server{
		service:    service,
		version:    version,
		secret:     secret,
		state:      state,
		storeCount: storeCount,
		log:        log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.requireAuth(s.getStatus))
	mux.HandleFunc("POST /stop", s.requireAuth(s.postStop))
	mux.HandleFunc("POST /start", s.requireAuth(s.postStart))

	// Liveness and metrics stay open for the platform probes.
	mux.HandleFunc("GET /health", s.getHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// requireAuth guards a handler with the shared microservice secret. The
// header uses its own name so an ingress never strips or rewrites it.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get(authHeader), "Bearer ")
		if !ok || s.secret == "" || token != s.secret {
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusResponse struct {
	Service      string `json:"service"`
	Version      string `json:"version"`
	Running      bool   `json:"running"`
	LastResponse string `json:"last_response"`
	Stores       *int   `json:"stores,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	running, last := s.state.Snapshot()
	resp := statusResponse{
		Service:      s.service,
		Version:      s.version,
		Running:      running,
		LastResponse: last,
	}
	if s.storeCount != nil {
		n := s.storeCount()
		resp.Stores = &n
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	s.state.Stop()
	s.log.Info("stop requested over control api", "service", s.service)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) postStart(w http.ResponseWriter, r *http.Request) {
	if !s.state.Restart() {
		s.jsonError(w, "loop is already running", http.StatusConflict)
		return
	}
	s.log.Info("start requested over control api", "service", s.service)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "starting"})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": s.service})
}
