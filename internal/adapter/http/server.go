// Package http exposes the service over HTTP: health, readiness, and
// metrics endpoints plus the speed limit API that replaces a sensor
// platform's entity surface.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
)

// Service is the poller surface the API exposes.
type Service interface {
	CheckReadiness(ctx context.Context) error
	Current() (domain.SensorState, bool)
	PollingActive() bool
	UpdateLocation(primary, secondary *domain.LocationSnapshot) error
	TriggerRefresh()
}

// Server exposes health, readiness, metrics, and the speed limit API.
type Server struct {
	httpServer *http.Server
	service    Service
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, service Service, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/speedlimit", s.handleSpeedLimit)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("PUT /v1/location", s.handleUpdateLocation)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// speedLimitResponse renders a SensorState. A nil speed value is rendered
// as the string "unknown" rather than null.
type speedLimitResponse struct {
	State      any                     `json:"state"`
	Unit       string                  `json:"unit"`
	Attributes domain.SensorAttributes `json:"attributes"`
}

func (s *Server) handleSpeedLimit(w http.ResponseWriter, _ *http.Request) {
	state, ok := s.service.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no speed limit resolved yet"})
		return
	}

	resp := speedLimitResponse{
		State:      "unknown",
		Unit:       state.Unit,
		Attributes: state.Attributes,
	}
	if state.State != nil {
		resp.State = *state.State
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	PollingActive  bool                `json:"polling_active"`
	DataSource     domain.ProviderKind `json:"data_source,omitempty"`
	ActiveProvider domain.ProviderKind `json:"active_provider,omitempty"`
	FallbackActive bool                `json:"fallback_active"`
	Degraded       bool                `json:"degraded"`
	LastUpdate     *time.Time          `json:"last_update,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{PollingActive: s.service.PollingActive()}
	if state, ok := s.service.Current(); ok {
		resp.DataSource = state.Attributes.DataSource
		resp.ActiveProvider = state.Attributes.ActiveProvider
		resp.FallbackActive = state.Attributes.FallbackActive
		resp.Degraded = state.State == nil
		lastUpdate := state.Attributes.LastUpdate
		resp.LastUpdate = &lastUpdate
	}
	writeJSON(w, http.StatusOK, resp)
}

// locationRequest carries the tracked entity snapshots. Secondary is only
// used by the split latitude/longitude extraction form.
type locationRequest struct {
	Primary   *domain.LocationSnapshot `json:"primary"`
	Secondary *domain.LocationSnapshot `json:"secondary,omitempty"`
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Primary == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "primary snapshot is required"})
		return
	}

	if err := s.service.UpdateLocation(req.Primary, req.Secondary); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("location updated", "state", req.Primary.State)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.service.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
