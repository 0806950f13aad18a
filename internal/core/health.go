package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/formlab/squatview/internal/keepalive"
)

// HealthStatus represents the health state of the service
type HealthStatus struct {
	Status          string           `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds   int64            `json:"uptime_seconds"`
	AnalyzerRemote  bool             `json:"analyzer_remote"`
	AnalyzerHealthy bool             `json:"analyzer_healthy"`
	LocalFallback   bool             `json:"local_fallback"`
	MQTTConnected   bool             `json:"mqtt_connected"`
	Keepalive       *keepalive.Stats `json:"keepalive,omitempty"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := HealthStatus{
		Status:         "healthy",
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		AnalyzerRemote: s.analyzer != nil,
		LocalFallback:  s.fallback != nil,
	}

	if s.poller != nil {
		st := s.poller.Status()
		status.Keepalive = &st
		status.AnalyzerHealthy = st.Healthy
	} else {
		// No poller means either no remote analyzer or keepalive disabled;
		// assume reachable until an upload proves otherwise.
		status.AnalyzerHealthy = s.analyzer != nil
	}

	if s.emitter != nil {
		status.MQTTConnected = s.emitter.Stats().Connected
	}

	if !s.isRunning {
		status.Status = "unhealthy"
	} else if (s.analyzer != nil && !status.AnalyzerHealthy && s.fallback == nil) ||
		(s.emitter != nil && !status.MQTTConnected) {
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness (detailed readiness check)
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// startHealthServer starts the HTTP health check server. Non-blocking.
func (s *Service) startHealthServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)

	s.health = &http.Server{
		Addr:         s.cfg.Server.HealthAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"addr", s.cfg.Server.HealthAddr,
		"endpoints", []string{"/health", "/readiness"},
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
