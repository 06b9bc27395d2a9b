// Package server provides the worker's health endpoints and graceful
// shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker is a function that performs a health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer provides HTTP health check endpoints.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
	live    bool
	srv     *http.Server
	extra   map[string]http.Handler
}

// NewHealthServer creates a health server. It starts live but not ready.
func NewHealthServer(version string) *HealthServer {
	return &HealthServer{
		checks:  make(map[string]HealthChecker),
		extra:   make(map[string]http.Handler),
		version: version,
		live:    true,
	}
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// Handle serves h at pattern next to the health endpoints. It must be
// called before the server starts.
func (s *HealthServer) Handle(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[pattern] = h
}

// SetReady marks the server as ready to accept work.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns an http.Handler for the health endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleProbe(func() bool { return s.ready }))
	mux.HandleFunc("/live", s.handleProbe(func() bool { return s.live }))
	mux.HandleFunc("/healthz", s.handleHealth)
	s.mu.RLock()
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}
	s.mu.RUnlock()
	return mux
}

// ListenAndServe serves the health endpoints until Shutdown is called.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8081"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server started by ListenAndServe.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Check runs every registered check and aggregates their status.
func (s *HealthServer) Check(ctx context.Context) HealthResponse {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()
	sort.Strings(names)

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
			response.Status = HealthStatusDegraded
		}
	}
	return response
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := s.Check(ctx)
	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}

func (s *HealthServer) handleProbe(up func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ok := up()
		s.mu.RUnlock()

		response := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
		if !ok {
			response.Status = HealthStatusUnhealthy
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// TemporalHealthChecker creates a health check for Temporal connectivity.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Temporal connection failed: " + err.Error(),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Temporal connection OK"}
	}
}

// ToolchainHealthChecker reports whether the generator the worker runs
// is still present and executable.
func ToolchainHealthChecker(executable string) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"executable": executable}
		info, err := os.Stat(executable)
		if err != nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: err.Error(), Details: details}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("%s is not executable", executable),
				Details: details,
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "toolchain OK", Details: details}
	}
}
