// Package api provides the HTTP control surface for acdprobed: health,
// Prometheus metrics, instance status, and a single mutating endpoint to
// stop a watched instance.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ipv4acd/ipv4acd/internal/acd"
	"github.com/ipv4acd/ipv4acd/internal/config"
	"github.com/ipv4acd/ipv4acd/internal/metrics"
)

// Instance is a single running acd.Detector exposed over the API.
type Instance struct {
	Address   net.IP
	Interface string
	Detector  *acd.Detector
}

// Server is the HTTP API server for acdprobed.
type Server struct {
	cfg        config.APIConfig
	instances  []*Instance
	logger     *slog.Logger
	auth       *AuthMiddleware
	httpServer *http.Server
	startTime  time.Time
	version    string
}

// NewServer creates a new API server over the given set of instances.
func NewServer(cfg config.APIConfig, instances []*Instance, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		instances: instances,
		logger:    logger,
		auth:      NewAuthMiddleware(cfg, logger),
		startTime: time.Now(),
		version:   "dev",
	}
}

// Listen binds the API server to its configured address and prepares routes.
func (s *Server) Listen() (net.Listener, error) {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := newMetricsMiddleware(mux)

	s.httpServer = &http.Server{
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("binding API server to %s: %w", s.cfg.Listen, err)
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server: %w", err)
	}
	return nil
}

// Start is a convenience that calls Listen + Serve. Blocks until shutdown.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.auth.RequireAuth(s.handleStatus))
	mux.HandleFunc("POST /api/instances/{addr}/stop", s.auth.RequireAuth(s.handleStopInstance))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type instanceStatus struct {
	Address   string `json:"address"`
	Interface string `json:"interface"`
	State     string `json:"state"`
	Running   bool   `json:"running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := struct {
		UptimeSeconds float64          `json:"uptime_seconds"`
		Version       string           `json:"version"`
		Instances     []instanceStatus `json:"instances"`
	}{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Version:       s.version,
	}

	for _, inst := range s.instances {
		out.Instances = append(out.Instances, instanceStatus{
			Address:   inst.Address.String(),
			Interface: inst.Interface,
			State:     inst.Detector.State().String(),
			Running:   inst.Detector.IsRunning(),
		})
	}

	JSONResponse(w, http.StatusOK, out)
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("addr")

	for _, inst := range s.instances {
		if inst.Address.String() == addr {
			inst.Detector.Stop()
			JSONResponse(w, http.StatusOK, map[string]string{
				"address": addr,
				"status":  "stopped",
			})
			return
		}
	}

	JSONError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no instance watching %s", addr))
}

// JSONResponse writes a JSON response with the given status code.
func JSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JSONError writes a JSON error response.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// metricsMiddleware wraps an http.Handler to record request metrics.
type metricsMiddleware struct {
	next http.Handler
}

func newMetricsMiddleware(next http.Handler) http.Handler {
	return &metricsMiddleware{next: next}
}

func (m *metricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	m.next.ServeHTTP(sw, r)

	duration := time.Since(start).Seconds()
	path := normalizePath(r.URL.Path)

	metrics.APIRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
	metrics.APIRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
}

// statusWriter captures the HTTP status code.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.wrote = true
	}
	return w.ResponseWriter.Write(b)
}

// normalizePath collapses the dynamic instance-address segment so the
// per-path request metric doesn't grow a label per watched address.
func normalizePath(path string) string {
	const prefix = "/api/instances/"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return prefix + "{addr}/stop"
	}
	return path
}
