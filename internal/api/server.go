// Package api provides the HTTP diagnostic server for cpudetect.
//
// Routes:
//
//	GET  /health                  → Health check
//	GET  /api/info                → Full detection snapshot
//	GET  /api/features            → Present features, grouped by category
//	GET  /api/features/{name}     → Registry entry and presence of one feature
//	GET  /api/topology            → Core/thread topology
//	GET  /api/cache               → Cache hierarchy
//	GET  /api/leaf?leaf=&subleaf= → Raw registers of one CPUID query
//	GET  /metrics                 → Prometheus exposition
//
// Every request runs a fresh detection pass.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assembler-0/cpudetect/internal/config"
	"github.com/assembler-0/cpudetect/internal/cpu"
	"github.com/assembler-0/cpudetect/internal/cpuid"
	"github.com/assembler-0/cpudetect/internal/metrics"
)

// shutdownTimeout bounds the graceful drain when the context ends.
const shutdownTimeout = 10 * time.Second

// Server is the cpudetect HTTP server.
type Server struct {
	cfg     *config.Config
	q       cpuid.Querier
	metrics *metrics.Collector
	mux     *http.ServeMux
	started time.Time
}

// NewServer creates a Server with all routes registered. Detections go
// through mc; raw leaf queries go to q.
func NewServer(cfg *config.Config, q cpuid.Querier, mc *metrics.Collector) *Server {
	s := &Server{
		cfg:     cfg,
		q:       q,
		metrics: mc,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on cfg.Addr() until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.mux,
		// ReadHeaderTimeout prevents slow-loris: clients that send headers very
		// slowly would otherwise hold a goroutine open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(s.metrics)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/info", s.handleInfo)
	s.mux.HandleFunc("GET /api/features", s.handleFeatures)
	s.mux.HandleFunc("GET /api/features/{name}", s.handleFeature)
	s.mux.HandleFunc("GET /api/topology", s.handleTopology)
	s.mux.HandleFunc("GET /api/cache", s.handleCache)
	s.mux.HandleFunc("GET /api/leaf", s.handleLeaf)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// ─────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// ─────────────────────────────────────────────────────────────────────────
// Detection
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Detect())
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	info := s.metrics.Detect()
	groups := make(map[string][]string)
	for cat, names := range info.Features.ByCategory() {
		groups[cat.String()] = names
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       info.Features.Len(),
		"summary":     cpu.FeatureSummary(info.Features),
		"by_category": groups,
	})
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, ok := cpu.LookupFeature(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown feature "+strconv.Quote(name))
		return
	}
	info := s.metrics.Detect()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature": f,
		"present": info.Features.Has(f.Name),
	})
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	info := s.metrics.Detect()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topology":             info.Topology,
		"optimal_thread_count": cpu.OptimalThreadCount(info.Topology),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	info := s.metrics.Detect()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"caches": info.Caches,
		"tlbs":   info.TLBs,
	})
}

// ─────────────────────────────────────────────────────────────────────────
// Raw leaves
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleLeaf(w http.ResponseWriter, r *http.Request) {
	leaf, err := parseUint32(r.URL.Query().Get("leaf"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid leaf: "+err.Error())
		return
	}
	var sub uint32
	if v := r.URL.Query().Get("subleaf"); v != "" {
		if sub, err = parseUint32(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid subleaf: "+err.Error())
			return
		}
	}

	// The same support check the decoders apply: beyond the maximum the
	// registers are garbage.
	res, ok := cpuid.NewCache(s.q).Lookup(leaf, sub)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaf":      leaf,
		"subleaf":   sub,
		"supported": ok,
		"registers": res,
	})
}

// parseUint32 accepts decimal and 0x-prefixed hexadecimal.
func parseUint32(s string) (uint32, error) {
	if s == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
