// Package httpapi is the HTTP+SSE boundary: a thin adapter over
// internal/agentloop, internal/memory, and internal/toolstore. No
// planning or sandboxing logic lives here.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaegerbomb42/boxedin/internal/agentloop"
	"github.com/yaegerbomb42/boxedin/internal/planner"
	"github.com/yaegerbomb42/boxedin/internal/sandbox"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// Server wires one shared Sandbox and ToolStore (Prometheus metrics are
// registered once at Sandbox construction, so this package never builds a
// second Sandbox) to a per-request agentloop.Loop, since Loop itself holds
// no state beyond these collaborators and a Config value.
type Server struct {
	Store      *toolstore.Store
	Sandbox    *sandbox.Sandbox
	Gen        planner.Generator
	LoopCfg    agentloop.Config
	DataDir    string
	SandboxDir string
	Logger     *slog.Logger

	toolsCache atomic.Pointer[[]toolstore.Manifest]
}

// Mux builds the routed http.Handler and starts a catalog watch so a
// long-running server's `GET /api/tools` cache follows `import` or
// tool-creation writes without a restart.
func (s *Server) Mux() http.Handler {
	s.refreshToolsCache()
	if stop, err := s.Store.Watch(s.logger(), s.refreshToolsCache); err == nil {
		_ = stop // held open for the server's lifetime; process exit reclaims it
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/run-stream", s.handleRunStream)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// refreshToolsCache reloads the catalog from disk and publishes it
// atomically so concurrent handleTools requests never observe a partial
// read; a failed reload logs and leaves the previous cache in place.
func (s *Server) refreshToolsCache() {
	records, err := s.Store.Load()
	if err != nil {
		s.logger().Warn("httpapi: refresh tools cache", "error", err)
		return
	}
	summaries := make([]toolstore.Manifest, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, rec.Manifest)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	s.toolsCache.Store(&summaries)
}

// cachedTools returns the most recently published catalog snapshot,
// populating it on first use if Mux never ran (e.g. direct unit tests).
func (s *Server) cachedTools() []toolstore.Manifest {
	if p := s.toolsCache.Load(); p != nil {
		return *p
	}
	s.refreshToolsCache()
	if p := s.toolsCache.Load(); p != nil {
		return *p
	}
	return nil
}

// loopFor builds a fresh agentloop.Loop with NetworkAllowed overridden by
// the request's network flag. Constructing a Loop is cheap (no I/O, no
// metric registration) since all the expensive collaborators (Sandbox,
// Store) are shared.
func (s *Server) loopFor(networkAllowed bool) *agentloop.Loop {
	cfg := s.LoopCfg
	cfg.NetworkAllowed = networkAllowed
	return agentloop.New(s.Store, s.Sandbox, s.Gen, cfg)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestTimeout bounds how long a single HTTP handler is willing to let a
// goal run before the request context is cancelled; the sandbox's own
// per-tool timeout still applies underneath this.
const requestTimeout = 10 * time.Minute
