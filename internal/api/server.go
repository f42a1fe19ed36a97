// Package api provides the HTTP API for watching a navsim run.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethanmclark1/conav-suite/internal/engine"
	"github.com/ethanmclark1/conav-suite/internal/observe"
	"github.com/ethanmclark1/conav-suite/internal/persistence"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
)

// Server serves runner state and stored episodes over HTTP.
type Server struct {
	Runner  *engine.Runner
	DB      *persistence.DB // nil disables the episode endpoints
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Limiter guards the database-backed endpoints. Nil uses 120 per minute.
	Limiter *RateLimiter
}

// Handler builds the routed handler with metrics and CORS middleware.
func (s *Server) Handler() http.Handler {
	limiter := s.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/v1/scenario/", s.handleScenarioDetail)
	mux.HandleFunc("/api/v1/episodes", RateLimitMiddleware(limiter, s.handleEpisodes))
	mux.HandleFunc("/api/v1/episode/", RateLimitMiddleware(limiter, s.handleEpisodeDetail))
	mux.HandleFunc("/api/v1/outcomes", RateLimitMiddleware(limiter, s.handleOutcomes))

	mux.HandleFunc("/api/v1/stop", s.adminOnly(s.handleStop))

	if s.MetricsHandler != nil {
		mux.Handle("/metrics", s.MetricsHandler)
	}

	var h http.Handler = corsMiddleware(mux)
	if s.Metrics != nil {
		h = observe.Middleware(s.Metrics)(h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "storage", s.DB != nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown error", "error", err)
			return err
		}
		return nil
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set NAVSIM_CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("NAVSIM_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no NAVSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		writeJSON(w, engine.Status{})
		return
	}
	writeJSON(w, s.Runner.Status())
}

type scenarioSummary struct {
	Name      string `json:"name"`
	Class     string `json:"class"`
	Polygonal bool   `json:"polygonal"`
	Dynamic   int    `json:"dynamic"`
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	names := scenario.Names()
	out := make([]scenarioSummary, 0, len(names))
	for _, name := range names {
		sc, err := scenario.Resolve(name)
		if err != nil {
			continue
		}
		out = append(out, scenarioSummary{
			Name:      sc.Name,
			Class:     sc.Class.String(),
			Polygonal: sc.Polygonal(),
			Dynamic:   len(sc.Dynamic),
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleScenarioDetail(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/scenario/")
	sc, err := scenario.Resolve(name)
	if err != nil {
		http.Error(w, "scenario not found", http.StatusNotFound)
		return
	}
	writeJSON(w, sc)
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	episodes, err := s.DB.RecentEpisodes(limit)
	if err != nil {
		slog.Error("list episodes failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if scen := r.URL.Query().Get("scenario"); scen != "" {
		filtered := episodes[:0]
		for _, e := range episodes {
			if e.Scenario == scen {
				filtered = append(filtered, e)
			}
		}
		episodes = filtered
	}
	if episodes == nil {
		episodes = []persistence.Episode{}
	}
	writeJSON(w, episodes)
}

func (s *Server) handleEpisodeDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/episode/")
	ep, term, trunc, err := s.DB.GetEpisode(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "episode not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get episode failed", "id", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	layout, err := s.DB.Placements(id)
	if err != nil {
		slog.Error("get placements failed", "id", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"episode":    ep,
		"terminated": term,
		"truncated":  trunc,
		"layout":     layout,
	})
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	counts, err := s.DB.OutcomeCounts()
	if err != nil {
		slog.Error("outcome counts failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, counts)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		http.Error(w, "no runner", http.StatusServiceUnavailable)
		return
	}
	s.Runner.Stop()
	slog.Info("runner stop requested via API")
	writeJSON(w, map[string]bool{"stopping": true})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
