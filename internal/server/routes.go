package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/scoring"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/token", s.handleAuthToken)

	// Scoring
	mux.HandleFunc("/api/score", s.handleScore)
	mux.HandleFunc("/api/score/batch", s.handleScoreBatch)
	mux.HandleFunc("/api/score/preview", s.handleScorePreview)

	// Users
	mux.HandleFunc("/api/users/", s.routeUsers)

	// Rescore queue
	mux.HandleFunc("/api/rescore", s.handleRescore)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/ws", s.handleJobsWS)
}

// routeUsers dispatches /api/users/{id}/* to the appropriate handler.
func (s *Server) routeUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[0] == "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch parts[1] {
	case "audits":
		s.handleUserAudits(w, r, parts[0])
	case "score":
		s.handleUserScore(w, r, parts[0])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	if err := s.app.Storage.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Health check: database unreachable")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "down",
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"engine":  scoring.EngineVersion,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	store := s.app.Storage.InternalStore()

	// Runtime settings from system KV
	kvAll := map[string]string{}
	for _, key := range []string{"schema_version"} {
		if val, err := store.GetSystemKV(ctx, key); err == nil && val != "" {
			kvAll[key] = val
		}
	}

	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runtime_settings": kvAll,
		"environment":      cfg.Environment,
		"engine_version":   scoring.EngineVersion,
		"database_host":    cfg.Database.Host,
		"database_name":    cfg.Database.Name,
		"logging_level":    cfg.Logging.Level,
		"jwt_secret":       maskSecret(cfg.Auth.JWTSecret),
		"rescorer": map[string]interface{}{
			"enabled":        cfg.Rescorer.Enabled,
			"watch_interval": cfg.Rescorer.GetWatchInterval().String(),
			"stale_after":    cfg.Rescorer.GetStaleAfter().String(),
			"batch_size":     cfg.Rescorer.BatchSize,
			"max_concurrent": cfg.Rescorer.GetMaxConcurrent(),
			"rate_per_sec":   cfg.Rescorer.GetRatePerSec(),
			"dry_run":        cfg.Rescorer.DryRun,
		},
		"persist_snapshots": cfg.Scoring.PersistSnapshots,
	})
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
