package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
	"github.com/blinkcredit/blink/internal/scoring"
)

// handleScore handles POST /api/score — score one user from stored report data.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		UserID string     `json:"user_id"`
		DryRun bool       `json:"dry_run"`
		AsOf   *time.Time `json:"as_of"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := s.app.ScoreService.ScoreUser(r.Context(), req.UserID, interfaces.ScoreOptions{
		DryRun: req.DryRun,
		AsOf:   req.AsOf,
	})
	if err != nil {
		s.writeScoreError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// writeScoreError maps scoring failures onto HTTP statuses: unknown
// users are 404, too-short history is 422 with a machine-readable code,
// anything else is 500.
func (s *Server) writeScoreError(w http.ResponseWriter, err error) {
	var insufficient *scoring.InsufficientHistoryError
	switch {
	case errors.As(err, &insufficient):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "insufficient_history")
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Scoring request failed")
		WriteError(w, http.StatusInternalServerError, "scoring failed")
	}
}

// handleScoreBatch handles POST /api/score/batch — score a list of users.
// Per-user failures land in the report items, not the response status.
func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		UserIDs []string `json:"user_ids"`
		DryRun  bool     `json:"dry_run"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.UserIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "user_ids is required")
		return
	}

	report, err := s.app.ScoreService.ScoreBatch(r.Context(), req.UserIDs, interfaces.ScoreOptions{
		DryRun: req.DryRun,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Batch scoring request failed")
		WriteError(w, http.StatusInternalServerError, "batch scoring failed")
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// handleScorePreview handles POST /api/score/preview — score a caller
// supplied ledger without touching storage.
func (s *Server) handleScorePreview(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var input models.ScoreInput
	if !DecodeJSON(w, r, &input) {
		return
	}
	if len(input.Transactions) == 0 {
		WriteError(w, http.StatusBadRequest, "transactions are required")
		return
	}

	result, err := s.app.ScoreService.Preview(r.Context(), &input)
	if err != nil {
		s.writeScoreError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleUserAudits handles GET /api/users/{id}/audits — audit history, newest first.
func (s *Server) handleUserAudits(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	audits, err := s.app.ScoreService.History(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list audits")
		WriteError(w, http.StatusInternalServerError, "failed to list audits")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"audits":  audits,
		"count":   len(audits),
	})
}

// handleUserScore handles GET /api/users/{id}/score — the newest audit row.
func (s *Server) handleUserScore(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	audit, err := s.app.ScoreService.LatestScore(r.Context(), userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load latest score")
		WriteError(w, http.StatusInternalServerError, "failed to load latest score")
		return
	}

	WriteJSON(w, http.StatusOK, audit)
}

// handleRescore handles POST /api/rescore — enqueue rescore jobs now.
// With user_ids the named users are queued at manual priority; without,
// a stale scan runs immediately instead of waiting for the watcher.
func (s *Server) handleRescore(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	// An empty body means "scan for stale users now".
	if r.Body != nil && r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	if s.app.Rescorer == nil {
		WriteError(w, http.StatusServiceUnavailable, "Rescorer not running")
		return
	}

	count, err := s.app.Rescorer.TriggerRescore(r.Context(), req.UserIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to trigger rescore")
		WriteError(w, http.StatusInternalServerError, "failed to trigger rescore")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"enqueued": count,
	})
}

// handleJobs handles GET /api/jobs — recent queue activity.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	jobs, err := s.app.Storage.JobStore().ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	pending, err := s.app.Storage.JobStore().CountPending(r.Context())
	if err != nil {
		pending = 0
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":    jobs,
		"count":   len(jobs),
		"pending": pending,
	})
}

// handleJobsWS handles GET /api/jobs/ws — WebSocket upgrade for live job events.
func (s *Server) handleJobsWS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if s.app.Rescorer == nil {
		WriteError(w, http.StatusServiceUnavailable, "Rescorer not running")
		return
	}

	s.app.Rescorer.Hub().ServeWS(w, r)
}
