// Package interfaces defines service contracts for Blink
package interfaces

import (
	"context"
	"time"

	"github.com/blinkcredit/blink/internal/models"
)

// ScoreService orchestrates scoring runs against stored report data
type ScoreService interface {
	// ScoreUser loads the user's latest report data, computes a score,
	// and persists the audit row and feature snapshot.
	ScoreUser(ctx context.Context, userID string, options ScoreOptions) (*models.ScoreResult, error)

	// ScoreBatch scores each user in turn and returns per-user outcomes.
	// Individual failures are recorded in the report, not returned as errors.
	ScoreBatch(ctx context.Context, userIDs []string, options ScoreOptions) (*models.BatchReport, error)

	// Preview computes a score from caller-supplied input without touching
	// storage. Used for what-if runs against hypothetical ledgers.
	Preview(ctx context.Context, input *models.ScoreInput) (*models.ScoreResult, error)

	// History returns the most recent audit rows for a user, newest first.
	History(ctx context.Context, userID string, limit int) ([]*models.ScoreAudit, error)

	// LatestScore returns the newest audit row for a user.
	// Returns ErrNotFound when the user has never been scored.
	LatestScore(ctx context.Context, userID string) (*models.ScoreAudit, error)
}

// ScoreOptions configures a scoring run
type ScoreOptions struct {
	DryRun bool       // Compute without persisting audit or snapshot
	AsOf   *time.Time // Override the reference date (default: report generation date)
}
