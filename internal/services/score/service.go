// Package score orchestrates scoring runs over stored report data.
package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
	"github.com/blinkcredit/blink/internal/scoring"
)

// Service implements interfaces.ScoreService.
type Service struct {
	storage interfaces.StorageManager
	engine  *scoring.Engine
	logger  *common.Logger

	persistSnapshots bool
	now              func() time.Time // injectable clock for testing
}

// NewService creates a new score service.
func NewService(storage interfaces.StorageManager, engine *scoring.Engine, cfg common.ScoringConfig, logger *common.Logger) *Service {
	return &Service{
		storage:          storage,
		engine:           engine,
		logger:           logger,
		persistSnapshots: cfg.PersistSnapshots,
		now:              time.Now,
	}
}

// ScoreUser loads the newest report for a user, scores it, and persists
// the audit trail. Insufficient history still writes a partial audit so
// the rejection is traceable, then surfaces as a typed error.
func (s *Service) ScoreUser(ctx context.Context, userID string, options interfaces.ScoreOptions) (*models.ScoreResult, error) {
	start := s.now()

	input, err := s.loadInput(ctx, userID)
	if err != nil {
		return nil, err
	}
	if options.AsOf != nil {
		input.Context.AsOf = models.Day(*options.AsOf)
	}

	result, err := s.engine.Score(input)
	if err != nil {
		if !options.DryRun {
			s.recordFailure(ctx, input, err)
		}
		return nil, err
	}
	result.ComputedAt = s.now().UTC()

	if !options.DryRun {
		if err := s.persist(ctx, result, input.ReportID); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("user_id", userID).
		Float64("blink_score", result.BlinkScore).
		Str("recommendation", string(result.Recommendation)).
		Bool("dry_run", options.DryRun).
		Dur("elapsed", s.now().Sub(start)).
		Msg("User scored")

	return result, nil
}

// ScoreBatch scores users sequentially with per-user isolation: one bad
// ledger never aborts the pass.
func (s *Service) ScoreBatch(ctx context.Context, userIDs []string, options interfaces.ScoreOptions) (*models.BatchReport, error) {
	report := &models.BatchReport{Items: make([]models.BatchItem, 0, len(userIDs))}

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Stats.Processed++

		result, err := s.ScoreUser(ctx, userID, options)
		if err != nil {
			item := models.BatchItem{UserID: userID, Error: err.Error()}
			var insufficient *scoring.InsufficientHistoryError
			switch {
			case errors.As(err, &insufficient), errors.Is(err, interfaces.ErrNotFound):
				report.Stats.Skipped++
			default:
				report.Stats.Failed++
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("Batch scoring failed for user")
			}
			report.Items = append(report.Items, item)
			continue
		}

		report.Stats.Succeeded++
		blink := result.BlinkScore
		report.Items = append(report.Items, models.BatchItem{
			UserID:         userID,
			BlinkScore:     &blink,
			Recommendation: result.Recommendation,
		})
	}

	s.logger.Info().
		Int("processed", report.Stats.Processed).
		Int("succeeded", report.Stats.Succeeded).
		Int("failed", report.Stats.Failed).
		Int("skipped", report.Stats.Skipped).
		Msg("Batch scoring pass complete")

	return report, nil
}

// Preview scores caller-supplied input without touching storage. A zero
// reference date defaults to the newest transaction date.
func (s *Service) Preview(ctx context.Context, input *models.ScoreInput) (*models.ScoreResult, error) {
	if input == nil {
		return nil, fmt.Errorf("preview input is required")
	}
	if input.Context.AsOf.IsZero() {
		for i := range input.Transactions {
			if d := input.Transactions[i].Date; d.After(input.Context.AsOf) {
				input.Context.AsOf = d
			}
		}
	}

	result, err := s.engine.Score(input)
	if err != nil {
		return nil, err
	}
	result.ComputedAt = s.now().UTC()
	return result, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.ScoreAudit, error) {
	return s.storage.AuditStore().ListByUser(ctx, userID, limit)
}

func (s *Service) LatestScore(ctx context.Context, userID string) (*models.ScoreAudit, error) {
	return s.storage.AuditStore().Latest(ctx, userID)
}

// loadInput assembles the engine input from the user's newest report.
func (s *Service) loadInput(ctx context.Context, userID string) (*models.ScoreInput, error) {
	reports := s.storage.ReportStore()

	report, err := reports.LatestReport(ctx, userID)
	if err != nil {
		return nil, err
	}

	txns, err := reports.Transactions(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	balances, err := reports.DailyBalances(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	overrides, err := reports.TagOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag overrides: %w", err)
	}

	return &models.ScoreInput{
		UserID:   userID,
		ReportID: report.ID,
		Context: models.ReportContext{
			AsOf:           models.Day(report.GeneratedAt),
			CurrentBalance: report.CurrentBalance,
		},
		Transactions: txns,
		Balances:     balances,
		Overrides:    overrides,
	}, nil
}

// persist writes the audit row and, when enabled, the feature snapshot.
func (s *Service) persist(ctx context.Context, result *models.ScoreResult, reportID string) error {
	audit := models.NewScoreAudit(uuid.New().String(), result, reportID)
	if err := s.storage.AuditStore().Insert(ctx, audit); err != nil {
		return fmt.Errorf("failed to persist audit: %w", err)
	}

	if !s.persistSnapshots {
		return nil
	}
	features, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal feature snapshot: %w", err)
	}
	snap := &models.FeatureSnapshot{
		ID:         uuid.New().String(),
		UserID:     result.UserID,
		DecisionAt: result.ComputedAt,
		Features:   features,
	}
	if err := s.storage.SnapshotStore().Insert(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// recordFailure writes the partial audit row for a run that ended before
// scoring. Persistence errors are logged, not returned: the scoring
// failure is the one the caller needs to see.
func (s *Service) recordFailure(ctx context.Context, input *models.ScoreInput, scoreErr error) {
	audit := models.NewFailureAudit(uuid.New().String(), input.UserID, input.ReportID,
		input.Context.AsOf, scoreErr.Error(), scoring.EngineVersion)
	if err := s.storage.AuditStore().Insert(ctx, audit); err != nil {
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("Failed to persist failure audit")
	}
}

// Compile-time check
var _ interfaces.ScoreService = (*Service)(nil)
