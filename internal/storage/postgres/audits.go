package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
)

// auditColumns lists every risk_score_audits column in struct-tag order.
const auditColumns = `id, user_id, report_id, snapshot_at,
	metric_history_days, metric_median_paycheck, metric_paycheck_regularity,
	metric_days_since_last_paycheck, metric_overdraft_count90, metric_clean_buffer7,
	metric_buffer_volatility, metric_deposit_multiplicity30, metric_net_cash30,
	metric_debt_load30, metric_volatility90,
	points_history_days, points_median_paycheck, points_paycheck_regularity,
	points_days_since_last_paycheck, points_overdraft_count90, points_clean_buffer7,
	points_buffer_volatility, points_deposit_multiplicity30, points_net_cash30,
	points_debt_load30, points_volatility90,
	base_score, blink_score, recommendation,
	flag_od_vol, flag_cash_crunch, flag_debt_trap,
	failure_reason, engine_version, created_at`

const auditInsert = `INSERT INTO risk_score_audits (` + auditColumns + `) VALUES (
	:id, :user_id, :report_id, :snapshot_at,
	:metric_history_days, :metric_median_paycheck, :metric_paycheck_regularity,
	:metric_days_since_last_paycheck, :metric_overdraft_count90, :metric_clean_buffer7,
	:metric_buffer_volatility, :metric_deposit_multiplicity30, :metric_net_cash30,
	:metric_debt_load30, :metric_volatility90,
	:points_history_days, :points_median_paycheck, :points_paycheck_regularity,
	:points_days_since_last_paycheck, :points_overdraft_count90, :points_clean_buffer7,
	:points_buffer_volatility, :points_deposit_multiplicity30, :points_net_cash30,
	:points_debt_load30, :points_volatility90,
	:base_score, :blink_score, :recommendation,
	:flag_od_vol, :flag_cash_crunch, :flag_debt_trap,
	:failure_reason, :engine_version, :created_at)`

// AuditStore implements interfaces.AuditStore over risk_score_audits.
type AuditStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *sqlx.DB, logger *common.Logger) *AuditStore {
	return &AuditStore{db: db, logger: logger}
}

func (s *AuditStore) Insert(ctx context.Context, audit *models.ScoreAudit) error {
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NamedExecContext(ctx, auditInsert, audit); err != nil {
		return fmt.Errorf("failed to insert audit: %w", err)
	}
	return nil
}

func (s *AuditStore) Latest(ctx context.Context, userID string) (*models.ScoreAudit, error) {
	query := `SELECT ` + auditColumns + ` FROM risk_score_audits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var audit models.ScoreAudit
	if err := s.db.GetContext(ctx, &audit, query, userID); err != nil {
		return nil, notFound(err, "audit for user", userID)
	}
	return &audit, nil
}

func (s *AuditStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ScoreAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + auditColumns + ` FROM risk_score_audits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var audits []*models.ScoreAudit
	if err := s.db.SelectContext(ctx, &audits, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return audits, nil
}

func (s *AuditStore) ListStaleUsers(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	// Users with a report whose newest audit predates the cutoff.
	// Never-scored users sort first so they are picked up before refreshes.
	query := `SELECT u.user_id
		FROM (SELECT DISTINCT user_id FROM reports) u
		LEFT JOIN LATERAL (
			SELECT created_at FROM risk_score_audits a
			WHERE a.user_id = u.user_id
			ORDER BY created_at DESC
			LIMIT 1
		) latest ON true
		WHERE latest.created_at IS NULL OR latest.created_at < $1
		ORDER BY latest.created_at ASC NULLS FIRST
		LIMIT $2`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale users: %w", err)
	}
	return ids, nil
}

// Compile-time check
var _ interfaces.AuditStore = (*AuditStore)(nil)
