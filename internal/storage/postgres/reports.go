package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/interfaces"
	"github.com/blinkcredit/blink/internal/models"
)

// ReportStore implements interfaces.ReportStore. The report hierarchy is
// written by the ingestion service; this store only reads it.
type ReportStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

// NewReportStore creates a new ReportStore.
func NewReportStore(db *sqlx.DB, logger *common.Logger) *ReportStore {
	return &ReportStore{db: db, logger: logger}
}

func (s *ReportStore) LatestReport(ctx context.Context, userID string) (*models.Report, error) {
	query := `SELECT id, user_id, generated_at, current_balance, created_at
		FROM reports
		WHERE user_id = $1
		ORDER BY generated_at DESC, created_at DESC
		LIMIT 1`

	var report models.Report
	if err := s.db.GetContext(ctx, &report, query, userID); err != nil {
		return nil, notFound(err, "report for user", userID)
	}
	return &report, nil
}

func (s *ReportStore) Transactions(ctx context.Context, reportID string) ([]models.Transaction, error) {
	query := `SELECT id, posted_at, amount, merchant_name, description, category, category_id, pending
		FROM report_transactions
		WHERE report_id = $1
		ORDER BY posted_at ASC, id ASC`

	rows, err := s.db.QueryxContext(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		// Category is text[]; scan explicitly through pq.Array.
		if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &t.MerchantName, &t.Description,
			pq.Array(&t.Category), &t.CategoryID, &t.Pending); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

func (s *ReportStore) DailyBalances(ctx context.Context, reportID string) ([]models.DailyBalance, error) {
	query := `SELECT balance_date, balance
		FROM report_balances
		WHERE report_id = $1
		ORDER BY balance_date ASC`

	var balances []models.DailyBalance
	if err := s.db.SelectContext(ctx, &balances, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	return balances, nil
}

func (s *ReportStore) TagOverrides(ctx context.Context, userID string) (map[string]models.TagOverride, error) {
	query := `SELECT transaction_id, is_payroll, is_loan_payment
		FROM tag_overrides
		WHERE user_id = $1`

	rows, err := s.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]models.TagOverride)
	for rows.Next() {
		var txnID string
		var ov models.TagOverride
		if err := rows.Scan(&txnID, &ov.IsPayroll, &ov.IsLoanPayment); err != nil {
			return nil, fmt.Errorf("failed to scan tag override: %w", err)
		}
		overrides[txnID] = ov
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag overrides: %w", err)
	}
	return overrides, nil
}

func (s *ReportStore) ListUserIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM reports ORDER BY user_id`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// Compile-time check
var _ interfaces.ReportStore = (*ReportStore)(nil)
