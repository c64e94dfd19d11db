package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payroll rule-mask bits. Confidence weight derives from the popcount.
const (
	PayrollRuleCategory uint8 = 1 << 0 // category path or category-id match
	PayrollRuleKeyword  uint8 = 1 << 1 // employer keyword in merchant/description
	PayrollRuleCadence  uint8 = 1 << 2 // deposit cadence detected
)

// TaggedTransaction is a Transaction after heuristic classification.
type TaggedTransaction struct {
	Transaction

	IsPayroll      bool  `json:"is_payroll"`
	IsLoanPayment  bool  `json:"is_loan_payment"`
	IsOverdraftFee bool  `json:"is_overdraft_fee"`
	PayrollMask    uint8 `json:"payroll_rule_mask"`
	// PayrollWeight is quantized to {0, 0.2, 0.5, 1.0}; an override pins
	// it to 0 or 1.
	PayrollWeight float64 `json:"payroll_confidence_weight"`
}

// ReliablePayroll reports whether this transaction is a payroll event
// confident enough to anchor recency metrics.
func (t *TaggedTransaction) ReliablePayroll() bool {
	return t.IsPayroll && t.PayrollWeight >= 0.5
}

// MetricVector carries the eleven behavioral metrics. Nil means the
// metric could not be computed from the available data; the scorer
// distinguishes nil from zero.
type MetricVector struct {
	HistoryDays           *int             `json:"history_days"`
	MedianPaycheck        *decimal.Decimal `json:"median_paycheck"`
	PaycheckRegularity    *float64         `json:"paycheck_regularity"`
	DaysSinceLastPaycheck *int             `json:"days_since_last_paycheck"`
	OverdraftCount90      *int             `json:"overdraft_count90"`
	CleanBuffer7          *decimal.Decimal `json:"clean_buffer7"`
	BufferVolatility      *float64         `json:"buffer_volatility"`
	DepositMultiplicity30 *float64         `json:"deposit_multiplicity30"`
	NetCash30             *decimal.Decimal `json:"net_cash30"`
	DebtLoad30            *decimal.Decimal `json:"debt_load30"`
	Volatility90          *float64         `json:"volatility90"`
}

// PointBreakdown holds the per-metric point contributions. The liquidity
// composite is attributed to CleanBuffer7; BufferVolatility participates
// through the composite and its own field stays zero.
type PointBreakdown struct {
	HistoryDays           int `json:"history_days"`
	MedianPaycheck        int `json:"median_paycheck"`
	PaycheckRegularity    int `json:"paycheck_regularity"`
	DaysSinceLastPaycheck int `json:"days_since_last_paycheck"`
	OverdraftCount90      int `json:"overdraft_count90"`
	CleanBuffer7          int `json:"clean_buffer7"`
	BufferVolatility      int `json:"buffer_volatility"`
	DepositMultiplicity30 int `json:"deposit_multiplicity30"`
	NetCash30             int `json:"net_cash30"`
	DebtLoad30            int `json:"debt_load30"`
	Volatility90          int `json:"volatility90"`
}

// Total returns the sum of all point contributions (the base score).
func (p *PointBreakdown) Total() int {
	return p.HistoryDays +
		p.MedianPaycheck +
		p.PaycheckRegularity +
		p.DaysSinceLastPaycheck +
		p.OverdraftCount90 +
		p.CleanBuffer7 +
		p.BufferVolatility +
		p.DepositMultiplicity30 +
		p.NetCash30 +
		p.DebtLoad30 +
		p.Volatility90
}

// Recommendation is the approval decision attached to a score.
type Recommendation string

const (
	RecommendationApproved Recommendation = "approved"
	RecommendationRejected Recommendation = "rejected"
)

// RiskFlags are the three orthogonal early-warning signals. Each is
// raised independently of the score for reviewer attention.
type RiskFlags struct {
	OverdraftVolatility bool `json:"od_vol"`
	CashCrunch          bool `json:"cash_crunch"`
	DebtTrap            bool `json:"debt_trap"`
}

// ScoreResult is the full output of one scoring run.
type ScoreResult struct {
	UserID         string              `json:"user_id,omitempty"`
	AsOf           time.Time           `json:"as_of"`
	Metrics        MetricVector        `json:"metrics"`
	Points         PointBreakdown      `json:"points"`
	BaseScore      int                 `json:"base_score"`
	BlinkScore     float64             `json:"blink_score"`
	Recommendation Recommendation      `json:"recommendation"`
	Flags          RiskFlags           `json:"flags"`
	Tagged         []TaggedTransaction `json:"tagged_transactions,omitempty"`
	SkippedRows    int                 `json:"skipped_rows,omitempty"`
	EngineVersion  string              `json:"engine_version"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// ScoreAudit is one persisted audit row. Metric and point columns are
// NULL when the run failed before scoring (insufficient history).
type ScoreAudit struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	ReportID   string    `json:"report_id,omitempty" db:"report_id"`
	SnapshotAt time.Time `json:"snapshot_at" db:"snapshot_at"`

	MetricHistoryDays           *int             `json:"metric_history_days" db:"metric_history_days"`
	MetricMedianPaycheck        *decimal.Decimal `json:"metric_median_paycheck" db:"metric_median_paycheck"`
	MetricPaycheckRegularity    *float64         `json:"metric_paycheck_regularity" db:"metric_paycheck_regularity"`
	MetricDaysSinceLastPaycheck *int             `json:"metric_days_since_last_paycheck" db:"metric_days_since_last_paycheck"`
	MetricOverdraftCount90      *int             `json:"metric_overdraft_count90" db:"metric_overdraft_count90"`
	MetricCleanBuffer7          *decimal.Decimal `json:"metric_clean_buffer7" db:"metric_clean_buffer7"`
	MetricBufferVolatility      *float64         `json:"metric_buffer_volatility" db:"metric_buffer_volatility"`
	MetricDepositMultiplicity30 *float64         `json:"metric_deposit_multiplicity30" db:"metric_deposit_multiplicity30"`
	MetricNetCash30             *decimal.Decimal `json:"metric_net_cash30" db:"metric_net_cash30"`
	MetricDebtLoad30            *decimal.Decimal `json:"metric_debt_load30" db:"metric_debt_load30"`
	MetricVolatility90          *float64         `json:"metric_volatility90" db:"metric_volatility90"`

	PointsHistoryDays           *int `json:"points_history_days" db:"points_history_days"`
	PointsMedianPaycheck        *int `json:"points_median_paycheck" db:"points_median_paycheck"`
	PointsPaycheckRegularity    *int `json:"points_paycheck_regularity" db:"points_paycheck_regularity"`
	PointsDaysSinceLastPaycheck *int `json:"points_days_since_last_paycheck" db:"points_days_since_last_paycheck"`
	PointsOverdraftCount90      *int `json:"points_overdraft_count90" db:"points_overdraft_count90"`
	PointsCleanBuffer7          *int `json:"points_clean_buffer7" db:"points_clean_buffer7"`
	PointsBufferVolatility      *int `json:"points_buffer_volatility" db:"points_buffer_volatility"`
	PointsDepositMultiplicity30 *int `json:"points_deposit_multiplicity30" db:"points_deposit_multiplicity30"`
	PointsNetCash30             *int `json:"points_net_cash30" db:"points_net_cash30"`
	PointsDebtLoad30            *int `json:"points_debt_load30" db:"points_debt_load30"`
	PointsVolatility90          *int `json:"points_volatility90" db:"points_volatility90"`

	BaseScore      *int     `json:"base_score" db:"base_score"`
	BlinkScore     *float64 `json:"blink_score" db:"blink_score"`
	Recommendation string   `json:"recommendation" db:"recommendation"`

	FlagOverdraftVolatility bool `json:"flag_od_vol" db:"flag_od_vol"`
	FlagCashCrunch          bool `json:"flag_cash_crunch" db:"flag_cash_crunch"`
	FlagDebtTrap            bool `json:"flag_debt_trap" db:"flag_debt_trap"`

	FailureReason *string   `json:"failure_reason,omitempty" db:"failure_reason"`
	EngineVersion string    `json:"engine_version" db:"engine_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// NewScoreAudit builds the audit row for a completed scoring run.
func NewScoreAudit(id string, res *ScoreResult, reportID string) *ScoreAudit {
	base := res.BaseScore
	blink := res.BlinkScore
	m := res.Metrics
	p := res.Points
	return &ScoreAudit{
		ID:         id,
		UserID:     res.UserID,
		ReportID:   reportID,
		SnapshotAt: res.AsOf,

		MetricHistoryDays:           m.HistoryDays,
		MetricMedianPaycheck:        m.MedianPaycheck,
		MetricPaycheckRegularity:    m.PaycheckRegularity,
		MetricDaysSinceLastPaycheck: m.DaysSinceLastPaycheck,
		MetricOverdraftCount90:      m.OverdraftCount90,
		MetricCleanBuffer7:          m.CleanBuffer7,
		MetricBufferVolatility:      m.BufferVolatility,
		MetricDepositMultiplicity30: m.DepositMultiplicity30,
		MetricNetCash30:             m.NetCash30,
		MetricDebtLoad30:            m.DebtLoad30,
		MetricVolatility90:          m.Volatility90,

		PointsHistoryDays:           &p.HistoryDays,
		PointsMedianPaycheck:        &p.MedianPaycheck,
		PointsPaycheckRegularity:    &p.PaycheckRegularity,
		PointsDaysSinceLastPaycheck: &p.DaysSinceLastPaycheck,
		PointsOverdraftCount90:      &p.OverdraftCount90,
		PointsCleanBuffer7:          &p.CleanBuffer7,
		PointsBufferVolatility:      &p.BufferVolatility,
		PointsDepositMultiplicity30: &p.DepositMultiplicity30,
		PointsNetCash30:             &p.NetCash30,
		PointsDebtLoad30:            &p.DebtLoad30,
		PointsVolatility90:          &p.Volatility90,

		BaseScore:      &base,
		BlinkScore:     &blink,
		Recommendation: string(res.Recommendation),

		FlagOverdraftVolatility: res.Flags.OverdraftVolatility,
		FlagCashCrunch:          res.Flags.CashCrunch,
		FlagDebtTrap:            res.Flags.DebtTrap,

		EngineVersion: res.EngineVersion,
		CreatedAt:     res.ComputedAt,
	}
}

// NewFailureAudit builds a partial audit row for a run that ended before
// scoring. Metrics, points, and scores stay NULL; the recommendation is
// rejected and the reason is preserved.
func NewFailureAudit(id, userID, reportID string, asOf time.Time, reason, engineVersion string) *ScoreAudit {
	r := reason
	return &ScoreAudit{
		ID:             id,
		UserID:         userID,
		ReportID:       reportID,
		SnapshotAt:     asOf,
		Recommendation: string(RecommendationRejected),
		FailureReason:  &r,
		EngineVersion:  engineVersion,
		CreatedAt:      time.Now().UTC(),
	}
}

// FeatureSnapshot is one feature-store row: the metric vector frozen at
// decision time, kept for offline model training.
type FeatureSnapshot struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	DecisionAt time.Time `json:"decision_at" db:"decision_at"`
	Features   []byte    `json:"features" db:"features"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
