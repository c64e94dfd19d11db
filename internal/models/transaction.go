package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is one ingested bank-report snapshot. A report carries the
// user's full transaction history at generation time, so scoring only
// ever reads the newest one.
type Report struct {
	ID             string           `json:"id" db:"id"`
	UserID         string           `json:"user_id" db:"user_id"`
	GeneratedAt    time.Time        `json:"generated_at" db:"generated_at"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty" db:"current_balance"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// Transaction is a single bank transaction from an ingested report.
// Amounts follow the report convention: inflows (credits) are negative,
// outflows (debits) are positive.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	Date         time.Time       `json:"date" db:"posted_at"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	MerchantName string          `json:"merchant_name,omitempty" db:"merchant_name"`
	Description  string          `json:"description,omitempty" db:"description"`
	Category     []string        `json:"category,omitempty"`
	CategoryID   string          `json:"category_id,omitempty" db:"category_id"`
	Pending      bool            `json:"pending,omitempty" db:"pending"`
}

// IsInflow returns true if the transaction credits the account.
func (t *Transaction) IsInflow() bool {
	return t.Amount.IsNegative()
}

// IsOutflow returns true if the transaction debits the account.
func (t *Transaction) IsOutflow() bool {
	return t.Amount.IsPositive()
}

// Magnitude returns the unsigned transaction amount.
func (t *Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// DailyBalance is an end-of-day account balance. At most one entry per
// calendar day per account.
type DailyBalance struct {
	Date    time.Time       `json:"date" db:"balance_date"`
	Balance decimal.Decimal `json:"balance" db:"balance"`
}

// ReportContext anchors a scoring run to a reference day and, when the
// report carried one, the account balance on that day.
type ReportContext struct {
	AsOf           time.Time        `json:"as_of"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
}

// TagOverride is a caller-supplied correction for a single transaction.
// Nil fields mean "no override". Overdraft-fee tagging cannot be overridden.
type TagOverride struct {
	IsPayroll     *bool `json:"is_payroll,omitempty"`
	IsLoanPayment *bool `json:"is_loan_payment,omitempty"`
}

// ScoreInput is everything the scoring engine consumes for one user.
type ScoreInput struct {
	UserID       string                 `json:"user_id"`
	ReportID     string                 `json:"report_id,omitempty"`
	Context      ReportContext          `json:"context"`
	Transactions []Transaction          `json:"transactions"`
	Balances     []DailyBalance         `json:"balances,omitempty"`
	Overrides    map[string]TagOverride `json:"overrides,omitempty"`
}

// Day truncates t to midnight UTC. All windowing arithmetic operates on
// these normalized calendar days.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (positive when
// b is later). Both arguments are normalized first.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
