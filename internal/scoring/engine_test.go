package scoring

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinkcredit/blink/internal/models"
)

// cleanPrimeInput models a salaried user: twelve biweekly ADP paychecks,
// groceries twice a month, a flat $1200 balance, no debt, no overdraft
// fees. Reference day 2025-05-01.
func cleanPrimeInput() *models.ScoreInput {
	var txns []models.Transaction

	payday := day("2025-04-28")
	for i := 0; i < 12; i++ {
		txns = append(txns, models.Transaction{
			ID:           fmt.Sprintf("pay-%02d", i),
			Date:         payday.AddDate(0, 0, -14*i),
			Amount:       decimal.NewFromInt(-2000),
			MerchantName: "ADP",
			Description:  "ADP PAYROLL DEP",
			CategoryID:   "21006000",
		})
	}

	groceries := []string{
		"2024-11-12", "2024-11-26", "2024-12-12", "2024-12-26",
		"2025-01-12", "2025-01-26", "2025-02-12", "2025-02-26",
		"2025-03-12", "2025-03-26", "2025-04-12", "2025-04-26",
	}
	for i, d := range groceries {
		tx := outflow(fmt.Sprintf("groc-%02d", i), d, 300)
		tx.MerchantName = "Corner Grocery"
		txns = append(txns, tx)
	}

	var balances []models.DailyBalance
	for d := day("2025-04-22"); !d.After(day("2025-04-30")); d = d.AddDate(0, 0, 1) {
		balances = append(balances, models.DailyBalance{Date: d, Balance: decimal.NewFromInt(1200)})
	}

	return &models.ScoreInput{
		UserID:       "user-prime",
		Context:      ctxAt("2025-05-01", currentBalance(1200)),
		Transactions: txns,
		Balances:     balances,
	}
}

func TestScoreCleanPrimeUser(t *testing.T) {
	engine := NewEngine(nil)

	res, err := engine.Score(cleanPrimeInput())
	require.NoError(t, err)

	m := res.Metrics
	require.NotNil(t, m.HistoryDays)
	assert.Equal(t, 171, *m.HistoryDays)
	require.NotNil(t, m.MedianPaycheck)
	assert.True(t, m.MedianPaycheck.Equal(decimal.NewFromInt(2000)))
	require.NotNil(t, m.PaycheckRegularity)
	assert.InDelta(t, 0, *m.PaycheckRegularity, 1e-9)
	require.NotNil(t, m.DaysSinceLastPaycheck)
	assert.Equal(t, 3, *m.DaysSinceLastPaycheck)
	require.NotNil(t, m.OverdraftCount90)
	assert.Equal(t, 0, *m.OverdraftCount90)
	require.NotNil(t, m.CleanBuffer7)
	assert.True(t, m.CleanBuffer7.Equal(decimal.NewFromInt(1200)))
	assert.Nil(t, m.BufferVolatility, "flat balances have no measurable spread")
	require.NotNil(t, m.DepositMultiplicity30)
	assert.InDelta(t, 0.5, *m.DepositMultiplicity30, 1e-9)
	require.NotNil(t, m.NetCash30)
	assert.True(t, m.NetCash30.Equal(decimal.NewFromInt(3400)), "got %s", m.NetCash30)
	require.NotNil(t, m.DebtLoad30)
	assert.True(t, m.DebtLoad30.IsZero())
	require.NotNil(t, m.Volatility90)
	assert.InDelta(t, 3.1308, *m.Volatility90, 0.001)

	assert.Equal(t, 120, res.BaseScore)
	assert.InDelta(t, 98.0, res.BlinkScore, 1e-9)
	assert.Equal(t, models.RecommendationApproved, res.Recommendation)
	assert.False(t, res.Flags.OverdraftVolatility)
	assert.False(t, res.Flags.CashCrunch)
	assert.False(t, res.Flags.DebtTrap)
	assert.Equal(t, EngineVersion, res.EngineVersion)
	assert.Zero(t, res.SkippedRows)
	assert.Len(t, res.Tagged, 24)
}

func TestScoreInsufficientHistory(t *testing.T) {
	engine := NewEngine(nil)

	input := &models.ScoreInput{
		UserID:  "user-short",
		Context: ctxAt("2025-05-01", nil),
		Transactions: []models.Transaction{
			inflow("a", "2025-03-03", 900),
			outflow("b", "2025-04-01", 40),
			outflow("c", "2025-04-22", 25),
		},
	}

	res, err := engine.Score(input)
	require.Error(t, err)
	assert.Nil(t, res)

	var insufficient *InsufficientHistoryError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 60, insufficient.HistoryDays)
}

func TestScoreEmptyLedger(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.Score(&models.ScoreInput{
		UserID:  "user-empty",
		Context: ctxAt("2025-05-01", nil),
	})

	var insufficient *InsufficientHistoryError
	require.True(t, errors.As(err, &insufficient))
	assert.Zero(t, insufficient.HistoryDays)
}

func TestScoreOverdraftVolatileUser(t *testing.T) {
	engine := NewEngine(nil)

	var txns []models.Transaction
	// A year of light spending anchors the history length.
	for i := 0; i < 12; i++ {
		tx := outflow(fmt.Sprintf("spend-%02d", i), "2024-05-02", 100)
		tx.Date = day("2024-05-02").AddDate(0, 0, 30*i)
		tx.MerchantName = "Corner Grocery"
		txns = append(txns, tx)
	}
	feeDates := []string{"2025-03-05", "2025-03-20", "2025-04-10", "2025-04-25"}
	for i, d := range feeDates {
		fee := outflow(fmt.Sprintf("fee-%d", i), d, 35)
		fee.CategoryID = "22001000"
		txns = append(txns, fee)
	}

	balances := []models.DailyBalance{
		{Date: day("2025-04-25"), Balance: decimal.NewFromInt(20)},
		{Date: day("2025-04-26"), Balance: decimal.NewFromInt(400)},
		{Date: day("2025-04-27"), Balance: decimal.NewFromInt(20)},
		{Date: day("2025-04-28"), Balance: decimal.NewFromInt(400)},
		{Date: day("2025-04-29"), Balance: decimal.NewFromInt(20)},
		{Date: day("2025-04-30"), Balance: decimal.NewFromInt(400)},
	}

	res, err := engine.Score(&models.ScoreInput{
		UserID:       "user-odvol",
		Context:      ctxAt("2025-05-01", currentBalance(20)),
		Transactions: txns,
		Balances:     balances,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Metrics.HistoryDays)
	assert.Equal(t, 365, *res.Metrics.HistoryDays)
	require.NotNil(t, res.Metrics.OverdraftCount90)
	assert.Equal(t, 4, *res.Metrics.OverdraftCount90)
	require.NotNil(t, res.Metrics.BufferVolatility)
	assert.InDelta(t, 203.1185, *res.Metrics.BufferVolatility, 0.01)

	assert.Equal(t, -15, res.Points.OverdraftCount90)
	assert.True(t, res.Flags.OverdraftVolatility)
}

func TestScoreDebtTrapUser(t *testing.T) {
	engine := NewEngine(nil)

	loan := outflow("loan", "2025-04-15", 400)
	loan.Description = "ACME FINANCE LOAN PMT"
	deposit := inflow("dep", "2025-04-10", 1000)
	deposit.MerchantName = "Freelance Client"

	txns := []models.Transaction{
		loan,
		deposit,
		outflow("g1", "2025-01-15", 120),
		outflow("g2", "2025-02-15", 120),
		outflow("g3", "2025-03-15", 120),
	}

	var balances []models.DailyBalance
	for d := day("2025-04-24"); !d.After(day("2025-04-30")); d = d.AddDate(0, 0, 1) {
		balances = append(balances, models.DailyBalance{Date: d, Balance: decimal.NewFromInt(30)})
	}

	res, err := engine.Score(&models.ScoreInput{
		UserID:       "user-debt",
		Context:      ctxAt("2025-05-01", currentBalance(30)),
		Transactions: txns,
		Balances:     balances,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Metrics.DebtLoad30)
	assert.True(t, res.Metrics.DebtLoad30.Equal(decimal.RequireFromString("0.4")))
	require.NotNil(t, res.Metrics.CleanBuffer7)
	assert.True(t, res.Metrics.CleanBuffer7.Equal(decimal.NewFromInt(30)))

	assert.Equal(t, -15, res.Points.DebtLoad30)
	assert.Equal(t, -20, res.Points.CleanBuffer7)
	assert.True(t, res.Flags.DebtTrap)
	assert.False(t, res.Flags.OverdraftVolatility)
	assert.False(t, res.Flags.CashCrunch)
}

func TestScoreLowPayrollConfidence(t *testing.T) {
	engine := NewEngine(nil)

	deposits := []struct {
		id, date string
		amount   float64
	}{
		{"k1", "2025-03-10", 500},
		{"k2", "2025-04-05", 750},
		{"k3", "2025-04-25", 900},
	}
	var txns []models.Transaction
	for _, d := range deposits {
		tx := inflow(d.id, d.date, d.amount)
		tx.Description = "PAYROLL"
		txns = append(txns, tx)
	}
	txns = append(txns, outflow("old", "2025-01-20", 50))

	res, err := engine.Score(&models.ScoreInput{
		UserID:       "user-gig",
		Context:      ctxAt("2025-05-01", nil),
		Transactions: txns,
	})
	require.NoError(t, err)

	// Keyword-only matches carry weight 0.2 each, so the average falls
	// below the confidence gate and payroll-derived points are zeroed.
	for _, tx := range res.Tagged[:3] {
		assert.Equal(t, models.PayrollRuleKeyword, tx.PayrollMask)
		assert.InDelta(t, 0.2, tx.PayrollWeight, 1e-9)
	}

	assert.Zero(t, res.Points.MedianPaycheck)
	assert.Zero(t, res.Points.PaycheckRegularity)
	assert.Zero(t, res.Points.DaysSinceLastPaycheck)

	// The metrics themselves stay populated.
	require.NotNil(t, res.Metrics.MedianPaycheck)
	assert.True(t, res.Metrics.MedianPaycheck.Equal(decimal.NewFromInt(750)))
	require.NotNil(t, res.Metrics.PaycheckRegularity)
	assert.InDelta(t, 3.0, *res.Metrics.PaycheckRegularity, 1e-9)
	assert.Nil(t, res.Metrics.DaysSinceLastPaycheck, "no reliable payroll to anchor recency")
}

func TestScoreOverrideFlipsRecency(t *testing.T) {
	engine := NewEngine(nil)

	input := cleanPrimeInput()
	input.Overrides = map[string]models.TagOverride{
		"pay-00": {IsPayroll: boolPtr(false)},
	}

	res, err := engine.Score(input)
	require.NoError(t, err)

	require.NotNil(t, res.Metrics.DaysSinceLastPaycheck)
	assert.Equal(t, 17, *res.Metrics.DaysSinceLastPaycheck)
	assert.Equal(t, -10, res.Points.DaysSinceLastPaycheck)

	assert.Equal(t, 100, res.BaseScore)
	assert.InDelta(t, 86.0, res.BlinkScore, 1e-9)
	assert.Equal(t, models.RecommendationRejected, res.Recommendation)
}

func TestScoreDeterministic(t *testing.T) {
	engine := NewEngine(nil)
	input := cleanPrimeInput()

	first, err := engine.Score(input)
	require.NoError(t, err)
	second, err := engine.Score(input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScoreRangeAndBaseIdentity(t *testing.T) {
	engine := NewEngine(nil)

	inputs := []*models.ScoreInput{cleanPrimeInput()}
	overridden := cleanPrimeInput()
	overridden.Overrides = map[string]models.TagOverride{"pay-00": {IsPayroll: boolPtr(false)}}
	inputs = append(inputs, overridden)

	for i, input := range inputs {
		res, err := engine.Score(input)
		require.NoError(t, err, "input %d", i)

		assert.GreaterOrEqual(t, res.BlinkScore, 0.0)
		assert.LessOrEqual(t, res.BlinkScore, 100.0)
		assert.Equal(t, res.Points.Total(), res.BaseScore)
	}
}

func TestScoreIgnoresTransactionsOutsideWindows(t *testing.T) {
	engine := NewEngine(nil)

	base, err := engine.Score(cleanPrimeInput())
	require.NoError(t, err)

	// An overdraft fee just outside the 90-day window must not move any
	// windowed metric.
	modified := cleanPrimeInput()
	fee := outflow("fee-old", "2025-01-30", 35)
	fee.CategoryID = "22001000"
	modified.Transactions = append(modified.Transactions, fee)

	res, err := engine.Score(modified)
	require.NoError(t, err)

	assert.Equal(t, base.Metrics, res.Metrics)
	assert.Equal(t, base.BlinkScore, res.BlinkScore)
	assert.Equal(t, 0, *res.Metrics.OverdraftCount90)
}

func TestScoreSkipsRowsWithoutDates(t *testing.T) {
	engine := NewEngine(nil)

	input := cleanPrimeInput()
	input.Transactions = append(input.Transactions, models.Transaction{
		ID:     "broken",
		Amount: decimal.NewFromInt(500),
	})

	res, err := engine.Score(input)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedRows)
	assert.InDelta(t, 98.0, res.BlinkScore, 1e-9)
	assert.Len(t, res.Tagged, 24)
}
