package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/blinkcredit/blink/internal/models"
)

func TestHistoryPoints(t *testing.T) {
	assert.Equal(t, 0, historyPoints(nil))

	tests := []struct{ days, want int }{
		{90, 0}, {179, 0}, {180, 5}, {364, 5}, {365, 10}, {730, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, historyPoints(&tt.days), "days %d", tt.days)
	}
}

func TestOverdraftPoints(t *testing.T) {
	assert.Equal(t, 0, overdraftPoints(nil))

	tests := []struct{ count, want int }{
		{0, 20}, {1, 5}, {2, 5}, {3, -15}, {7, -15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, overdraftPoints(&tt.count), "count %d", tt.count)
	}
}

func TestRegularityPoints(t *testing.T) {
	assert.Equal(t, 0, regularityPoints(nil))

	tests := []struct {
		sd   float64
		want int
	}{
		{0, 25}, {2, 25}, {2.1, 10}, {5, 10}, {5.1, -10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, regularityPoints(&tt.sd), "sd %v", tt.sd)
	}
}

func TestRecencyPoints(t *testing.T) {
	assert.Equal(t, 0, recencyPoints(nil))

	tests := []struct{ days, want int }{
		{0, 10}, {7, 10}, {8, 0}, {14, 0}, {15, -10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, recencyPoints(&tt.days), "days %d", tt.days)
	}
}

func TestDebtLoadPoints(t *testing.T) {
	assert.Equal(t, 0, debtLoadPoints(nil))

	tests := []struct {
		ratio string
		want  int
	}{
		{"0", 20}, {"0.15", 20}, {"0.16", 5}, {"0.30", 5}, {"0.31", -15},
	}
	for _, tt := range tests {
		r := decimal.RequireFromString(tt.ratio)
		assert.Equal(t, tt.want, debtLoadPoints(&r), "ratio %s", tt.ratio)
	}
}

func TestNetCashPoints(t *testing.T) {
	assert.Equal(t, 0, netCashPoints(nil))

	zero := decimal.Zero
	assert.Equal(t, 10, netCashPoints(&zero))

	pos := decimal.NewFromInt(3400)
	assert.Equal(t, 10, netCashPoints(&pos))

	neg := decimal.RequireFromString("-0.01")
	assert.Equal(t, -10, netCashPoints(&neg))
}

func TestVolatilityPoints(t *testing.T) {
	assert.Equal(t, 0, volatilityPoints(nil))

	tests := []struct {
		v    float64
		want int
	}{
		{0, 10}, {0.40, 10}, {0.41, 0}, {0.70, 0}, {0.71, -10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, volatilityPoints(&tt.v), "v %v", tt.v)
	}
}

func TestMedianPaycheckPoints(t *testing.T) {
	assert.Equal(t, 0, medianPaycheckPoints(nil))

	tests := []struct {
		amount string
		want   int
	}{
		{"1500", 20}, {"2000", 20}, {"1000", 10}, {"1499.99", 10}, {"600", 0}, {"999.99", 0}, {"599.99", -10},
	}
	for _, tt := range tests {
		p := decimal.RequireFromString(tt.amount)
		assert.Equal(t, tt.want, medianPaycheckPoints(&p), "amount %s", tt.amount)
	}
}

func TestLiquidityComposite(t *testing.T) {
	tests := []struct {
		name   string
		buffer *decimal.Decimal
		vol    *float64
		want   int
	}{
		{name: "nil buffer", buffer: nil, vol: floatPtr(10), want: -20},
		{name: "strong and steady", buffer: decPtr(decimal.NewFromInt(300)), vol: floatPtr(50), want: 40},
		{name: "strong but choppy", buffer: decPtr(decimal.NewFromInt(300)), vol: floatPtr(50.1), want: 25},
		{name: "strong with unknown stability", buffer: decPtr(decimal.NewFromInt(1200)), vol: nil, want: 25},
		{name: "middling buffer ignores stability", buffer: decPtr(decimal.NewFromInt(100)), vol: floatPtr(5), want: 10},
		{name: "middling upper edge", buffer: decPtr(decimal.RequireFromString("299.99")), vol: nil, want: 10},
		{name: "thin buffer", buffer: decPtr(decimal.RequireFromString("99.99")), vol: nil, want: -20},
		{name: "negative buffer", buffer: decPtr(decimal.NewFromInt(-50)), vol: floatPtr(2), want: -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, liquidityPoints(tt.buffer, tt.vol))
		})
	}
}

func TestMultiplicityPenalty(t *testing.T) {
	assert.Equal(t, 0, multiplicityPenalty(nil))
	assert.Equal(t, 0, multiplicityPenalty(floatPtr(4)))
	assert.Equal(t, -15, multiplicityPenalty(floatPtr(4.01)))
}

func TestLowPayrollConfidenceGate(t *testing.T) {
	metrics := models.MetricVector{
		HistoryDays:           intPtr(200),
		MedianPaycheck:        decPtr(decimal.NewFromInt(2000)),
		PaycheckRegularity:    floatPtr(1),
		DaysSinceLastPaycheck: intPtr(3),
		OverdraftCount90:      intPtr(0),
		CleanBuffer7:          decPtr(decimal.NewFromInt(500)),
		BufferVolatility:      floatPtr(20),
		DepositMultiplicity30: floatPtr(1),
		NetCash30:             decPtr(decimal.NewFromInt(1000)),
		DebtLoad30:            decPtr(decimal.Zero),
		Volatility90:          floatPtr(0.2),
	}

	t.Run("weak average zeroes payroll points", func(t *testing.T) {
		tagged := []models.TaggedTransaction{
			taggedPayroll("p1", "2025-04-28", 500, 0.2),
			taggedPayroll("p2", "2025-04-14", 750, 0.2),
			taggedPayroll("p3", "2025-03-31", 900, 0.2),
		}

		p := scorePoints(&metrics, tagged)

		assert.Zero(t, p.MedianPaycheck)
		assert.Zero(t, p.PaycheckRegularity)
		assert.Zero(t, p.DaysSinceLastPaycheck)
		// Non-payroll contributions are untouched.
		assert.Equal(t, 5, p.HistoryDays)
		assert.Equal(t, 20, p.OverdraftCount90)
		assert.Equal(t, 40, p.CleanBuffer7)
	})

	t.Run("average at the threshold passes", func(t *testing.T) {
		tagged := []models.TaggedTransaction{
			taggedPayroll("p1", "2025-04-28", 2000, 0.5),
			taggedPayroll("p2", "2025-04-14", 500, 0.2),
			taggedPayroll("p3", "2025-04-07", 500, 0.2),
			taggedPayroll("p4", "2025-03-31", 500, 0.2),
			taggedPayroll("p5", "2025-03-24", 500, 0.2),
			taggedPayroll("p6", "2025-03-17", 500, 0.2),
		}

		p := scorePoints(&metrics, tagged)

		assert.Equal(t, 20, p.MedianPaycheck)
		assert.Equal(t, 25, p.PaycheckRegularity)
		assert.Equal(t, 10, p.DaysSinceLastPaycheck)
	})

	t.Run("no payroll means no gate", func(t *testing.T) {
		p := scorePoints(&metrics, nil)
		assert.Equal(t, 20, p.MedianPaycheck)
	})
}

func TestScorePointsTotalMatchesFields(t *testing.T) {
	metrics := models.MetricVector{
		HistoryDays:           intPtr(365),
		MedianPaycheck:        decPtr(decimal.NewFromInt(1200)),
		PaycheckRegularity:    floatPtr(3),
		DaysSinceLastPaycheck: intPtr(20),
		OverdraftCount90:      intPtr(1),
		CleanBuffer7:          decPtr(decimal.NewFromInt(150)),
		DepositMultiplicity30: floatPtr(5),
		NetCash30:             decPtr(decimal.NewFromInt(-300)),
		DebtLoad30:            decPtr(decimal.RequireFromString("0.2")),
		Volatility90:          floatPtr(0.9),
	}

	p := scorePoints(&metrics, nil)

	want := p.HistoryDays + p.MedianPaycheck + p.PaycheckRegularity +
		p.DaysSinceLastPaycheck + p.OverdraftCount90 + p.CleanBuffer7 +
		p.BufferVolatility + p.DepositMultiplicity30 + p.NetCash30 +
		p.DebtLoad30 + p.Volatility90
	assert.Equal(t, want, p.Total())

	// 10 + 10 + 10 - 10 + 5 + 10 - 15 - 10 + 5 - 10
	assert.Equal(t, 5, p.Total())
	assert.Zero(t, p.BufferVolatility)
}
