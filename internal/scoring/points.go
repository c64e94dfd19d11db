package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/blinkcredit/blink/internal/models"
)

// Bucket cut-offs for decimal-valued metrics. Kept as decimals so dollar
// comparisons never round through floats.
var (
	debtLoadLow  = decimal.NewFromFloat(0.15)
	debtLoadMid  = decimal.NewFromFloat(0.30)
	medianHigh   = decimal.NewFromInt(1500)
	medianMid    = decimal.NewFromInt(1000)
	medianLow    = decimal.NewFromInt(600)
	bufferStrong = decimal.NewFromInt(300)
	bufferThin   = decimal.NewFromInt(100)
)

// lowConfidenceAvgWeight gates payroll-derived points when the average
// payroll confidence falls below it.
const lowConfidenceAvgWeight = 0.25

// scorePoints maps each metric to its bucketed point contribution,
// applies the liquidity and deposit-multiplicity composites, and zeroes
// the payroll-derived contributions when overall payroll confidence is
// too weak to trust. A nil metric contributes zero points except in the
// liquidity composite, where an unknown buffer is treated as no buffer.
func scorePoints(m *models.MetricVector, tagged []models.TaggedTransaction) models.PointBreakdown {
	p := models.PointBreakdown{
		HistoryDays:           historyPoints(m.HistoryDays),
		MedianPaycheck:        medianPaycheckPoints(m.MedianPaycheck),
		PaycheckRegularity:    regularityPoints(m.PaycheckRegularity),
		DaysSinceLastPaycheck: recencyPoints(m.DaysSinceLastPaycheck),
		OverdraftCount90:      overdraftPoints(m.OverdraftCount90),
		CleanBuffer7:          liquidityPoints(m.CleanBuffer7, m.BufferVolatility),
		DepositMultiplicity30: multiplicityPenalty(m.DepositMultiplicity30),
		NetCash30:             netCashPoints(m.NetCash30),
		DebtLoad30:            debtLoadPoints(m.DebtLoad30),
		Volatility90:          volatilityPoints(m.Volatility90),
	}

	if lowPayrollConfidence(tagged) {
		p.MedianPaycheck = 0
		p.PaycheckRegularity = 0
		p.DaysSinceLastPaycheck = 0
	}

	return p
}

func historyPoints(h *int) int {
	if h == nil {
		return 0
	}
	switch {
	case *h >= 365:
		return 10
	case *h >= 180:
		return 5
	default:
		return 0
	}
}

func overdraftPoints(count *int) int {
	if count == nil {
		return 0
	}
	switch {
	case *count == 0:
		return 20
	case *count <= 2:
		return 5
	default:
		return -15
	}
}

func regularityPoints(sd *float64) int {
	if sd == nil {
		return 0
	}
	switch {
	case *sd <= 2:
		return 25
	case *sd <= 5:
		return 10
	default:
		return -10
	}
}

func recencyPoints(days *int) int {
	if days == nil {
		return 0
	}
	switch {
	case *days <= 7:
		return 10
	case *days <= 14:
		return 0
	default:
		return -10
	}
}

func debtLoadPoints(ratio *decimal.Decimal) int {
	if ratio == nil {
		return 0
	}
	switch {
	case ratio.LessThanOrEqual(debtLoadLow):
		return 20
	case ratio.LessThanOrEqual(debtLoadMid):
		return 5
	default:
		return -15
	}
}

func netCashPoints(net *decimal.Decimal) int {
	if net == nil {
		return 0
	}
	if net.IsNegative() {
		return -10
	}
	return 10
}

func volatilityPoints(v *float64) int {
	if v == nil {
		return 0
	}
	switch {
	case *v <= 0.40:
		return 10
	case *v <= 0.70:
		return 0
	default:
		return -10
	}
}

func medianPaycheckPoints(p *decimal.Decimal) int {
	if p == nil {
		return 0
	}
	switch {
	case p.GreaterThanOrEqual(medianHigh):
		return 20
	case p.GreaterThanOrEqual(medianMid):
		return 10
	case p.GreaterThanOrEqual(medianLow):
		return 0
	default:
		return -10
	}
}

// liquidityPoints is the composite of buffer level and buffer stability.
// A solid buffer that also holds still earns the most; a thin or unknown
// buffer costs heavily. An unknown stability reading on a solid buffer
// takes the middle band.
func liquidityPoints(buffer *decimal.Decimal, vol *float64) int {
	switch {
	case buffer == nil:
		return -20
	case buffer.GreaterThanOrEqual(bufferStrong):
		if vol != nil && *vol <= 50 {
			return 40
		}
		return 25
	case buffer.GreaterThanOrEqual(bufferThin):
		return 10
	default:
		return -20
	}
}

// multiplicityPenalty dings accounts whose deposits come from many more
// sources than paychecks.
func multiplicityPenalty(dm *float64) int {
	if dm != nil && *dm > 4 {
		return -15
	}
	return 0
}

// lowPayrollConfidence reports whether payroll matches exist but their
// average confidence sits below the gate threshold.
func lowPayrollConfidence(tagged []models.TaggedTransaction) bool {
	count := 0
	total := 0.0
	for i := range tagged {
		t := &tagged[i]
		if t.IsPayroll {
			count++
			total += t.PayrollWeight
		}
	}
	return count > 0 && total/float64(count) < lowConfidenceAvgWeight
}
