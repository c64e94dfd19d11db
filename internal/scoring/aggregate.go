package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/blinkcredit/blink/internal/models"
)

// Lookback windows in calendar days, inclusive of the reference day.
const (
	window7   = 7
	window30  = 30
	window90  = 90
	window180 = 180
)

// windowStartDay returns the first day of the k-day window ending at asOf.
func windowStartDay(asOf time.Time, k int) time.Time {
	return asOf.AddDate(0, 0, -(k - 1))
}

// inWindow reports whether day falls inside the k-day window ending at asOf.
func inWindow(day, asOf time.Time, k int) bool {
	return !day.Before(windowStartDay(asOf, k)) && !day.After(asOf)
}

// computeMetrics derives the eleven-metric vector from tagged
// transactions, the historical balance series, and the report context.
// Nil fields mean the underlying data was insufficient; the scorer keys
// off that distinction, so zero is never used as a stand-in.
func computeMetrics(tagged []models.TaggedTransaction, balances []models.DailyBalance, ctx models.ReportContext) models.MetricVector {
	var m models.MetricVector
	if len(tagged) == 0 {
		return m
	}

	asOf := models.Day(ctx.AsOf)

	earliest := models.Day(tagged[0].Date)
	for i := 1; i < len(tagged); i++ {
		if d := models.Day(tagged[i].Date); d.Before(earliest) {
			earliest = d
		}
	}
	historyDays := models.DaysBetween(earliest, asOf) + 1
	m.HistoryDays = intPtr(historyDays)

	dailyNet := buildDailyNet(tagged, asOf, historyDays)

	m.MedianPaycheck = medianPaycheck(tagged)
	m.PaycheckRegularity = paycheckRegularity(tagged, asOf)
	m.DaysSinceLastPaycheck = daysSinceLastPaycheck(tagged, asOf)
	m.OverdraftCount90 = overdraftCount(tagged, asOf)
	m.CleanBuffer7, m.BufferVolatility = bufferMetrics(balances, ctx.CurrentBalance, asOf)
	m.DepositMultiplicity30 = depositMultiplicity(tagged, asOf)
	m.NetCash30 = netCash(dailyNet, asOf, window30)
	m.DebtLoad30 = debtLoad(tagged, asOf)
	m.Volatility90 = volatility(dailyNet, asOf)

	return m
}

// buildDailyNet pre-initializes every observed history day to zero, then
// accumulates signed net cash per day: inflows add their magnitude,
// outflows subtract theirs. Windowed sums read from this map so that
// quiet days count as zeros rather than missing samples.
func buildDailyNet(tagged []models.TaggedTransaction, asOf time.Time, historyDays int) map[time.Time]decimal.Decimal {
	net := make(map[time.Time]decimal.Decimal, historyDays)
	start := asOf.AddDate(0, 0, -(historyDays - 1))
	for d := start; !d.After(asOf); d = d.AddDate(0, 0, 1) {
		net[d] = decimal.Zero
	}

	for i := range tagged {
		t := &tagged[i]
		day := models.Day(t.Date)
		if _, ok := net[day]; !ok {
			continue
		}
		if t.IsInflow() {
			net[day] = net[day].Add(t.Magnitude())
		} else {
			net[day] = net[day].Sub(t.Amount)
		}
	}
	return net
}

// medianPaycheck is the confidence-weighted median paycheck magnitude
// across the whole observed history.
func medianPaycheck(tagged []models.TaggedTransaction) *decimal.Decimal {
	samples := make([]weightedValue, 0, len(tagged))
	for i := range tagged {
		t := &tagged[i]
		if t.IsPayroll {
			samples = append(samples, weightedValue{Value: t.Magnitude(), Weight: t.PayrollWeight})
		}
	}
	med, ok := weightedMedian(samples)
	if !ok {
		return nil
	}
	return decPtr(med)
}

// paycheckRegularity is the weighted spread of day-gaps between payroll
// deposits over the 180-day window. Each gap inherits the weaker of its
// two endpoint weights, so one shaky match cannot fake a steady rhythm.
func paycheckRegularity(tagged []models.TaggedTransaction, asOf time.Time) *float64 {
	var payrolls []*models.TaggedTransaction
	for i := range tagged {
		t := &tagged[i]
		if t.IsPayroll && t.PayrollWeight > 0 && inWindow(models.Day(t.Date), asOf, window180) {
			payrolls = append(payrolls, t)
		}
	}
	if len(payrolls) < 2 {
		return nil
	}

	sort.SliceStable(payrolls, func(i, j int) bool {
		return payrolls[i].Date.Before(payrolls[j].Date)
	})

	gaps := make([]float64, 0, len(payrolls)-1)
	weights := make([]float64, 0, len(payrolls)-1)
	for k := 1; k < len(payrolls); k++ {
		gaps = append(gaps, float64(models.DaysBetween(payrolls[k-1].Date, payrolls[k].Date)))
		weights = append(weights, math.Min(payrolls[k-1].PayrollWeight, payrolls[k].PayrollWeight))
	}

	sd, ok := weightedStdDev(gaps, weights)
	if !ok {
		return nil
	}
	return floatPtr(sd)
}

// daysSinceLastPaycheck measures recency against the latest reliable
// payroll deposit (weight 0.5 or better).
func daysSinceLastPaycheck(tagged []models.TaggedTransaction, asOf time.Time) *int {
	var latest time.Time
	found := false
	for i := range tagged {
		t := &tagged[i]
		if t.ReliablePayroll() && (!found || t.Date.After(latest)) {
			latest = t.Date
			found = true
		}
	}
	if !found {
		return nil
	}
	return intPtr(models.DaysBetween(latest, asOf))
}

// overdraftCount counts overdraft-fee transactions in the 90-day window.
func overdraftCount(tagged []models.TaggedTransaction, asOf time.Time) *int {
	count := 0
	for i := range tagged {
		t := &tagged[i]
		if t.IsOverdraftFee && inWindow(models.Day(t.Date), asOf, window90) {
			count++
		}
	}
	return intPtr(count)
}

// bufferMetrics forward-fills the last seven end-of-day balances and
// returns their minimum and sample standard deviation. The balance map
// keeps ten days so a slightly stale entry can seed the fill; the extra
// head-room never feeds the statistics directly. Without a current
// balance at the reference day both metrics are nil.
func bufferMetrics(balances []models.DailyBalance, current *decimal.Decimal, asOf time.Time) (*decimal.Decimal, *float64) {
	if current == nil {
		return nil, nil
	}

	byDay := make(map[time.Time]decimal.Decimal, window7+3)
	cutoff := asOf.AddDate(0, 0, -9)
	for _, b := range balances {
		day := models.Day(b.Date)
		if day.Before(cutoff) || day.After(asOf) {
			continue
		}
		byDay[day] = b.Balance
	}
	byDay[asOf] = *current

	// Walk backward from the reference day, reusing the nearest later
	// balance for missing days, then restore chronological order.
	filled := make([]decimal.Decimal, window7)
	var last decimal.Decimal
	for i := 0; i < window7; i++ {
		day := asOf.AddDate(0, 0, -i)
		if v, ok := byDay[day]; ok {
			last = v
		}
		filled[window7-1-i] = last
	}

	min, _ := decimalMin(filled)
	buffer := decPtr(min)

	if distinctCount(filled) < 2 {
		return buffer, nil
	}

	values := make([]float64, len(filled))
	for i, v := range filled {
		values[i], _ = v.Float64()
	}
	sd, ok := sampleStdDev(values)
	if !ok {
		return buffer, nil
	}
	return buffer, floatPtr(sd)
}

// depositMultiplicity compares how many distinct counterparties deposit
// money in the 30-day window against how often payroll lands in it. A
// salaried account stays near one; many unrelated deposit sources with
// little payroll push it up.
func depositMultiplicity(tagged []models.TaggedTransaction, asOf time.Time) *float64 {
	counterparties := make(map[string]struct{})
	payrollEvents := 0
	for i := range tagged {
		t := &tagged[i]
		if !inWindow(models.Day(t.Date), asOf, window30) {
			continue
		}
		if t.IsInflow() {
			counterparties[counterpartyKey(t.MerchantName, t.Description)] = struct{}{}
		}
		if t.IsPayroll {
			payrollEvents++
		}
	}

	events := payrollEvents
	if events < 1 {
		events = 1
	}
	return floatPtr(float64(len(counterparties)) / float64(events))
}

// counterpartyKey identifies a deposit source: the merchant name when
// present, otherwise the first 16 characters of the description,
// otherwise "Unknown". Keys normalize by trim and upper-case.
func counterpartyKey(merchant, description string) string {
	src := merchant
	if src == "" {
		src = description
		if r := []rune(src); len(r) > 16 {
			src = string(r[:16])
		}
	}
	if src == "" {
		src = "Unknown"
	}
	return strings.ToUpper(strings.TrimSpace(src))
}

// netCash sums the daily net-cash map over the k-day window ending at asOf.
func netCash(dailyNet map[time.Time]decimal.Decimal, asOf time.Time, k int) *decimal.Decimal {
	sum := decimal.Zero
	for d := windowStartDay(asOf, k); !d.After(asOf); d = d.AddDate(0, 0, 1) {
		if v, ok := dailyNet[d]; ok {
			sum = sum.Add(v)
		}
	}
	return decPtr(sum)
}

// debtLoad is loan-payment outflow over total inflow for the 30-day
// window. Nil when the window saw no inflows.
func debtLoad(tagged []models.TaggedTransaction, asOf time.Time) *decimal.Decimal {
	loan := decimal.Zero
	inflows := decimal.Zero
	for i := range tagged {
		t := &tagged[i]
		if !inWindow(models.Day(t.Date), asOf, window30) {
			continue
		}
		if t.IsInflow() {
			inflows = inflows.Add(t.Magnitude())
		} else if t.IsLoanPayment {
			loan = loan.Add(t.Amount)
		}
	}
	if inflows.IsZero() {
		return nil
	}
	return decPtr(loan.Div(inflows))
}

// volatility is the coefficient of variation of daily net cash over the
// 90-day window: spread of the signed series over its mean magnitude.
func volatility(dailyNet map[time.Time]decimal.Decimal, asOf time.Time) *float64 {
	var samples []float64
	for d := windowStartDay(asOf, window90); !d.After(asOf); d = d.AddDate(0, 0, 1) {
		if v, ok := dailyNet[d]; ok {
			f, _ := v.Float64()
			samples = append(samples, f)
		}
	}
	if len(samples) < 2 {
		return nil
	}

	sd, ok := sampleStdDev(samples)
	if !ok {
		return nil
	}

	meanAbs := 0.0
	for _, v := range samples {
		meanAbs += math.Abs(v)
	}
	meanAbs /= float64(len(samples))

	switch {
	case sd == 0 && meanAbs == 0:
		return floatPtr(0)
	case meanAbs < 0.01 && sd > 0:
		return nil
	}
	return floatPtr(sd / meanAbs)
}
