package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/blinkcredit/blink/internal/models"
)

// cadencePeriods are the deposit rhythms tested, in order: weekly,
// biweekly, semi-monthly.
var cadencePeriods = [3]int{7, 14, 15}

var two = decimal.NewFromInt(2)

// detectCadence marks recurring deposits. Inflows from the last 90 days
// are grouped into $2-wide amount bins; a bin of at least three deposits
// whose consecutive day-gaps repeatedly hit one of the target periods
// (within a day either way) earns the cadence bit for every deposit in
// the bin. The first period with two or more matching gaps wins.
func detectCadence(tagged []models.TaggedTransaction, asOf time.Time) {
	windowStart := windowStartDay(asOf, window90)

	bins := make(map[string][]int)
	for i := range tagged {
		t := &tagged[i]
		if !t.IsInflow() {
			continue
		}
		day := models.Day(t.Date)
		if day.Before(windowStart) || day.After(asOf) {
			continue
		}
		key := cadenceBin(t.Amount)
		bins[key] = append(bins[key], i)
	}

	for _, idxs := range bins {
		if len(idxs) < 3 {
			continue
		}

		sort.SliceStable(idxs, func(a, b int) bool {
			return tagged[idxs[a]].Date.Before(tagged[idxs[b]].Date)
		})

		gaps := make([]int, 0, len(idxs)-1)
		for k := 1; k < len(idxs); k++ {
			gaps = append(gaps, models.DaysBetween(tagged[idxs[k-1]].Date, tagged[idxs[k]].Date))
		}

		for _, period := range cadencePeriods {
			matches := 0
			for _, g := range gaps {
				if g >= period-1 && g <= period+1 {
					matches++
				}
			}
			if matches >= 2 {
				for _, i := range idxs {
					tagged[i].PayrollMask |= models.PayrollRuleCadence
				}
				break
			}
		}
	}
}

// cadenceBin buckets an amount by its magnitude rounded to the nearest
// even dollar: key = round(|amount| / 2) * 2.
func cadenceBin(amount decimal.Decimal) string {
	return amount.Abs().DivRound(two, 0).Mul(two).String()
}
