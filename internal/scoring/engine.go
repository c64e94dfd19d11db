package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/blinkcredit/blink/internal/common"
	"github.com/blinkcredit/blink/internal/models"
)

// EngineVersion stamps every result and audit row so historical scores
// can be traced to the ruleset that produced them.
const EngineVersion = "1.2.0"

// Flag thresholds. Each early-warning flag pairs a stress metric with a
// liquidity or recency metric.
var (
	cashCrunchNet  = decimal.NewFromInt(-200)
	debtTrapLoad   = decimal.NewFromFloat(0.35)
	debtTrapBuffer = decimal.NewFromInt(50)
)

// Engine turns a user's transaction ledger into a Blink score. It is a
// pure function of its input: no mutable state, no I/O beyond warn logs
// for skipped rows, safe for concurrent use.
type Engine struct {
	logger *common.Logger
}

// NewEngine returns a scoring engine. A nil logger silences row warnings.
func NewEngine(logger *common.Logger) *Engine {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Engine{logger: logger}
}

// Score runs the pipeline: sanitize, tag, aggregate, bucket into points,
// normalize, recommend, flag. It returns InsufficientHistoryError when
// the usable ledger spans fewer than MinHistoryDays calendar days; any
// arithmetic failure surfaces as a ComputationError rather than a panic.
func (e *Engine) Score(input *models.ScoreInput) (result *models.ScoreResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ComputationError{Stage: "score", Err: fmt.Errorf("%v", r)}
		}
	}()

	asOf := models.Day(input.Context.AsOf)
	txns, skipped := e.sanitize(input.Transactions)

	historyDays := 0
	if len(txns) > 0 {
		earliest := models.Day(txns[0].Date)
		for i := 1; i < len(txns); i++ {
			if d := models.Day(txns[i].Date); d.Before(earliest) {
				earliest = d
			}
		}
		historyDays = models.DaysBetween(earliest, asOf) + 1
	}
	if historyDays < MinHistoryDays {
		return nil, &InsufficientHistoryError{HistoryDays: historyDays}
	}

	tagged := tagTransactions(txns, asOf, input.Overrides)
	metrics := computeMetrics(tagged, input.Balances, models.ReportContext{
		AsOf:           asOf,
		CurrentBalance: input.Context.CurrentBalance,
	})
	points := scorePoints(&metrics, tagged)

	base := points.Total()
	blink := normalizeScore(base)

	return &models.ScoreResult{
		UserID:         input.UserID,
		AsOf:           asOf,
		Metrics:        metrics,
		Points:         points,
		BaseScore:      base,
		BlinkScore:     blink,
		Recommendation: recommend(blink, historyDays),
		Flags:          emitFlags(&metrics),
		Tagged:         tagged,
		SkippedRows:    skipped,
		EngineVersion:  EngineVersion,
	}, nil
}

// sanitize drops rows the engine cannot place on the calendar. Skips are
// logged and counted, never fatal.
func (e *Engine) sanitize(txns []models.Transaction) ([]models.Transaction, int) {
	valid := make([]models.Transaction, 0, len(txns))
	skipped := 0
	for i := range txns {
		if txns[i].Date.IsZero() {
			skipped++
			e.logger.Warn().
				Str("transaction_id", txns[i].ID).
				Msg("Skipping transaction with missing date")
			continue
		}
		valid = append(valid, txns[i])
	}
	return valid, skipped
}

// normalizeScore maps the raw point sum onto the published 0-100 scale.
// The point distribution centers near 40 with a spread near 25; the
// published score centers at 50 with a spread of 15.
func normalizeScore(base int) float64 {
	raw := 50 + 15*(float64(base)-40)/25
	return round2(clamp(raw, 0, 100))
}

// recommend applies the history-tiered approval thresholds: the shorter
// the observed history, the higher the bar.
func recommend(blink float64, historyDays int) models.Recommendation {
	var threshold float64
	switch {
	case historyDays < MinHistoryDays:
		return models.RecommendationRejected
	case historyDays < 180:
		threshold = 88
	case historyDays < 365:
		threshold = 80
	default:
		threshold = 73
	}
	if blink >= threshold {
		return models.RecommendationApproved
	}
	return models.RecommendationRejected
}

// emitFlags raises the three early-warning flags. A nil metric on either
// side of a rule leaves that flag down.
func emitFlags(m *models.MetricVector) models.RiskFlags {
	var f models.RiskFlags

	if m.OverdraftCount90 != nil && m.BufferVolatility != nil {
		f.OverdraftVolatility = *m.OverdraftCount90 >= 3 && *m.BufferVolatility > 100
	}
	if m.NetCash30 != nil && m.DaysSinceLastPaycheck != nil {
		f.CashCrunch = m.NetCash30.LessThan(cashCrunchNet) && *m.DaysSinceLastPaycheck > 10
	}
	if m.DebtLoad30 != nil && m.CleanBuffer7 != nil {
		f.DebtTrap = m.DebtLoad30.GreaterThan(debtTrapLoad) && m.CleanBuffer7.LessThan(debtTrapBuffer)
	}
	return f
}
