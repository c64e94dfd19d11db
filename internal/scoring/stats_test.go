package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wv(value, weight float64) weightedValue {
	return weightedValue{Value: decimal.NewFromFloat(value), Weight: weight}
}

func TestWeightedMedian(t *testing.T) {
	tests := []struct {
		name    string
		samples []weightedValue
		want    float64
		ok      bool
	}{
		{name: "empty", samples: nil, ok: false},
		{name: "all zero weight", samples: []weightedValue{wv(100, 0), wv(200, 0)}, ok: false},
		{name: "single value", samples: []weightedValue{wv(2000, 1)}, want: 2000, ok: true},
		{name: "odd count equal weights", samples: []weightedValue{wv(300, 1), wv(100, 1), wv(200, 1)}, want: 200, ok: true},
		{name: "even count picks lower middle", samples: []weightedValue{wv(400, 1), wv(100, 1), wv(300, 1), wv(200, 1)}, want: 200, ok: true},
		{name: "heavy weight pulls median", samples: []weightedValue{wv(100, 0.2), wv(900, 1.0)}, want: 900, ok: true},
		{name: "zero weight entries ignored", samples: []weightedValue{wv(5, 0), wv(50, 1), wv(500, 0)}, want: 50, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := weightedMedian(tt.samples)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, got.Equal(decimal.NewFromFloat(tt.want)), "got %s, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedStdDev(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		weights []float64
		want    float64
		ok      bool
	}{
		{name: "length mismatch", values: []float64{1, 2}, weights: []float64{1}, ok: false},
		{name: "single sample", values: []float64{5}, weights: []float64{1}, ok: false},
		{name: "one positive weight", values: []float64{5, 7}, weights: []float64{1, 0}, ok: false},
		{name: "uniform weights match population stddev", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, weights: []float64{1, 1, 1, 1, 1, 1, 1, 1}, want: 2, ok: true},
		{name: "constant values", values: []float64{14, 14, 14}, weights: []float64{1, 0.5, 0.2}, ok: true, want: 0},
		{name: "weighted spread", values: []float64{10, 20}, weights: []float64{1, 3}, want: 4.3301, ok: true},
		{name: "zero weight excluded from spread", values: []float64{10, 5, 5}, weights: []float64{0, 1, 1}, want: 0, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := weightedStdDev(tt.values, tt.weights)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestSampleStdDev(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{name: "empty", values: nil, ok: false},
		{name: "single", values: []float64{3}, ok: false},
		{name: "constant", values: []float64{5, 5, 5}, want: 0, ok: true},
		{name: "known spread", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, want: 2.1381, ok: true},
		{name: "two samples", values: []float64{20, 400}, want: 268.7006, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sampleStdDev(tt.values)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestDecimalMin(t *testing.T) {
	_, ok := decimalMin(nil)
	assert.False(t, ok)

	min, ok := decimalMin([]decimal.Decimal{
		decimal.NewFromInt(40),
		decimal.NewFromInt(-120),
		decimal.NewFromInt(7),
	})
	require.True(t, ok)
	assert.True(t, min.Equal(decimal.NewFromInt(-120)))
}

func TestDistinctCount(t *testing.T) {
	assert.Equal(t, 0, distinctCount(nil))
	assert.Equal(t, 1, distinctCount([]decimal.Decimal{
		decimal.NewFromInt(1200),
		decimal.RequireFromString("1200.00"),
	}))
	assert.Equal(t, 2, distinctCount([]decimal.Decimal{
		decimal.NewFromInt(20),
		decimal.NewFromInt(400),
		decimal.NewFromInt(20),
	}))
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 98.0, round2(98.0), 1e-9)
	assert.InDelta(t, 73.46, round2(73.456), 1e-9)
	assert.InDelta(t, 0.13, round2(0.125), 1e-9)
	assert.InDelta(t, 100.0, round2(clamp(107.2, 0, 100)), 1e-9)
}
