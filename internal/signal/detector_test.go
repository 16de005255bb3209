package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

func generateCandles(n int) domain.CandleList {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make(domain.CandleList, n)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		price = 100 + 10*math.Sin(float64(i)/6)
		candles[i] = domain.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     open,
			High:     math.Max(open, price) + 0.5,
			Low:      math.Min(open, price) - 0.5,
			Close:    price,
			Volume:   100,
		}
	}
	return candles
}

func crossConfig() strategy.Config {
	fast := strategy.Ind("fast", indicator.LineValue)
	slow := strategy.Ind("slow", indicator.LineValue)
	return strategy.Config{
		Name: "cross",
		Indicators: []strategy.IndicatorSpec{
			{ID: "fast", Spec: indicator.Spec{Type: indicator.TypeEMA, Params: map[string]float64{"period": 3}}},
			{ID: "slow", Spec: indicator.Spec{Type: indicator.TypeEMA, Params: map[string]float64{"period": 8}}},
		},
		LongEntry:  strategy.Compare{Left: fast, Op: strategy.CrossesAbove, Right: slow},
		ShortEntry: strategy.Compare{Left: fast, Op: strategy.CrossesBelow, Right: slow},
		LongExit:   strategy.Compare{Left: strategy.Price(strategy.PriceClose), Op: strategy.LT, Right: slow},
		Direction:  strategy.DirectionBoth,
	}
}

func TestDetectorProducesBothSides(t *testing.T) {
	d, err := NewDetector(crossConfig(), generateCandles(120))
	require.NoError(t, err)

	signals := d.Detect()
	require.True(t, signals.Aligned(120))

	var longs, shorts int
	for _, s := range signals.Entry {
		switch s {
		case domain.Long:
			longs++
		case domain.Short:
			shorts++
		}
	}
	assert.Greater(t, longs, 0)
	assert.Greater(t, shorts, 0)
	// 첫 유효 값 이전에는 시그널이 없습니다
	for i := 0; i < 8; i++ {
		assert.Equal(t, domain.NoSignal, signals.Entry[i])
	}
}

func TestDirectionFilterAndCancel(t *testing.T) {
	candles := generateCandles(60)

	cfg := crossConfig()
	cfg.Direction = strategy.DirectionLong
	d, err := NewDetector(cfg, candles)
	require.NoError(t, err)
	for _, s := range d.Detect().Entry {
		assert.NotEqual(t, domain.Short, s)
	}

	// 양쪽 진입 조건이 항상 참이면 상쇄되어 시그널이 없습니다
	always := strategy.Compare{Left: strategy.Price(strategy.PriceClose), Op: strategy.GT, Right: strategy.Const(0)}
	cfg = crossConfig()
	cfg.LongEntry, cfg.ShortEntry = always, always
	d, err = NewDetector(cfg, candles)
	require.NoError(t, err)
	for _, s := range d.Detect().Entry {
		assert.Equal(t, domain.NoSignal, s)
	}
}

func TestSignalsDoNotLookAhead(t *testing.T) {
	candles := generateCandles(150)
	full, err := NewDetector(crossConfig(), candles)
	require.NoError(t, err)
	prefix, err := NewDetector(crossConfig(), candles[:90])
	require.NoError(t, err)

	a := full.Detect().Slice(0, 90)
	b := prefix.Detect()
	assert.Equal(t, a.Entry, b.Entry)
	assert.Equal(t, a.ExitLong, b.ExitLong)
	assert.Equal(t, a.ExitShort, b.ExitShort)
}

func TestDetectRange(t *testing.T) {
	candles := generateCandles(100)
	d, err := NewDetector(crossConfig(), candles)
	require.NoError(t, err)

	all := d.Detect()
	part, err := d.DetectRange(40, 70)
	require.NoError(t, err)
	assert.Equal(t, all.Entry[40:70], part.Entry)

	_, err = d.DetectRange(70, 40)
	assert.Error(t, err)
}

func TestDetectorRejectsInvalidConfig(t *testing.T) {
	cfg := crossConfig()
	cfg.LongEntry = strategy.Compare{Left: strategy.Ind("nope", "value"), Op: strategy.GT, Right: strategy.Const(0)}
	_, err := NewDetector(cfg, generateCandles(30))
	assert.ErrorIs(t, err, strategy.ErrInvalidConfig)
}
