package indicator

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pricesFromCloses(closes ...float64) []PriceData {
	prices := make([]PriceData, len(closes))
	for i, c := range closes {
		prices[i] = PriceData{
			Time:  baseTime.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return prices
}

// 테스트용 가격 데이터 생성 (상승, 하락, 반등이 섞인 시리즈)
func generateTestPrices(n int) []PriceData {
	prices := make([]PriceData, n)
	price := 100.0
	for i := 0; i < n; i++ {
		step := math.Sin(float64(i)/5)*2 + 0.1
		open := price
		price += step
		prices[i] = PriceData{
			Time:   baseTime.Add(time.Duration(i) * time.Hour),
			Open:   open,
			High:   math.Max(open, price) + 0.5,
			Low:    math.Min(open, price) - 0.5,
			Close:  price,
			Volume: 1000 + float64(i),
		}
	}
	return prices
}

func TestSMAAndEMAValues(t *testing.T) {
	prices := pricesFromCloses(1, 2, 3, 4, 5)

	sma, err := NewSMA(3).Calculate(prices)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sma[1].Line(LineValue)))
	assert.InDelta(t, 2.0, sma[2].Line(LineValue), 1e-12)
	assert.InDelta(t, 4.0, sma[4].Line(LineValue), 1e-12)

	ema, err := NewEMA(3).Calculate(prices)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ema[1].Line(LineValue)))
	assert.InDelta(t, 2.0, ema[2].Line(LineValue), 1e-12, "SMA 시드")
	assert.InDelta(t, 3.0, ema[3].Line(LineValue), 1e-12)
	assert.InDelta(t, 4.0, ema[4].Line(LineValue), 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	rising := pricesFromCloses(1, 2, 3, 4, 5, 6, 7, 8)
	results, err := NewRSI(5).Calculate(rising)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(results[4].Line(LineValue)))
	assert.Equal(t, 100.0, results[5].Line(LineValue))

	flat := pricesFromCloses(5, 5, 5, 5, 5, 5, 5)
	results, err = NewRSI(5).Calculate(flat)
	require.NoError(t, err)
	assert.Equal(t, 50.0, results[6].Line(LineValue))

	_, err = NewRSI(5).Calculate(pricesFromCloses(1, 2, 3))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "prices", vErr.Field)
}

func TestBollingerAndATRConstantSeries(t *testing.T) {
	prices := pricesFromCloses(10, 10, 10, 10, 10, 10)

	bb, err := NewBollinger(4, 2).Calculate(prices)
	require.NoError(t, err)
	last := bb[len(bb)-1]
	assert.Equal(t, 10.0, last.Line(LineUpper))
	assert.Equal(t, 10.0, last.Line(LineMiddle))
	assert.Equal(t, 10.0, last.Line(LineLower))

	atr, err := NewATR(3).Calculate(prices)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(atr[1].Line(LineValue)))
	assert.InDelta(t, 2.0, atr[5].Line(LineValue), 1e-12)
}

func TestMACDWarmup(t *testing.T) {
	prices := generateTestPrices(60)
	m := NewMACD(12, 26, 9)
	results, err := m.Calculate(prices)
	require.NoError(t, err)

	first := m.WarmupPeriod() - 1
	assert.True(t, math.IsNaN(results[first-1].Line(LineSignal)))
	assert.False(t, math.IsNaN(results[first].Line(LineSignal)))
	assert.False(t, math.IsNaN(results[25].Line(LineMACD)))
	assert.True(t, math.IsNaN(results[24].Line(LineMACD)))

	r := results[40]
	assert.InDelta(t, r.Line(LineMACD)-r.Line(LineSignal), r.Line(LineHistogram), 1e-12)

	_, err = NewMACD(26, 12, 9).Calculate(prices)
	assert.Error(t, err)
}

func TestStochasticAndADXTrend(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	prices := pricesFromCloses(closes...)
	// 종가를 고가에 붙여 %K가 최대가 되게 합니다
	for i := range prices {
		prices[i].High = prices[i].Close
	}

	st := NewStochastic(5, 1, 3)
	results, err := st.Calculate(prices)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, results[39].Line(LineK), 1e-9)
	assert.InDelta(t, 100.0, results[39].Line(LineD), 1e-9)

	adx := NewADX(7)
	dmi, err := adx.Calculate(prices)
	require.NoError(t, err)
	last := dmi[39]
	assert.Greater(t, last.Line(LinePlusDI), last.Line(LineMinusDI))
	assert.Greater(t, last.Line(LineADX), 50.0)
	assert.True(t, math.IsNaN(dmi[adx.WarmupPeriod()-2].Line(LineADX)))
	assert.False(t, math.IsNaN(dmi[adx.WarmupPeriod()-1].Line(LineADX)))
}

// 모든 지표는 인과적이어야 합니다: 앞부분만 계산한 결과와 전체 계산 결과가 같아야 합니다
func TestIndicatorsAreCausal(t *testing.T) {
	prices := generateTestPrices(120)
	specs := []Spec{
		{Type: TypeSMA, Params: map[string]float64{"period": 10}},
		{Type: TypeEMA, Params: map[string]float64{"period": 21}},
		{Type: TypeRSI, Params: map[string]float64{"period": 14}},
		{Type: TypeMACD},
		{Type: TypeBollinger, Params: map[string]float64{"period": 20, "mult": 2}},
		{Type: TypeATR},
		{Type: TypeStochastic},
		{Type: TypeADX},
		{Type: TypeSAR},
	}

	for _, spec := range specs {
		t.Run(spec.Key(), func(t *testing.T) {
			ind, err := New(spec)
			require.NoError(t, err)

			full, err := ind.Calculate(prices)
			require.NoError(t, err)
			prefix, err := ind.Calculate(prices[:80])
			require.NoError(t, err)

			for _, line := range ind.Lines() {
				for i := range prefix {
					a, b := full[i].Line(line), prefix[i].Line(line)
					if math.IsNaN(a) {
						assert.True(t, math.IsNaN(b), "%s[%d]", line, i)
						continue
					}
					assert.Equal(t, a, b, "%s[%d]", line, i)
				}
			}
		})
	}
}

func TestFactory(t *testing.T) {
	_, err := New(Spec{Type: "VWAP"})
	assert.Error(t, err)

	_, err = New(Spec{Type: "ema", Params: map[string]float64{"period": 2.5}})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "period", vErr.Field)

	a := Spec{Type: "macd", Params: map[string]float64{"slow": 26, "fast": 12}}
	b := Spec{Type: "MACD", Params: map[string]float64{"fast": 12, "slow": 26}}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "MACD(fast=12,slow=26)", a.Key())
}

func TestCacheConcurrentGet(t *testing.T) {
	cache := NewCache(generateTestPrices(50), nil)
	spec := Spec{Type: TypeEMA, Params: map[string]float64{"period": 10}}

	var wg sync.WaitGroup
	lines := make([][]float64, 8)
	for i := range lines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			line, err := cache.Line(spec, LineValue)
			assert.NoError(t, err)
			lines[i] = line
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
	for i := 1; i < len(lines); i++ {
		assert.Equal(t, lines[0][20], lines[i][20])
	}
}

func TestSARFollowsTrend(t *testing.T) {
	closes := make([]float64, 0, 40)
	for c := 10.0; c <= 30; c++ {
		closes = append(closes, c)
	}
	for c := 29.0; c >= 10; c-- {
		closes = append(closes, c)
	}
	prices := pricesFromCloses(closes...)

	results, err := NewDefaultSAR().Calculate(prices)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(results[0].Line(LineTrend)))
	assert.Equal(t, 1.0, results[5].Line(LineTrend))
	assert.Equal(t, -1.0, results[len(results)-1].Line(LineTrend))

	for i := 1; i < len(results); i++ {
		sar := results[i].Line(LineSAR)
		if results[i].Line(LineTrend) > 0 {
			assert.LessOrEqual(t, sar, prices[i].Low, "상승 추세 SAR[%d]", i)
		} else {
			assert.GreaterOrEqual(t, sar, prices[i].High, "하락 추세 SAR[%d]", i)
		}
	}
}
