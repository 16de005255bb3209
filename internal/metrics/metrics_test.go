package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func curve(values ...float64) []backtest.EquityPoint {
	out := make([]backtest.EquityPoint, len(values))
	for i, v := range values {
		out[i] = backtest.EquityPoint{Index: i, Timestamp: t0.Add(time.Duration(i) * time.Hour), Equity: v}
	}
	return out
}

func trade(pnl float64, side domain.PositionSide, bars int) backtest.Trade {
	return backtest.Trade{
		EntryTime:  t0,
		ExitTime:   t0.Add(time.Duration(bars) * time.Hour),
		Side:       side,
		PnL:        pnl,
		PnLPct:     pnl / 10,
		Commission: 1,
		Bars:       bars,
	}
}

func TestCalculateKnownValues(t *testing.T) {
	trades := []backtest.Trade{
		trade(100, domain.LongPosition, 1),
		trade(-50, domain.ShortPosition, 1),
		trade(30, domain.LongPosition, 1),
	}
	equity := curve(1000, 1100, 1050, 1080)

	s := Calculate(trades, equity, 1000, Options{PeriodsPerYear: 8760, FirstClose: 100, LastClose: 120})

	assert.Equal(t, 3.0, s.Get(TotalTrades))
	assert.Equal(t, 2.0, s.Get(WinningTrades))
	assert.Equal(t, 1.0, s.Get(LosingTrades))
	assert.Equal(t, 2.0, s.Get(LongTrades))
	assert.Equal(t, 1.0, s.Get(ShortTrades))
	assert.InDelta(t, 80.0, s.Get(NetProfit), 1e-9)
	assert.InDelta(t, 8.0, s.Get(TotalReturnPct), 1e-9)
	assert.InDelta(t, 130.0, s.Get(GrossProfit), 1e-9)
	assert.InDelta(t, 50.0, s.Get(GrossLoss), 1e-9)
	assert.InDelta(t, 2.6, s.Get(ProfitFactor), 1e-9)
	assert.InDelta(t, 200.0/3, s.Get(WinRate), 1e-9)
	assert.InDelta(t, 65.0, s.Get(AvgWin), 1e-9)
	assert.InDelta(t, 50.0, s.Get(AvgLoss), 1e-9)
	assert.InDelta(t, 1.3, s.Get(PayoffRatio), 1e-9)
	assert.InDelta(t, 100.0, s.Get(LargestWin), 1e-9)
	assert.InDelta(t, 50.0, s.Get(LargestLoss), 1e-9)
	assert.InDelta(t, 80.0/3, s.Get(Expectancy), 1e-9)
	assert.InDelta(t, 80.0/3, s.Get(AvgTrade), 1e-9)
	assert.InDelta(t, 3.0, s.Get(CommissionPaid), 1e-9)
	assert.Equal(t, 1.0, s.Get(MaxConsecutiveWins))
	assert.Equal(t, 1.0, s.Get(MaxConsecutiveLosses))

	assert.InDelta(t, 50.0, s.Get(MaxDrawdown), 1e-9)
	assert.InDelta(t, 50.0/1100*100, s.Get(MaxDrawdownPct), 1e-9)
	assert.InDelta(t, 1.6, s.Get(RecoveryFactor), 1e-9)
	assert.InDelta(t, 8/(50.0/1100*100), s.Get(CalmarRatio), 1e-9)

	assert.InDelta(t, 200.0, s.Get(BuyHoldReturn), 1e-9)
	assert.InDelta(t, 20.0, s.Get(BuyHoldReturnPct), 1e-9)
}

func TestCalculateSentinels(t *testing.T) {
	t.Run("거래 없음", func(t *testing.T) {
		s := Calculate(nil, curve(1000, 1000, 1000), 1000, Options{PeriodsPerYear: 8760})
		for _, n := range Names() {
			assert.Zero(t, s.Get(n), string(n))
		}
	})

	t.Run("손실 없는 거래", func(t *testing.T) {
		trades := []backtest.Trade{trade(10, domain.LongPosition, 2), trade(5, domain.LongPosition, 2)}
		s := Calculate(trades, curve(1000, 1010, 1015), 1000, Options{PeriodsPerYear: 8760})
		assert.Equal(t, ProfitFactorCap, s.Get(ProfitFactor))
		assert.Zero(t, s.Get(PayoffRatio))
		assert.Zero(t, s.Get(CalmarRatio))
		assert.Zero(t, s.Get(RecoveryFactor))
	})

	t.Run("수익률 분산 0", func(t *testing.T) {
		values := make([]float64, 50)
		for i := range values {
			values[i] = 1000 * math.Pow(1.01, float64(i))
		}
		s := Calculate(nil, curve(values...), 1000, Options{PeriodsPerYear: 8760})
		assert.Zero(t, s.Get(SharpeRatio))
		assert.Zero(t, s.Get(SortinoRatio))
	})

	t.Run("NaN과 Inf 제거", func(t *testing.T) {
		s := sanitize(Set{SharpeRatio: math.NaN(), CalmarRatio: math.Inf(1), NetProfit: 3})
		assert.Zero(t, s[SharpeRatio])
		assert.Zero(t, s[CalmarRatio])
		assert.Equal(t, 3.0, s[NetProfit])
	})

	t.Run("자본 0", func(t *testing.T) {
		s := Calculate(nil, nil, 0, Options{})
		for _, v := range s {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	})
}

func TestSharpeAndSortino(t *testing.T) {
	// 수익률 +10%, -10%, +10%
	equity := curve(100, 110, 99, 108.9)
	opts := Options{PeriodsPerYear: 1}

	returns := periodReturns(equity)
	require.Len(t, returns, 3)

	mean := 0.1 / 3
	std := math.Sqrt((2*math.Pow(0.1-mean, 2) + math.Pow(-0.1-mean, 2)) / 2)
	assert.InDelta(t, mean/std, sharpe(returns, opts), 1e-9)

	downside := math.Sqrt(0.01 / 3)
	assert.InDelta(t, mean/downside, sortino(returns, opts), 1e-9)

	annual := Options{PeriodsPerYear: 365}
	assert.InDelta(t, mean/std*math.Sqrt(365), sharpe(returns, annual), 1e-9)
}

func TestDrawdowns(t *testing.T) {
	st := Drawdowns(curve(1000, 1100, 1050, 1080, 1200, 1150))
	assert.InDelta(t, 50.0, st.Max, 1e-9)
	assert.InDelta(t, 50.0/1100*100, st.MaxPct, 1e-9)
	assert.Equal(t, 3, st.LongestBars)
	assert.Equal(t, 3*time.Hour, st.LongestDuration)

	want := (50.0/1100 + 20.0/1100 + 50.0/1200) * 100 / 3
	assert.InDelta(t, want, st.AvgPct, 1e-9)

	assert.Equal(t, DrawdownStats{}, Drawdowns(nil))
}

func TestAnnualizedReturn(t *testing.T) {
	start := t0
	end := t0.Add(2 * 365 * 24 * time.Hour)
	assert.InDelta(t, 0.1, AnnualizedReturn(1000, 1210, start, end), 1e-9)

	// 1년 미만은 단순 수익률
	assert.InDelta(t, 0.05, AnnualizedReturn(1000, 1050, start, start.Add(24*time.Hour)), 1e-9)
	assert.Zero(t, AnnualizedReturn(0, 1050, start, end))
}

func TestNames(t *testing.T) {
	assert.True(t, LowerIsBetter(MaxDrawdownPct))
	assert.True(t, LowerIsBetter(CommissionPaid))
	assert.False(t, LowerIsBetter(SharpeRatio))

	n, err := ParseName("sharpe_ratio")
	require.NoError(t, err)
	assert.Equal(t, SharpeRatio, n)

	_, err = ParseName("alpha")
	assert.Error(t, err)

	s := Calculate(nil, nil, 1000, Options{})
	assert.Len(t, s.SortedNames(), len(Names()))
}

func TestBreakdown(t *testing.T) {
	monday := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC) // 월요일 새벽
	trades := []backtest.Trade{
		{EntryTime: monday, PnL: 10, PnLPct: 1},
		{EntryTime: monday.Add(10 * time.Hour), PnL: -5, PnLPct: -0.5},
		{EntryTime: monday.AddDate(0, 1, 0), PnL: 20, PnLPct: 2},
	}

	b := BreakdownOf(trades)
	assert.Equal(t, 2, b.BySession["새벽 (0-5시)"].TotalTrades)
	assert.Equal(t, 1, b.BySession["오후 (12-17시)"].LosingTrades)
	assert.Equal(t, 2, b.ByWeekday["월요일"].TotalTrades)

	jan := b.ByMonth["2024-01"]
	assert.Equal(t, 2, jan.TotalTrades)
	assert.InDelta(t, 5.0, jan.NetProfit, 1e-9)
	assert.InDelta(t, 50.0, jan.WinRate, 1e-9)
	assert.InDelta(t, 0.25, jan.AvgReturnPct, 1e-9)

	p := PerformanceBetween(trades, monday, monday.Add(24*time.Hour))
	assert.Equal(t, 2, p.TotalTrades)
}

func TestPeriods(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * 24 * time.Hour)
	trades := []backtest.Trade{
		{EntryTime: start, PnL: 10, PnLPct: 1},
		{EntryTime: start.Add(30 * time.Hour), PnL: -4, PnLPct: -0.4},
		{EntryTime: start.Add(36 * time.Hour), PnL: 6, PnLPct: 0.6},
		{EntryTime: end.Add(-time.Minute), PnL: 1, PnLPct: 0.1},
		{EntryTime: end, PnL: 100, PnLPct: 10},
	}

	periods := Periods(trades, start, end, 4)
	require.Len(t, periods, 4)
	assert.Equal(t, start, periods[0].Start)
	assert.Equal(t, end, periods[3].End)
	assert.Equal(t, periods[0].End, periods[1].Start)

	assert.Equal(t, []int{1, 2, 0, 1}, []int{
		periods[0].TotalTrades, periods[1].TotalTrades, periods[2].TotalTrades, periods[3].TotalTrades,
	})
	assert.InDelta(t, 2.0, periods[1].NetProfit, 1e-9)
	assert.InDelta(t, 50.0, periods[1].WinRate, 1e-9)
	assert.Zero(t, periods[2].WinRate)

	assert.Nil(t, Periods(trades, start, end, 0))
	assert.Nil(t, Periods(trades, end, start, 4))
}
