package metrics

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// ProfitFactorCap은 총손실이 0이고 이익이 있을 때의 프로핏 팩터 값입니다
const ProfitFactorCap = 999.0

// Options는 연율화와 바이앤홀드 비교에 필요한 값입니다
type Options struct {
	PeriodsPerYear float64 // 봉 간격 기준 연간 기간 수 (1h = 8760)
	RiskFreeRate   float64 // 연 무위험 수익률 (0.02 = 2%)
	FirstClose     float64 // 구간 첫 봉 종가
	LastClose      float64 // 구간 마지막 봉 종가
}

// OptionsFor는 캔들 시리즈로부터 Options를 구성합니다
func OptionsFor(candles domain.CandleList, interval domain.TimeInterval, riskFree float64) Options {
	opts := Options{PeriodsPerYear: domain.PeriodsPerYear(interval), RiskFreeRate: riskFree}
	if len(candles) > 0 {
		opts.FirstClose = candles[0].Close
		opts.LastClose = candles[len(candles)-1].Close
	}
	return opts
}

// Calculate는 거래 기록과 자산 곡선으로 전체 지표를 계산합니다.
// 0으로 나누는 경우는 정해진 값(0 또는 ProfitFactorCap)을 사용하며 NaN이나 Inf를 반환하지 않습니다.
func Calculate(trades []backtest.Trade, equity []backtest.EquityPoint, initialCapital float64, opts Options) Set {
	s := make(Set, len(allNames))
	for _, n := range allNames {
		s[n] = 0
	}

	finalEquity := initialCapital
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1].Equity
	}

	// 거래 통계
	pnl := func(t backtest.Trade) float64 { return t.PnL }
	loss := func(t backtest.Trade) float64 { return -t.PnL }
	winners := lo.Filter(trades, func(t backtest.Trade, _ int) bool { return t.PnL > 0 })
	losers := lo.Filter(trades, func(t backtest.Trade, _ int) bool { return t.PnL < 0 })
	wins, losses := len(winners), len(losers)
	grossProfit := lo.SumBy(winners, pnl)
	grossLoss := lo.SumBy(losers, loss)
	largestWin := lo.Max(lo.Map(winners, func(t backtest.Trade, _ int) float64 { return t.PnL }))
	largestLoss := lo.Max(lo.Map(losers, func(t backtest.Trade, _ int) float64 { return -t.PnL }))
	netProfit := lo.SumBy(trades, pnl)
	pctSum := lo.SumBy(trades, func(t backtest.Trade) float64 { return t.PnLPct })
	commission := lo.SumBy(trades, func(t backtest.Trade) float64 { return t.Commission })
	bars := lo.SumBy(trades, func(t backtest.Trade) int { return t.Bars })
	longs := lo.CountBy(trades, func(t backtest.Trade) bool { return t.Side == domain.LongPosition })
	shorts := len(trades) - longs

	// 연속 승패
	var curWins, curLosses, maxWins, maxLosses int
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			curWins++
			curLosses = 0
			maxWins = max(maxWins, curWins)
		case t.PnL < 0:
			curLosses++
			curWins = 0
			maxLosses = max(maxLosses, curLosses)
		}
	}

	n := float64(len(trades))
	s[TotalTrades] = n
	s[WinningTrades] = float64(wins)
	s[LosingTrades] = float64(losses)
	s[LongTrades] = float64(longs)
	s[ShortTrades] = float64(shorts)
	s[GrossProfit] = grossProfit
	s[GrossLoss] = grossLoss
	s[NetProfit] = finalEquity - initialCapital
	s[LargestWin] = largestWin
	s[LargestLoss] = largestLoss
	s[MaxConsecutiveWins] = float64(maxWins)
	s[MaxConsecutiveLosses] = float64(maxLosses)
	s[CommissionPaid] = commission
	s[ProfitFactor] = profitFactor(grossProfit, grossLoss)

	if len(trades) > 0 {
		s[WinRate] = float64(wins) / n * 100
		s[AvgTrade] = netProfit / n
		s[AvgTradePct] = pctSum / n
		s[AvgBarsInTrade] = float64(bars) / n
	}
	if wins > 0 {
		s[AvgWin] = grossProfit / float64(wins)
	}
	if losses > 0 {
		s[AvgLoss] = grossLoss / float64(losses)
	}
	if s[AvgLoss] > 0 {
		s[PayoffRatio] = s[AvgWin] / s[AvgLoss]
	}
	if len(trades) > 0 {
		winP := float64(wins) / n
		lossP := float64(losses) / n
		s[Expectancy] = winP*s[AvgWin] - lossP*s[AvgLoss]
	}
	if len(equity) > 0 {
		s[ExposurePct] = math.Min(100, float64(bars)/float64(len(equity))*100)
	}

	// 수익률
	if initialCapital > 0 {
		s[TotalReturnPct] = (finalEquity - initialCapital) / initialCapital * 100
	}
	if len(equity) > 1 && initialCapital > 0 {
		start, end := equity[0].Timestamp, equity[len(equity)-1].Timestamp
		s[CAGRPct] = AnnualizedReturn(initialCapital, finalEquity, start, end) * 100
	}

	// 낙폭
	dd := Drawdowns(equity)
	s[MaxDrawdown] = dd.Max
	s[MaxDrawdownPct] = dd.MaxPct
	s[AvgDrawdownPct] = dd.AvgPct
	s[MaxDrawdownBars] = float64(dd.LongestBars)
	if dd.MaxPct > 0 {
		s[CalmarRatio] = s[TotalReturnPct] / dd.MaxPct
	}
	if dd.Max > 0 {
		s[RecoveryFactor] = s[NetProfit] / dd.Max
	}

	// 위험 조정 수익률
	returns := periodReturns(equity)
	s[SharpeRatio] = sharpe(returns, opts)
	s[SortinoRatio] = sortino(returns, opts)

	// 바이앤홀드
	if opts.FirstClose > 0 && opts.LastClose > 0 {
		ret := (opts.LastClose - opts.FirstClose) / opts.FirstClose
		s[BuyHoldReturnPct] = ret * 100
		s[BuyHoldReturn] = ret * initialCapital
	}

	return sanitize(s)
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return ProfitFactorCap
		}
		return 0
	}
	return math.Min(grossProfit/grossLoss, ProfitFactorCap)
}

// periodReturns는 봉 단위 자산 수익률입니다
func periodReturns(equity []backtest.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		out = append(out, equity[i].Equity/prev-1)
	}
	return out
}

// sharpe는 (평균 - 무위험) / 표본 표준편차 × √연간기간 입니다
func sharpe(returns []float64, opts Options) float64 {
	if len(returns) < 2 || opts.PeriodsPerYear <= 0 {
		return 0
	}
	rf := opts.RiskFreeRate / opts.PeriodsPerYear
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std < 1e-12 {
		return 0
	}
	return (mean - rf) / std * math.Sqrt(opts.PeriodsPerYear)
}

// sortino는 하방 편차만 분모로 사용합니다
func sortino(returns []float64, opts Options) float64 {
	if len(returns) < 2 || opts.PeriodsPerYear <= 0 {
		return 0
	}
	rf := opts.RiskFreeRate / opts.PeriodsPerYear
	mean, downside := 0.0, 0.0
	for _, r := range returns {
		mean += r
		if d := r - rf; d < 0 {
			downside += d * d
		}
	}
	mean /= float64(len(returns))
	dev := math.Sqrt(downside / float64(len(returns)))
	if dev < 1e-12 {
		return 0
	}
	return (mean - rf) / dev * math.Sqrt(opts.PeriodsPerYear)
}

// sanitize는 NaN과 Inf를 0으로 바꿉니다
func sanitize(s Set) Set {
	for k, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s[k] = 0
		}
	}
	return s
}

// AnnualizedReturn은 연율화 수익률(비율)을 계산합니다.
// 기간이 1년 미만이면 단순 수익률을 반환합니다.
func AnnualizedReturn(startEquity, endEquity float64, startTime, endTime time.Time) float64 {
	if startEquity <= 0 {
		return 0
	}
	totalReturn := (endEquity - startEquity) / startEquity

	yearDiff := float64(endTime.Sub(startTime)) / float64(365*24*time.Hour)
	if yearDiff < 1 || endEquity <= 0 {
		return totalReturn
	}
	return math.Pow(1+totalReturn, 1/yearDiff) - 1
}
