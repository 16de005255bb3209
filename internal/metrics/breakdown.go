package metrics

import (
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
)

// TimePerformance는 시간 구간별 성과입니다
type TimePerformance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	NetProfit     float64 `json:"net_profit"`
	AvgReturnPct  float64 `json:"avg_return_pct"`
}

func (p *TimePerformance) add(t backtest.Trade) {
	p.TotalTrades++
	switch {
	case t.PnL > 0:
		p.WinningTrades++
	case t.PnL < 0:
		p.LosingTrades++
	}
	p.NetProfit += t.PnL
	// 이동 평균
	p.AvgReturnPct = (p.AvgReturnPct*float64(p.TotalTrades-1) + t.PnLPct) / float64(p.TotalTrades)
	p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades) * 100
}

// Breakdown은 진입 시각 기준 세션, 요일, 월별 성과입니다
type Breakdown struct {
	BySession map[string]TimePerformance `json:"by_session"`
	ByWeekday map[string]TimePerformance `json:"by_weekday"`
	ByMonth   map[string]TimePerformance `json:"by_month"` // 키 형식: "2024-01"
}

var weekdays = []string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// sessionOf는 UTC 시각으로 시간대를 결정합니다 (0-5: 새벽, 6-11: 오전, 12-17: 오후, 18-23: 저녁)
func sessionOf(t time.Time) string {
	switch hour := t.UTC().Hour(); {
	case hour < 6:
		return "새벽 (0-5시)"
	case hour < 12:
		return "오전 (6-11시)"
	case hour < 18:
		return "오후 (12-17시)"
	default:
		return "저녁 (18-23시)"
	}
}

// BreakdownOf는 거래를 시간 구간별로 집계합니다
func BreakdownOf(trades []backtest.Trade) Breakdown {
	b := Breakdown{
		BySession: make(map[string]TimePerformance),
		ByWeekday: make(map[string]TimePerformance),
		ByMonth:   make(map[string]TimePerformance),
	}
	update := func(m map[string]TimePerformance, key string, t backtest.Trade) {
		p := m[key]
		p.add(t)
		m[key] = p
	}
	for _, t := range trades {
		at := t.EntryTime.UTC()
		update(b.BySession, sessionOf(at), t)
		update(b.ByWeekday, weekdays[at.Weekday()], t)
		update(b.ByMonth, at.Format("2006-01"), t)
	}
	return b
}

// PerformanceBetween은 [start, end) 구간에 진입한 거래의 성과를 계산합니다
func PerformanceBetween(trades []backtest.Trade, start, end time.Time) TimePerformance {
	var p TimePerformance
	for _, t := range trades {
		if !t.EntryTime.Before(start) && t.EntryTime.Before(end) {
			p.add(t)
		}
	}
	return p
}

// PeriodPerformance는 [Start, End) 구간에 진입한 거래의 성과입니다
type PeriodPerformance struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	TimePerformance
}

// Periods는 [start, end)를 n개의 같은 길이 구간으로 나눠 구간별 성과를 계산합니다.
// 마지막 구간은 end까지 포함합니다.
func Periods(trades []backtest.Trade, start, end time.Time, n int) []PeriodPerformance {
	if n <= 0 || !end.After(start) {
		return nil
	}
	step := end.Sub(start) / time.Duration(n)
	out := make([]PeriodPerformance, n)
	for i := range out {
		from := start.Add(time.Duration(i) * step)
		to := from.Add(step)
		if i == n-1 {
			to = end
		}
		out[i] = PeriodPerformance{Start: from, End: to, TimePerformance: PerformanceBetween(trades, from, to)}
	}
	return out
}
