// Package report는 백테스트 결과를 고정된 헤더의 CSV로 내보냅니다.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/optimize"
)

// 헤더는 외부 도구가 이름으로 읽으므로 순서와 이름을 바꾸지 않습니다
var (
	TradeHeader = []string{
		"entry_time", "exit_time", "entry_index", "exit_index", "side",
		"entry_price", "exit_price", "quantity", "notional",
		"pnl", "pnl_pct", "commission", "exit_reason", "bars",
	}
	EquityHeader    = []string{"index", "timestamp", "equity", "drawdown", "drawdown_pct"}
	MetricsHeader   = []string{"metric", "value"}
	BreakdownHeader = []string{
		"group", "key", "total_trades", "winning_trades", "losing_trades",
		"win_rate", "net_profit", "avg_return_pct",
	}
	PeriodHeader = []string{
		"start", "end", "total_trades", "winning_trades", "losing_trades",
		"win_rate", "net_profit", "avg_return_pct",
	}
)

// WriteTrades는 거래 기록을 CSV로 씁니다
func WriteTrades(w io.Writer, trades []backtest.Trade) error {
	rows := lo.Map(trades, func(t backtest.Trade, _ int) []string {
		return []string{
			formatTime(t.EntryTime), formatTime(t.ExitTime),
			strconv.Itoa(t.EntryIndex), strconv.Itoa(t.ExitIndex), string(t.Side),
			formatFloat(t.EntryPrice), formatFloat(t.ExitPrice), formatFloat(t.Quantity), formatFloat(t.Notional),
			formatFloat(t.PnL), formatFloat(t.PnLPct), formatFloat(t.Commission),
			string(t.ExitReason), strconv.Itoa(t.Bars),
		}
	})
	return write(w, TradeHeader, rows)
}

// WriteEquity는 자산 곡선을 CSV로 씁니다
func WriteEquity(w io.Writer, equity []backtest.EquityPoint) error {
	rows := lo.Map(equity, func(p backtest.EquityPoint, _ int) []string {
		return []string{
			strconv.Itoa(p.Index), formatTime(p.Timestamp),
			formatFloat(p.Equity), formatFloat(p.Drawdown), formatFloat(p.DrawdownPct),
		}
	})
	return write(w, EquityHeader, rows)
}

// WriteMetrics는 지표를 이름순으로 씁니다
func WriteMetrics(w io.Writer, set metrics.Set) error {
	rows := lo.Map(set.SortedNames(), func(name metrics.Name, _ int) []string {
		return []string{string(name), formatFloat(set[name])}
	})
	return write(w, MetricsHeader, rows)
}

// WriteBreakdown은 세션, 요일, 월 순서로 그룹별 성과를 키 이름순으로 씁니다
func WriteBreakdown(w io.Writer, b metrics.Breakdown) error {
	groups := []struct {
		name string
		perf map[string]metrics.TimePerformance
	}{
		{"session", b.BySession},
		{"weekday", b.ByWeekday},
		{"month", b.ByMonth},
	}

	var rows [][]string
	for _, g := range groups {
		keys := lo.Keys(g.perf)
		sort.Strings(keys)
		for _, key := range keys {
			rows = append(rows, append([]string{g.name, key}, performanceRow(g.perf[key])...))
		}
	}
	return write(w, BreakdownHeader, rows)
}

// WritePeriods는 구간별 성과를 시간순으로 씁니다
func WritePeriods(w io.Writer, periods []metrics.PeriodPerformance) error {
	rows := lo.Map(periods, func(p metrics.PeriodPerformance, _ int) []string {
		return append([]string{formatTime(p.Start), formatTime(p.End)}, performanceRow(p.TimePerformance)...)
	})
	return write(w, PeriodHeader, rows)
}

func performanceRow(p metrics.TimePerformance) []string {
	return []string{
		strconv.Itoa(p.TotalTrades), strconv.Itoa(p.WinningTrades), strconv.Itoa(p.LosingTrades),
		formatFloat(p.WinRate), formatFloat(p.NetProfit), formatFloat(p.AvgReturnPct),
	}
}

// WriteOptimization은 최적화 결과를 순위 순서대로 씁니다.
// 파라미터와 지표 열은 names와 metricNames 순서를 따릅니다.
func WriteOptimization(w io.Writer, results []optimize.Result, names []string, metricNames []metrics.Name) error {
	header := append([]string{"trial", "rank", "status", "score"}, names...)
	header = append(header, lo.Map(metricNames, func(n metrics.Name, _ int) string { return string(n) })...)
	header = append(header, "error")

	rows := lo.Map(results, func(r optimize.Result, _ int) []string {
		row := []string{strconv.Itoa(r.Trial), strconv.Itoa(r.Rank), string(r.Status), formatFloat(r.Score)}
		for _, name := range names {
			row = append(row, fmt.Sprint(r.Params[name]))
		}
		for _, name := range metricNames {
			row = append(row, formatFloat(r.Metrics.Get(name)))
		}
		return append(row, r.Error)
	})
	return write(w, header, rows)
}

func write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("CSV 헤더 쓰기 실패: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("CSV 쓰기 실패: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
