package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/optimize"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteTrades(t *testing.T) {
	entry := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	trades := []backtest.Trade{{
		EntryTime: entry, ExitTime: entry.Add(3 * time.Hour),
		EntryIndex: 1, ExitIndex: 4, Side: domain.LongPosition,
		EntryPrice: 100, ExitPrice: 102.5, Quantity: 2, Notional: 200,
		PnL: 4.76, PnLPct: 2.38, Commission: 0.24, ExitReason: backtest.ExitTakeProfit, Bars: 3,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, trades))
	records := readAll(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, TradeHeader, records[0])
	assert.Equal(t, []string{
		"2024-01-01T09:00:00Z", "2024-01-01T12:00:00Z", "1", "4", "LONG",
		"100", "102.5", "2", "200", "4.76", "2.38", "0.24", "take_profit", "3",
	}, records[1])
}

func TestWriteEquityAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEquity(&buf, []backtest.EquityPoint{{Index: 0, Equity: 1000}, {Index: 1, Equity: 990, Drawdown: 10, DrawdownPct: 1}}))
	records := readAll(t, &buf)
	assert.Equal(t, EquityHeader, records[0])
	assert.Equal(t, []string{"1", "", "990", "10", "1"}, records[2])

	buf.Reset()
	require.NoError(t, WriteMetrics(&buf, metrics.Set{metrics.WinRate: 50, metrics.NetProfit: -12.5}))
	records = readAll(t, &buf)
	assert.Equal(t, [][]string{MetricsHeader, {"net_profit", "-12.5"}, {"win_rate", "50"}}, records)
}

func TestWriteBreakdownAndPeriods(t *testing.T) {
	monday := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	trades := []backtest.Trade{
		{EntryTime: monday, PnL: 10, PnLPct: 1},
		{EntryTime: monday.AddDate(0, 1, 0), PnL: -4, PnLPct: -0.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBreakdown(&buf, metrics.BreakdownOf(trades)))
	records := readAll(t, &buf)
	assert.Equal(t, BreakdownHeader, records[0])
	groups := lo.Map(records[1:], func(r []string, _ int) string { return r[0] })
	assert.Equal(t, []string{"session", "weekday", "weekday", "month", "month"}, groups)
	assert.Equal(t, []string{"month", "2024-01", "1", "1", "0", "100", "10", "1"}, records[4])
	assert.Equal(t, []string{"month", "2024-02", "1", "0", "1", "0", "-4", "-0.5"}, records[5])

	buf.Reset()
	periods := metrics.Periods(trades, monday, monday.AddDate(0, 2, 0), 2)
	require.NoError(t, WritePeriods(&buf, periods))
	records = readAll(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, PeriodHeader, records[0])
	assert.Equal(t, "2024-01-01T03:00:00Z", records[1][0])
	assert.Equal(t, "1", records[1][2])
	assert.Equal(t, "1", records[2][2])
}

func TestWriteOptimization(t *testing.T) {
	results := []optimize.Result{
		{Trial: 1, Rank: 1, Status: optimize.StatusOK, Score: 1.5, Params: strategy.Params{"fast": 9.0}, Metrics: metrics.Set{metrics.TotalTrades: 12}},
		{Trial: 0, Status: optimize.StatusFailed, Params: strategy.Params{"fast": 50.0}, Error: "실패"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteOptimization(&buf, results, []string{"fast"}, []metrics.Name{metrics.TotalTrades}))
	records := readAll(t, &buf)
	assert.Equal(t, []string{"trial", "rank", "status", "score", "fast", "total_trades", "error"}, records[0])
	assert.Equal(t, []string{"1", "1", "ok", "1.5", "9", "12", ""}, records[1])
	assert.Equal(t, []string{"0", "0", "failed", "0", "50", "0", "실패"}, records[2])
}
