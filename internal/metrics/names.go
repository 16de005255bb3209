// Package metrics는 거래 기록과 자산 곡선으로 성과 지표를 계산합니다.
package metrics

import (
	"fmt"
	"sort"
)

// Name은 지표의 고정된 snake_case 이름입니다
type Name string

const (
	NetProfit            Name = "net_profit"
	TotalReturnPct       Name = "total_return_pct"
	GrossProfit          Name = "gross_profit"
	GrossLoss            Name = "gross_loss"
	ProfitFactor         Name = "profit_factor"
	TotalTrades          Name = "total_trades"
	WinningTrades        Name = "winning_trades"
	LosingTrades         Name = "losing_trades"
	WinRate              Name = "win_rate"
	AvgTrade             Name = "avg_trade"
	AvgTradePct          Name = "avg_trade_pct"
	AvgWin               Name = "avg_win"
	AvgLoss              Name = "avg_loss"
	PayoffRatio          Name = "payoff_ratio"
	LargestWin           Name = "largest_win"
	LargestLoss          Name = "largest_loss"
	MaxConsecutiveWins   Name = "max_consecutive_wins"
	MaxConsecutiveLosses Name = "max_consecutive_losses"
	AvgBarsInTrade       Name = "avg_bars_in_trade"
	CommissionPaid       Name = "commission_paid"
	MaxDrawdown          Name = "max_drawdown"
	MaxDrawdownPct       Name = "max_drawdown_pct"
	AvgDrawdownPct       Name = "avg_drawdown_pct"
	MaxDrawdownBars      Name = "max_drawdown_bars"
	SharpeRatio          Name = "sharpe_ratio"
	SortinoRatio         Name = "sortino_ratio"
	CalmarRatio          Name = "calmar_ratio"
	CAGRPct              Name = "cagr_pct"
	RecoveryFactor       Name = "recovery_factor"
	Expectancy           Name = "expectancy"
	ExposurePct          Name = "exposure_pct"
	BuyHoldReturn        Name = "buy_hold_return"
	BuyHoldReturnPct     Name = "buy_hold_return_pct"
	LongTrades           Name = "long_trades"
	ShortTrades          Name = "short_trades"
)

var allNames = []Name{
	NetProfit, TotalReturnPct, GrossProfit, GrossLoss, ProfitFactor,
	TotalTrades, WinningTrades, LosingTrades, WinRate,
	AvgTrade, AvgTradePct, AvgWin, AvgLoss, PayoffRatio, LargestWin, LargestLoss,
	MaxConsecutiveWins, MaxConsecutiveLosses, AvgBarsInTrade, CommissionPaid,
	MaxDrawdown, MaxDrawdownPct, AvgDrawdownPct, MaxDrawdownBars,
	SharpeRatio, SortinoRatio, CalmarRatio, CAGRPct, RecoveryFactor, Expectancy, ExposurePct,
	BuyHoldReturn, BuyHoldReturnPct, LongTrades, ShortTrades,
}

var known = func() map[Name]bool {
	m := make(map[Name]bool, len(allNames))
	for _, n := range allNames {
		m[n] = true
	}
	return m
}()

// lowerIsBetter는 값이 작을수록 좋은 위험 지표입니다
var lowerIsBetter = map[Name]bool{
	MaxDrawdown:          true,
	MaxDrawdownPct:       true,
	AvgDrawdownPct:       true,
	MaxDrawdownBars:      true,
	LargestLoss:          true,
	AvgLoss:              true,
	GrossLoss:            true,
	CommissionPaid:       true,
	MaxConsecutiveLosses: true,
}

// LowerIsBetter는 name이 작을수록 좋은 지표인지 반환합니다
func LowerIsBetter(name Name) bool {
	return lowerIsBetter[name]
}

// Names는 모든 지표 이름을 정의 순서대로 반환합니다
func Names() []Name {
	out := make([]Name, len(allNames))
	copy(out, allNames)
	return out
}

// ParseName은 문자열을 지표 이름으로 변환합니다
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !known[n] {
		return "", fmt.Errorf("알 수 없는 지표: %q", s)
	}
	return n, nil
}

// Set은 지표 이름별 값입니다. 계산 후에는 변경하지 않습니다.
type Set map[Name]float64

// Get은 지표 값을 반환합니다 (없으면 0)
func (s Set) Get(name Name) float64 {
	return s[name]
}

// SortedNames는 Set에 들어 있는 이름을 사전순으로 반환합니다
func (s Set) SortedNames() []Name {
	out := make([]Name, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
