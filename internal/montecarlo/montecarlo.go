// Package montecarlo는 실현 거래 손익을 복원추출해 결과 분포와 파산 확률을 추정합니다.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/workers"
)

var (
	ErrNoTrades      = errors.New("시뮬레이션할 거래가 없습니다")
	ErrInvalidConfig = errors.New("잘못된 몬테카를로 설정입니다")
)

// Config는 몬테카를로 설정입니다
type Config struct {
	Trials       int
	Seed         uint64
	RuinFloorPct float64 // 초기 자본 대비 % 이하로 떨어지면 파산 (기본 50)
	Parallelism  int
	Logger       *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.RuinFloorPct == 0 {
		c.RuinFloorPct = 50
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Percentiles는 5/25/50/75/95 백분위수입니다
type Percentiles struct {
	P5  float64 `json:"p5"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
}

// Report는 시뮬레이션 결과입니다
type Report struct {
	Trials           int         `json:"trials"`
	Trades           int         `json:"trades"`
	ActualReturnPct  float64     `json:"actual_return_pct"`
	MeanReturnPct    float64     `json:"mean_return_pct"`
	StdReturnPct     float64     `json:"std_return_pct"`
	StdError         float64     `json:"std_error"` // 평균 수익률 추정치의 표준오차
	Returns          Percentiles `json:"return_pct"`
	MaxDrawdowns     Percentiles `json:"max_drawdown_pct"`
	ProbProfit       float64     `json:"prob_profit"`
	ProbRuin         float64     `json:"prob_ruin"`
	ActualPercentile float64     `json:"actual_percentile"` // 실제 수익률 이하인 시행 비율 (%)
}

// outcome은 시행 하나의 결과입니다
type outcome struct {
	returnPct float64
	maxDDPct  float64
	ruined    bool
}

// Simulate는 거래 기록의 손익으로 시뮬레이션합니다
func Simulate(ctx context.Context, trades []backtest.Trade, initialCapital float64, cfg Config) (*Report, error) {
	pnls := lo.Map(trades, func(t backtest.Trade, _ int) float64 { return t.PnL })
	return SimulatePnL(ctx, pnls, initialCapital, cfg)
}

// SimulatePnL은 거래 손익 시퀀스를 거래 수를 유지한 채 복원추출해 Trials번 재구성합니다.
// 시행 k는 (Seed, k)로 초기화된 난수 생성기를 사용하므로 병렬 실행 순서와 무관하게 결과가 같습니다.
func SimulatePnL(ctx context.Context, pnls []float64, initialCapital float64, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	if len(pnls) == 0 {
		return nil, ErrNoTrades
	}
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("%w: 시행 수 %d", ErrInvalidConfig, cfg.Trials)
	}
	if initialCapital <= 0 || math.IsNaN(initialCapital) {
		return nil, fmt.Errorf("%w: 초기 자본 %g", ErrInvalidConfig, initialCapital)
	}
	if cfg.RuinFloorPct < 0 || cfg.RuinFloorPct >= 100 {
		return nil, fmt.Errorf("%w: 파산 기준 %g%%", ErrInvalidConfig, cfg.RuinFloorPct)
	}

	started := time.Now()
	floor := initialCapital * cfg.RuinFloorPct / 100
	outcomes, errs, err := workers.Map(ctx, lo.Range(cfg.Trials), cfg.Parallelism, nil,
		func(_ context.Context, _ int, trial int) (outcome, error) {
			return simulateTrial(pnls, initialCapital, floor, rand.New(rand.NewPCG(cfg.Seed, uint64(trial)))), nil
		})
	if err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	actual := lo.Sum(pnls) / initialCapital * 100
	returns := lo.Map(outcomes, func(o outcome, _ int) float64 { return o.returnPct })
	drawdowns := lo.Map(outcomes, func(o outcome, _ int) float64 { return o.maxDDPct })
	sort.Float64s(returns)
	sort.Float64s(drawdowns)

	mean, std := meanStd(returns)
	n := float64(cfg.Trials)
	report := &Report{
		Trials:          cfg.Trials,
		Trades:          len(pnls),
		ActualReturnPct: actual,
		MeanReturnPct:   mean,
		StdReturnPct:    std,
		StdError:        std / math.Sqrt(n),
		Returns:         percentiles(returns),
		MaxDrawdowns:    percentiles(drawdowns),
		ProbProfit:      float64(lo.CountBy(returns, func(r float64) bool { return r > 0 })) / n,
		ProbRuin:        float64(lo.CountBy(outcomes, func(o outcome) bool { return o.ruined })) / n,
		ActualPercentile: float64(sort.Search(len(returns), func(i int) bool {
			return returns[i] > actual
		})) / n * 100,
	}

	cfg.Logger.Info("몬테카를로 시뮬레이션 완료",
		zap.Int("trials", cfg.Trials),
		zap.Int("trades", len(pnls)),
		zap.Float64("prob_profit", report.ProbProfit),
		zap.Float64("prob_ruin", report.ProbRuin),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

// simulateTrial은 복원추출한 손익으로 자산 곡선을 재구성합니다
func simulateTrial(pnls []float64, initialCapital, floor float64, rng *rand.Rand) outcome {
	equity, peak := initialCapital, initialCapital
	var o outcome
	for range pnls {
		equity += pnls[rng.IntN(len(pnls))]
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > o.maxDDPct {
			o.maxDDPct = dd
		}
		if equity <= floor {
			o.ruined = true
		}
	}
	o.returnPct = (equity - initialCapital) / initialCapital * 100
	return o
}

// percentiles는 정렬된 값의 선형 보간 백분위수입니다
func percentiles(sorted []float64) Percentiles {
	return Percentiles{
		P5:  Percentile(sorted, 5),
		P25: Percentile(sorted, 25),
		P50: Percentile(sorted, 50),
		P75: Percentile(sorted, 75),
		P95: Percentile(sorted, 95),
	}
}

// Percentile은 오름차순 정렬된 값의 q 백분위수를 선형 보간으로 계산합니다
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q / 100 * float64(len(sorted)-1)
	below, above := int(math.Floor(pos)), int(math.Ceil(pos))
	if below == above {
		return sorted[below]
	}
	return sorted[below] + (sorted[above]-sorted[below])*(pos-float64(below))
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := lo.Sum(values) / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}
