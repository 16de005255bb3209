// Package walkforward는 인샘플 구간에서 최적화한 파라미터를 바로 뒤 아웃오브샘플 구간에서 검증합니다.
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/optimize"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/workers"
)

// Mode는 구간 분할 방식입니다
type Mode string

const (
	// ModeRolling은 고정 길이 인샘플 구간이 step만큼 이동합니다
	ModeRolling Mode = "rolling"
	// ModeAnchored는 인샘플 시작이 0에 고정되고 끝이 step만큼 늘어납니다
	ModeAnchored Mode = "anchored"
)

// Inner는 인샘플 구간에서 사용할 최적화기입니다
type Inner string

const (
	InnerGrid  Inner = "grid"
	InnerBayes Inner = "bayes"
)

var (
	ErrInvalidConfig = errors.New("잘못된 워크포워드 설정입니다")
	ErrNoWindows     = errors.New("구간을 만들 수 없을 만큼 데이터가 짧습니다")
	ErrNoBest        = errors.New("인샘플 구간에서 유효한 시행이 없습니다")
)

// Config는 워크포워드 설정입니다
type Config struct {
	Mode          Mode
	TrainSize     int
	TestSize      int
	StepSize      int
	Objective     optimize.Objective
	Inner         Inner
	Bayes         optimize.BayesConfig // Inner가 bayes일 때의 시행 설정 (Objective는 무시)
	EfficiencyMin float64              // 효율 하한 (기본 -1)
	EfficiencyMax float64              // 효율 상한 (기본 2)
	CVThreshold   float64              // 이 값을 넘는 변동계수는 불안정으로 표시 (기본 0.5)
	Parallelism   int                  // 동시에 처리할 구간 수
	Logger        *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeRolling
	}
	if c.Inner == "" {
		c.Inner = InnerGrid
	}
	if c.StepSize <= 0 {
		c.StepSize = c.TestSize
	}
	if c.EfficiencyMin == 0 && c.EfficiencyMax == 0 {
		c.EfficiencyMin, c.EfficiencyMax = -1, 2
	}
	if c.CVThreshold <= 0 {
		c.CVThreshold = 0.5
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Validate는 설정값을 확인합니다
func (c Config) Validate() error {
	if c.Mode != ModeRolling && c.Mode != ModeAnchored {
		return fmt.Errorf("%w: 알 수 없는 모드 %q", ErrInvalidConfig, c.Mode)
	}
	if c.Inner != InnerGrid && c.Inner != InnerBayes {
		return fmt.Errorf("%w: 알 수 없는 최적화기 %q", ErrInvalidConfig, c.Inner)
	}
	if c.TrainSize < 2 || c.TestSize < 2 {
		return fmt.Errorf("%w: train(%d)과 test(%d)는 2 이상이어야 합니다", ErrInvalidConfig, c.TrainSize, c.TestSize)
	}
	if c.StepSize <= 0 {
		return fmt.Errorf("%w: step은 0보다 커야 합니다", ErrInvalidConfig)
	}
	if c.EfficiencyMin >= c.EfficiencyMax {
		return fmt.Errorf("%w: 효율 범위 [%g, %g]", ErrInvalidConfig, c.EfficiencyMin, c.EfficiencyMax)
	}
	if _, err := metrics.ParseName(string(c.Objective.Metric)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Span은 한 구간의 인샘플/아웃오브샘플 범위입니다 (반열림 구간)
type Span struct {
	Index      int `json:"index"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// Windows는 n개 봉을 분할한 구간 목록입니다. 두 모드 모두 구간 수는 ⌊(n−train−test)/step⌋+1 입니다.
func Windows(n int, mode Mode, train, test, step int) ([]Span, error) {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: train=%d test=%d step=%d", ErrInvalidConfig, train, test, step)
	}
	if n < train+test {
		return nil, fmt.Errorf("%w: 봉 %d개 < train %d + test %d", ErrNoWindows, n, train, test)
	}
	count := (n-train-test)/step + 1
	spans := make([]Span, count)
	for k := range spans {
		offset := k * step
		s := Span{Index: k, TrainEnd: train + offset}
		if mode == ModeRolling {
			s.TrainStart = offset
		}
		s.TestStart = s.TrainEnd
		s.TestEnd = s.TestStart + test
		spans[k] = s
	}
	return spans, nil
}

// WindowResult는 한 구간의 결과입니다
type WindowResult struct {
	Span
	BestParams strategy.Params `json:"best_params,omitempty"`
	ISMetrics  metrics.Set     `json:"is_metrics,omitempty"`
	OOSMetrics metrics.Set     `json:"oos_metrics,omitempty"`
	ISScore    float64         `json:"is_score"`
	OOSScore   float64         `json:"oos_score"`
	Efficiency float64         `json:"efficiency"`
	Trials     int             `json:"trials"`
	Error      string          `json:"error,omitempty"`
}

// Failed는 구간 처리가 실패했는지 반환합니다
func (w WindowResult) Failed() bool { return w.Error != "" }

// Report는 전체 워크포워드 결과입니다
type Report struct {
	Mode              Mode           `json:"mode"`
	Metric            metrics.Name   `json:"metric"`
	Windows           []WindowResult `json:"windows"`
	AvgISScore        float64        `json:"avg_is_score"`
	AvgOOSScore       float64        `json:"avg_oos_score"`
	AvgEfficiency     float64        `json:"avg_efficiency"`
	ProfitableWindows int            `json:"profitable_windows"` // 아웃오브샘플 순손익 > 0
	FailedWindows     int            `json:"failed_windows"`
	Stability         []Stability    `json:"stability"`
}

// Run은 파이프라인 p(프리셋 필수)를 구간별로 최적화하고 검증합니다.
// 구간은 서로 독립적으로 병렬 처리되며 개별 구간의 실패는 보고서에 기록됩니다.
func Run(ctx context.Context, p *pipeline.Pipeline, space strategy.Space, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok := p.Preset(); !ok {
		return nil, fmt.Errorf("%w: 파이프라인에 프리셋이 없습니다", ErrInvalidConfig)
	}
	spans, err := Windows(p.Len(), cfg.Mode, cfg.TrainSize, cfg.TestSize, cfg.StepSize)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	started := time.Now()
	logger.Info("워크포워드 시작",
		zap.String("mode", string(cfg.Mode)),
		zap.String("inner", string(cfg.Inner)),
		zap.Int("windows", len(spans)),
		zap.String("metric", string(cfg.Objective.Metric)),
	)

	results, errs, runErr := workers.Map(ctx, spans, cfg.Parallelism, nil,
		func(ctx context.Context, _ int, s Span) (WindowResult, error) {
			return runWindow(ctx, p, space, cfg, s), nil
		})
	for i, err := range errs {
		if err != nil {
			results[i] = WindowResult{Span: spans[i], Error: err.Error()}
		}
	}

	report := summarize(results, cfg, space)
	logger.Info("워크포워드 완료",
		zap.Int("windows", len(results)),
		zap.Int("failed", report.FailedWindows),
		zap.Float64("avg_oos_score", report.AvgOOSScore),
		zap.Float64("avg_efficiency", report.AvgEfficiency),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, runErr
}

func runWindow(ctx context.Context, p *pipeline.Pipeline, space strategy.Space, cfg Config, s Span) WindowResult {
	wr := WindowResult{Span: s}
	fail := func(err error) WindowResult {
		wr.Error = err.Error()
		cfg.Logger.Debug("구간 실패", zap.Int("window", s.Index), zap.Error(err))
		return wr
	}

	train, err := p.Window(s.TrainStart, s.TrainEnd)
	if err != nil {
		return fail(err)
	}
	test, err := p.Window(s.TestStart, s.TestEnd)
	if err != nil {
		return fail(err)
	}

	var trials []optimize.Result
	switch cfg.Inner {
	case InnerBayes:
		bc := cfg.Bayes
		bc.Objective = cfg.Objective
		bc.Seed += uint64(s.Index)
		bc.Logger = cfg.Logger
		trials, err = optimize.Bayes(ctx, train, space, bc)
	default:
		trials, err = optimize.Grid(ctx, train, space, optimize.GridConfig{
			Objective:   cfg.Objective,
			Parallelism: 1,
			Logger:      cfg.Logger,
		})
	}
	if err != nil {
		return fail(err)
	}
	wr.Trials = len(trials)

	best, ok := optimize.Best(trials)
	if !ok {
		return fail(ErrNoBest)
	}
	wr.BestParams = best.Params
	wr.ISMetrics = best.Metrics
	wr.ISScore = best.Score

	oos, err := test.Evaluate(ctx, best.Params)
	if err != nil {
		return fail(fmt.Errorf("아웃오브샘플 실행 실패: %w", err))
	}
	wr.OOSMetrics = oos.Metrics
	wr.OOSScore = oos.Metrics.Get(cfg.Objective.Metric)
	wr.Efficiency = efficiency(wr.ISScore, wr.OOSScore, cfg)
	return wr
}

// efficiency는 OOS/IS 비율을 [EfficiencyMin, EfficiencyMax]로 자른 값입니다.
// 낮을수록 좋은 지표는 IS/OOS로 계산합니다.
func efficiency(is, oos float64, cfg Config) float64 {
	num, den := oos, is
	if metrics.LowerIsBetter(cfg.Objective.Metric) {
		num, den = is, oos
	}
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return math.Min(math.Max(num/den, cfg.EfficiencyMin), cfg.EfficiencyMax)
}

func summarize(results []WindowResult, cfg Config, space strategy.Space) *Report {
	report := &Report{Mode: cfg.Mode, Metric: cfg.Objective.Metric, Windows: results}

	ok, failed := lo.FilterReject(results, func(w WindowResult, _ int) bool { return !w.Failed() })
	report.FailedWindows = len(failed)
	if len(ok) == 0 {
		return report
	}

	report.AvgISScore = lo.SumBy(ok, func(w WindowResult) float64 { return w.ISScore }) / float64(len(ok))
	report.AvgOOSScore = lo.SumBy(ok, func(w WindowResult) float64 { return w.OOSScore }) / float64(len(ok))
	report.AvgEfficiency = lo.SumBy(ok, func(w WindowResult) float64 { return w.Efficiency }) / float64(len(ok))
	report.ProfitableWindows = lo.CountBy(ok, func(w WindowResult) bool {
		return w.OOSMetrics.Get(metrics.NetProfit) > 0
	})
	report.Stability = ParameterStability(space, lo.Map(ok, func(w WindowResult, _ int) strategy.Params {
		return w.BestParams
	}), cfg.CVThreshold)
	return report
}
