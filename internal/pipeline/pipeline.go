// Package pipeline은 캔들 → 지표 → 시그널 → 실행 엔진 → 지표 계산을 하나로 묶습니다.
// 최적화기는 Pipeline을 파라미터 조합별 목적 함수로 사용합니다.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/signal"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Result는 한 번의 파이프라인 실행 결과입니다
type Result struct {
	Config  strategy.Config  `json:"-"`
	Params  strategy.Params  `json:"params,omitempty"`
	Output  *backtest.Output `json:"output"`
	Metrics metrics.Set      `json:"metrics"`
	Start   int              `json:"start"` // 전체 시리즈 기준 구간 시작 인덱스
	End     int              `json:"end"`
}

// Pipeline은 하나의 불변 캔들 시리즈 위에서 전략을 평가합니다.
// 지표 캐시는 시리즈 전체에 대해 계산되고 Window로 만든 하위 파이프라인과 공유됩니다.
// 동시에 여러 고루틴에서 사용해도 안전합니다.
type Pipeline struct {
	candles  domain.CandleList // 전체 시리즈
	start    int               // 평가 구간 [start, end)
	end      int
	preset   *strategy.Preset
	backend  backtest.Backend
	settings backtest.Settings
	sizing   *position.Sizing
	riskFree float64
	interval domain.TimeInterval
	cache    *indicator.Cache
	logger   *zap.Logger
}

// Option은 Pipeline 설정 함수입니다
type Option func(*Pipeline)

// WithBackend는 실행 백엔드를 지정합니다 (기본: reference@v1)
func WithBackend(b backtest.Backend) Option {
	return func(p *Pipeline) { p.backend = b }
}

// WithSettings는 실행 설정을 지정합니다
func WithSettings(s backtest.Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// WithSizing은 전략 설정의 포지션 사이징을 덮어씁니다
func WithSizing(sizing position.Sizing) Option {
	return func(p *Pipeline) { p.sizing = &sizing }
}

// WithPreset은 Evaluate에서 사용할 전략 프리셋을 지정합니다
func WithPreset(preset strategy.Preset) Option {
	return func(p *Pipeline) { p.preset = &preset }
}

// WithRiskFreeRate는 샤프/소르티노 계산용 연 무위험 수익률을 지정합니다
func WithRiskFreeRate(rate float64) Option {
	return func(p *Pipeline) { p.riskFree = rate }
}

// WithInterval은 연율화에 사용할 봉 간격을 지정합니다 (기본: 첫 캔들의 Interval)
func WithInterval(interval domain.TimeInterval) Option {
	return func(p *Pipeline) { p.interval = interval }
}

// WithLogger는 로거를 지정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New는 캔들 시리즈에 대한 파이프라인을 생성합니다. 시리즈는 이후 변경하면 안 됩니다.
func New(candles domain.CandleList, opts ...Option) (*Pipeline, error) {
	if len(candles) < 2 {
		return nil, fmt.Errorf("%w: 캔들 %d개", backtest.ErrInsufficientData, len(candles))
	}
	if err := candles.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", backtest.ErrInvalidCandles, err)
	}

	p := &Pipeline{
		candles:  candles,
		start:    0,
		end:      len(candles),
		backend:  backtest.NewEngine(backtest.DefaultLimits()),
		settings: backtest.DefaultSettings(),
		interval: candles[0].Interval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = indicator.NewCache(indicator.ConvertCandlesToPriceData(candles), p.logger)
	return p, nil
}

// Len은 평가 구간의 봉 수입니다
func (p *Pipeline) Len() int { return p.end - p.start }

// Candles는 평가 구간의 캔들입니다
func (p *Pipeline) Candles() domain.CandleList { return p.candles[p.start:p.end] }

// Settings는 실행 설정을 반환합니다
func (p *Pipeline) Settings() backtest.Settings { return p.settings }

// Backend는 사용 중인 실행 백엔드입니다
func (p *Pipeline) Backend() backtest.Backend { return p.backend }

// Preset은 지정된 프리셋을 반환합니다
func (p *Pipeline) Preset() (strategy.Preset, bool) {
	if p.preset == nil {
		return strategy.Preset{}, false
	}
	return *p.preset, true
}

// Window는 현재 구간 기준 [start, end) 봉만 평가하는 하위 파이프라인을 반환합니다.
// 지표는 구간 이전 데이터까지 포함한 전체 시리즈로 계산되므로 워밍업이 구간 밖에서 이루어집니다.
func (p *Pipeline) Window(start, end int) (*Pipeline, error) {
	if start < 0 || end > p.Len() || end-start < 2 {
		return nil, fmt.Errorf("%w: 구간 [%d, %d) / %d", backtest.ErrInsufficientData, start, end, p.Len())
	}
	w := *p
	w.start = p.start + start
	w.end = p.start + end
	return &w, nil
}

// Run은 전략 설정을 평가 구간에서 실행합니다
func (p *Pipeline) Run(ctx context.Context, cfg strategy.Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.sizing != nil {
		cfg.Sizing = *p.sizing
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	warmup, err := cfg.Warmup()
	if err != nil {
		return nil, err
	}
	if len(p.candles) < warmup {
		return nil, &backtest.InputError{
			Field: "candles",
			Err:   fmt.Errorf("%w: 지표 워밍업 필요: %d, 현재: %d", backtest.ErrInsufficientData, warmup, len(p.candles)),
		}
	}

	began := time.Now()
	frame, err := signal.BuildFrame(cfg, p.candles, p.cache)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backtest.ErrInvalidStrategy, err)
	}
	signals := signal.Evaluate(cfg, frame, p.start, p.end)

	candles := p.Candles()
	out, err := p.backend.Run(backtest.Input{
		Candles:  candles,
		Signals:  signals,
		Exits:    cfg.Exits,
		Sizing:   cfg.Sizing,
		Settings: p.settings,
	})
	if err != nil {
		return nil, err
	}

	opts := metrics.OptionsFor(candles, p.interval, p.riskFree)
	set := metrics.Calculate(out.Trades, out.Equity, p.settings.InitialCapital, opts)

	p.logger.Debug("백테스트 실행 완료",
		zap.String("strategy", cfg.Name),
		zap.String("backend", out.Backend),
		zap.Int("start", p.start),
		zap.Int("end", p.end),
		zap.Int("trades", len(out.Trades)),
		zap.Float64("total_return_pct", set.Get(metrics.TotalReturnPct)),
		zap.Duration("elapsed", time.Since(began)),
	)

	return &Result{Config: cfg, Output: out, Metrics: set, Start: p.start, End: p.end}, nil
}

// Evaluate는 프리셋 기본값에 params를 덮어써 만든 설정으로 실행합니다
func (p *Pipeline) Evaluate(ctx context.Context, params strategy.Params) (*Result, error) {
	if p.preset == nil {
		return nil, fmt.Errorf("%w: 프리셋이 지정되지 않았습니다", backtest.ErrInvalidStrategy)
	}
	cfg, err := p.preset.Build(params)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.Params = params
	return res, nil
}

// EvaluatePartial은 평가 구간의 앞쪽 fraction 비율만으로 실행합니다 (조기 중단 판단용)
func (p *Pipeline) EvaluatePartial(ctx context.Context, params strategy.Params, fraction float64) (*Result, error) {
	if !(fraction > 0 && fraction <= 1) {
		return nil, fmt.Errorf("fraction은 (0, 1] 범위여야 합니다: %g", fraction)
	}
	n := int(math.Ceil(float64(p.Len()) * fraction))
	w, err := p.Window(0, max(n, 2))
	if err != nil {
		return nil, err
	}
	return w.Evaluate(ctx, params)
}

// Run은 캔들과 전략 설정, 실행 설정으로 한 번 백테스트합니다
func Run(ctx context.Context, candles domain.CandleList, cfg strategy.Config, settings backtest.Settings) (*Result, error) {
	p, err := New(candles, WithSettings(settings))
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, cfg)
}
