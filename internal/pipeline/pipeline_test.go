package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/marketdata"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/emacross"
)

func newPipeline(t *testing.T, n int, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithPreset(emacross.Preset())}, opts...)
	p, err := New(marketdata.RandomWalk(11, n), opts...)
	require.NoError(t, err)
	return p
}

func TestEvaluate(t *testing.T) {
	p := newPipeline(t, 600)
	res, err := p.Evaluate(context.Background(), strategy.Params{"fast": 5.0, "slow": 20.0})
	require.NoError(t, err)

	assert.Equal(t, emacross.Name, res.Config.Name)
	assert.Len(t, res.Output.Equity, 600)
	assert.NotEmpty(t, res.Output.Trades)
	assert.Equal(t, float64(len(res.Output.Trades)), res.Metrics.Get(metrics.TotalTrades))
	assert.InDelta(t, res.Output.FinalCapital-p.Settings().InitialCapital, res.Metrics.Get(metrics.NetProfit), 1e-6)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	p := newPipeline(t, 100)
	_, err := p.Run(context.Background(), strategy.Config{Name: "empty"})
	assert.ErrorIs(t, err, backtest.ErrInvalidStrategy)

	_, err = p.Evaluate(context.Background(), strategy.Params{"fast": 30.0, "slow": 10.0})
	assert.ErrorIs(t, err, backtest.ErrInvalidStrategy)
}

func TestRunRejectsSeriesShorterThanWarmup(t *testing.T) {
	p := newPipeline(t, 30)

	_, err := p.Evaluate(context.Background(), strategy.Params{"fast": 5.0, "slow": 50.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, backtest.ErrInsufficientData)
	assert.NotErrorIs(t, err, backtest.ErrInvalidStrategy)

	var inputErr *backtest.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "candles", inputErr.Field)

	_, err = p.Evaluate(context.Background(), strategy.Params{"fast": 5.0, "slow": 20.0})
	assert.NoError(t, err)
}

func TestNewRejectsShortSeries(t *testing.T) {
	_, err := New(marketdata.RandomWalk(1, 1))
	assert.ErrorIs(t, err, backtest.ErrInsufficientData)
}

func TestWindowUsesLookback(t *testing.T) {
	p := newPipeline(t, 400)
	params := strategy.Params{"fast": 5.0, "slow": 20.0}

	full, err := p.Evaluate(context.Background(), params)
	require.NoError(t, err)

	w, err := p.Window(200, 400)
	require.NoError(t, err)
	assert.Equal(t, 200, w.Len())
	assert.Equal(t, p.Candles()[200], w.Candles()[0])

	res, err := w.Evaluate(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Start)
	assert.Len(t, res.Output.Equity, 200)

	// 지표가 구간 이전 데이터로 워밍업되므로 첫 봉부터 시그널이 가능합니다
	assert.NotEmpty(t, res.Output.Trades)
	assert.NotEmpty(t, full.Output.Trades)

	_, err = p.Window(390, 391)
	assert.ErrorIs(t, err, backtest.ErrInsufficientData)
	_, err = p.Window(0, 401)
	assert.Error(t, err)
}

func TestEvaluatePartialIsPrefix(t *testing.T) {
	p := newPipeline(t, 500)
	params := strategy.Params{"fast": 5.0, "slow": 20.0}

	part, err := p.EvaluatePartial(context.Background(), params, 0.5)
	require.NoError(t, err)
	assert.Len(t, part.Output.Equity, 250)

	full, err := p.Evaluate(context.Background(), params)
	require.NoError(t, err)
	for i := 0; i < 249; i++ {
		assert.Equal(t, full.Output.Equity[i].Equity, part.Output.Equity[i].Equity)
	}

	_, err = p.EvaluatePartial(context.Background(), params, 0)
	assert.Error(t, err)
}

func TestBackendsAgreeThroughPipeline(t *testing.T) {
	params := strategy.Params{"fast": 5.0, "slow": 20.0, strategy.ParamStopLoss: 2.0}
	ref, err := newPipeline(t, 400).Evaluate(context.Background(), params)
	require.NoError(t, err)

	for _, b := range []backtest.Backend{
		backtest.NewColumnarEngine(backtest.DefaultLimits()),
		backtest.NewDecimalEngine(backtest.DefaultLimits()),
	} {
		got, err := newPipeline(t, 400, WithBackend(b)).Evaluate(context.Background(), params)
		require.NoError(t, err)
		assert.NoError(t, backtest.CompareOutputs(ref.Output, got.Output, backtest.DefaultParityTolerance))
	}
}

func TestConcurrentEvaluate(t *testing.T) {
	p := newPipeline(t, 300)
	params := strategy.Params{"fast": 5.0, "slow": 20.0}
	want, err := p.Evaluate(context.Background(), params)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Evaluate(context.Background(), params)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, want.Output, r.Output)
	}
}

func TestCancelledContext(t *testing.T) {
	p := newPipeline(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Evaluate(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPackageRun(t *testing.T) {
	cfg, err := emacross.Preset().Build(nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), marketdata.RandomWalk(5, 200), cfg, backtest.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, res.Output.Equity, 200)
}

func TestWithSizingOverridesStrategy(t *testing.T) {
	params := strategy.Params{"fast": 5.0, "slow": 20.0}
	full, err := newPipeline(t, 400).Evaluate(context.Background(), params)
	require.NoError(t, err)
	half, err := newPipeline(t, 400, WithSizing(position.Sizing{Mode: position.SizingPercent, Value: 50})).Evaluate(context.Background(), params)
	require.NoError(t, err)

	require.NotEmpty(t, full.Output.Trades)
	require.NotEmpty(t, half.Output.Trades)
	assert.Equal(t, full.Output.Trades[0].EntryIndex, half.Output.Trades[0].EntryIndex)
	assert.InDelta(t, 0.5, half.Output.Trades[0].Notional/full.Output.Trades[0].Notional, 0.01)
	assert.Equal(t, position.SizingPercent, half.Config.Sizing.Mode)
}
