package backtest

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// bars는 [open, high, low, close] 목록으로 1시간 캔들을 생성합니다
func bars(ohlc ...[4]float64) domain.CandleList {
	out := make(domain.CandleList, len(ohlc))
	for i, b := range ohlc {
		out[i] = domain.Candle{
			OpenTime:  testStart.Add(time.Duration(i) * time.Hour),
			CloseTime: testStart.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
			Open:      b[0],
			High:      b[1],
			Low:       b[2],
			Close:     b[3],
			Volume:    1,
			Symbol:    "BTCUSDT",
			Interval:  domain.Interval1h,
		}
	}
	return out
}

// closes는 시가=고가=저가=종가인 캔들을 생성합니다
func closes(prices ...float64) domain.CandleList {
	ohlc := make([][4]float64, len(prices))
	for i, p := range prices {
		ohlc[i] = [4]float64{p, p, p, p}
	}
	return bars(ohlc...)
}

func flatSettings(capital float64) Settings {
	s := DefaultSettings()
	s.InitialCapital = capital
	s.CommissionRate = 0
	return s
}

func newInput(candles domain.CandleList, settings Settings) Input {
	return Input{
		Candles:  candles,
		Signals:  domain.NewSignals(len(candles)),
		Sizing:   position.DefaultSizing(),
		Settings: settings,
	}
}

func allBackends() []Backend {
	limits := DefaultLimits()
	return []Backend{NewEngine(limits), NewColumnarEngine(limits), NewDecimalEngine(limits)}
}

func TestCommissionOnEntryAndExit(t *testing.T) {
	s := flatSettings(1000)
	s.CommissionRate = 0.001
	in := newInput(closes(100, 100), s)
	in.Signals.Entry[0] = domain.Long

	for _, b := range allBackends() {
		t.Run(b.Name(), func(t *testing.T) {
			out, err := b.Run(in)
			require.NoError(t, err)
			require.Len(t, out.Trades, 1)

			tr := out.Trades[0]
			assert.InDelta(t, 10.0, tr.Quantity, 1e-9)
			assert.InDelta(t, 2.0, tr.Commission, 1e-9) // 진입 1.0 + 청산 1.0
			assert.InDelta(t, -2.0, tr.PnL, 1e-9)
			assert.Equal(t, ExitEndOfData, tr.ExitReason)
			assert.InDelta(t, 998.0, out.FinalCapital, 1e-9)
		})
	}
}

func TestTakeProfitAndStopLossBoundary(t *testing.T) {
	tests := []struct {
		name   string
		exits  strategy.Exits
		price  float64
		reason ExitReason
		exit   int
	}{
		{"TP 2% 정확히 도달", strategy.Exits{TakeProfitPct: 2, StopLossPct: 1}, 102, ExitTakeProfit, 1},
		{"SL 1% 정확히 도달", strategy.Exits{TakeProfitPct: 2, StopLossPct: 1}, 99, ExitStopLoss, 1},
		{"TP 2.5% 정확히 도달", strategy.Exits{TakeProfitPct: 2.5, StopLossPct: 1.5}, 102.5, ExitTakeProfit, 1},
		{"SL 1.5% 정확히 도달", strategy.Exits{TakeProfitPct: 2.5, StopLossPct: 1.5}, 98.5, ExitStopLoss, 1},
		{"TP 직전", strategy.Exits{TakeProfitPct: 2, StopLossPct: 1}, 101.99, ExitEndOfData, 2},
		{"SL 직전", strategy.Exits{TakeProfitPct: 2, StopLossPct: 1}, 99.01, ExitEndOfData, 2},
	}

	for _, tt := range tests {
		for _, b := range allBackends() {
			t.Run(tt.name+"/"+b.Name(), func(t *testing.T) {
				in := newInput(closes(100, tt.price, tt.price), flatSettings(1000))
				in.Exits = tt.exits
				in.Signals.Entry[0] = domain.Long

				out, err := b.Run(in)
				require.NoError(t, err)
				require.Len(t, out.Trades, 1)
				assert.Equal(t, tt.reason, out.Trades[0].ExitReason)
				assert.Equal(t, tt.exit, out.Trades[0].ExitIndex)
				assert.InDelta(t, tt.price, out.Trades[0].ExitPrice, 1e-9)
			})
		}
	}
}

func TestShortTakeProfit(t *testing.T) {
	in := newInput(closes(100, 97, 97), flatSettings(1000))
	in.Exits = strategy.Exits{TakeProfitPct: 2.5}
	in.Signals.Entry[0] = domain.Short

	out, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)
	assert.Equal(t, domain.ShortPosition, out.Trades[0].Side)
	assert.Equal(t, ExitTakeProfit, out.Trades[0].ExitReason)
	assert.InDelta(t, 30.0, out.Trades[0].PnL, 1e-9)
}

func TestIntrabarFills(t *testing.T) {
	t.Run("레벨 체결", func(t *testing.T) {
		candles := bars(
			[4]float64{100, 100, 100, 100},
			[4]float64{100, 103, 99.5, 101},
			[4]float64{101, 101, 101, 101},
		)
		s := flatSettings(1000)
		s.TriggerMode = TriggerIntrabar
		in := newInput(candles, s)
		in.Exits = strategy.Exits{TakeProfitPct: 2.5}
		in.Signals.Entry[0] = domain.Long

		for _, b := range allBackends() {
			out, err := b.Run(in)
			require.NoError(t, err)
			require.Len(t, out.Trades, 1)
			assert.Equal(t, ExitTakeProfit, out.Trades[0].ExitReason, b.Name())
			assert.InDelta(t, 102.5, out.Trades[0].ExitPrice, 1e-9, b.Name())
		}
	})

	t.Run("갭이면 시가 체결", func(t *testing.T) {
		candles := bars(
			[4]float64{100, 100, 100, 100},
			[4]float64{104, 105, 103, 104},
			[4]float64{104, 104, 104, 104},
		)
		s := flatSettings(1000)
		s.TriggerMode = TriggerIntrabar
		in := newInput(candles, s)
		in.Exits = strategy.Exits{TakeProfitPct: 2.5}
		in.Signals.Entry[0] = domain.Long

		out, err := NewEngine(DefaultLimits()).Run(in)
		require.NoError(t, err)
		require.Len(t, out.Trades, 1)
		assert.InDelta(t, 104.0, out.Trades[0].ExitPrice, 1e-9)
	})

	t.Run("TP와 SL 동시 충족", func(t *testing.T) {
		candles := bars(
			[4]float64{100, 100, 100, 100},
			[4]float64{100, 104, 97, 100},
			[4]float64{100, 100, 100, 100},
		)
		s := flatSettings(1000)
		s.TriggerMode = TriggerIntrabar
		in := newInput(candles, s)
		in.Exits = strategy.Exits{TakeProfitPct: 2.5, StopLossPct: 1.5}
		in.Signals.Entry[0] = domain.Long

		for _, b := range allBackends() {
			out, err := b.Run(in)
			require.NoError(t, err)
			assert.Equal(t, ExitTakeProfit, out.Trades[0].ExitReason, b.Name())
		}

		in.Settings.StopFirst = true
		for _, b := range allBackends() {
			out, err := b.Run(in)
			require.NoError(t, err)
			assert.Equal(t, ExitStopLoss, out.Trades[0].ExitReason, b.Name())
		}
	})
}

func TestTrailingStop(t *testing.T) {
	in := newInput(closes(100, 110, 104, 104), flatSettings(1000))
	in.Exits = strategy.Exits{TrailingStopPct: 5}
	in.Signals.Entry[0] = domain.Long

	for _, b := range allBackends() {
		out, err := b.Run(in)
		require.NoError(t, err)
		require.Len(t, out.Trades, 1, b.Name())
		assert.Equal(t, ExitTrailingStop, out.Trades[0].ExitReason, b.Name())
		assert.Equal(t, 2, out.Trades[0].ExitIndex, b.Name())
		assert.InDelta(t, 104.0, out.Trades[0].ExitPrice, 1e-9, b.Name())
	}
}

func TestSingleSignalHeldToEnd(t *testing.T) {
	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = 100 + float64(i%7)
	}
	in := newInput(closes(prices...), DefaultSettings())
	in.Signals.Entry[0] = domain.Long

	out, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)
	require.Len(t, out.Trades, 1)

	tr := out.Trades[0]
	assert.Equal(t, 0, tr.EntryIndex)
	assert.Equal(t, 99, tr.ExitIndex)
	assert.Equal(t, 99, tr.Bars)
	assert.Equal(t, ExitEndOfData, tr.ExitReason)
	assert.Len(t, out.Equity, 100)
}

func TestHundredCandlesOneSignal(t *testing.T) {
	// 100봉, 0번 봉 롱 시그널 하나, TP 5%, SL 2%, 수수료 0
	series := func(step func(i int) float64) []float64 {
		prices := make([]float64, 100)
		for i := range prices {
			prices[i] = step(i)
		}
		return prices
	}

	tests := []struct {
		name   string
		prices []float64
		reason ExitReason
		exit   int
	}{
		{"상승 후 TP", series(func(i int) float64 { return 100 + 0.5*float64(i) }), ExitTakeProfit, 10},
		{"하락 후 SL", series(func(i int) float64 { return 100 - 0.25*float64(i) }), ExitStopLoss, 8},
		{"밴드 안 횡보", series(func(i int) float64 { return 100 + float64(i%5)*0.2 }), ExitEndOfData, 99},
		{"완만한 하락", series(func(i int) float64 { return 100 - 0.01*float64(i) }), ExitEndOfData, 99},
	}

	for _, tt := range tests {
		for _, b := range allBackends() {
			t.Run(tt.name+"/"+b.Name(), func(t *testing.T) {
				in := newInput(closes(tt.prices...), flatSettings(10000))
				in.Exits = strategy.Exits{TakeProfitPct: 5, StopLossPct: 2}
				in.Signals.Entry[0] = domain.Long

				out, err := b.Run(in)
				require.NoError(t, err)
				require.Len(t, out.Trades, 1)

				tr := out.Trades[0]
				assert.Contains(t, []ExitReason{ExitTakeProfit, ExitStopLoss, ExitEndOfData}, tr.ExitReason)
				assert.Equal(t, tt.reason, tr.ExitReason)
				assert.Equal(t, tt.exit, tr.ExitIndex)
				assert.Zero(t, tr.Commission)

				move := tr.ExitPrice - tr.EntryPrice
				assert.Equal(t, move > 0, tr.PnL > 0)
				assert.Equal(t, move < 0, tr.PnL < 0)
				assert.InDelta(t, 10000+tr.PnL, out.FinalCapital, 1e-6)
			})
		}
	}
}

func TestNextOpenFill(t *testing.T) {
	candles := bars(
		[4]float64{100, 100, 100, 100},
		[4]float64{101, 102, 100, 102},
		[4]float64{102, 103, 101, 103},
		[4]float64{105, 106, 104, 106},
		[4]float64{106, 106, 106, 106},
	)
	s := flatSettings(1000)
	s.FillMode = FillNextOpen
	in := newInput(candles, s)
	in.Signals.Entry[0] = domain.Long
	in.Signals.ExitLong[2] = true

	for _, b := range allBackends() {
		out, err := b.Run(in)
		require.NoError(t, err)
		require.Len(t, out.Trades, 1, b.Name())
		tr := out.Trades[0]
		assert.Equal(t, 1, tr.EntryIndex, b.Name())
		assert.InDelta(t, 101.0, tr.EntryPrice, 1e-9, b.Name())
		assert.Equal(t, 3, tr.ExitIndex, b.Name())
		assert.InDelta(t, 105.0, tr.ExitPrice, 1e-9, b.Name())
		assert.Equal(t, ExitSignal, tr.ExitReason, b.Name())
	}
}

func TestReversalOnOppositeSignal(t *testing.T) {
	in := newInput(closes(100, 101, 102, 101, 100), flatSettings(1000))
	in.Signals.Entry[0] = domain.Long
	in.Signals.Entry[2] = domain.Short

	out, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)
	require.Len(t, out.Trades, 2)

	assert.Equal(t, domain.LongPosition, out.Trades[0].Side)
	assert.Equal(t, ExitSignal, out.Trades[0].ExitReason)
	assert.Equal(t, 2, out.Trades[0].ExitIndex)

	assert.Equal(t, domain.ShortPosition, out.Trades[1].Side)
	assert.Equal(t, 2, out.Trades[1].EntryIndex)
	assert.Equal(t, ExitEndOfData, out.Trades[1].ExitReason)
}

func TestNoEntryOnLastBar(t *testing.T) {
	in := newInput(closes(100, 101, 102), flatSettings(1000))
	in.Signals.Entry[2] = domain.Long

	out, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)
	assert.Empty(t, out.Trades)
	assert.Equal(t, 1000.0, out.FinalCapital)
}

func TestEquityConsistency(t *testing.T) {
	in := randomInput(rand.New(rand.NewPCG(7, 11)), 300, DefaultSettings())
	in.Exits = strategy.Exits{TakeProfitPct: 3, StopLossPct: 2}

	out, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)
	require.NotEmpty(t, out.Trades)

	sum := 0.0
	for _, tr := range out.Trades {
		sum += tr.PnL
		assert.LessOrEqual(t, tr.EntryIndex, tr.ExitIndex)
	}
	assert.InDelta(t, in.Settings.InitialCapital+sum, out.FinalCapital, 1e-6)
	assert.InDelta(t, out.FinalCapital, out.Equity[len(out.Equity)-1].Equity, 1e-6)

	for _, p := range out.Equity {
		assert.GreaterOrEqual(t, p.Drawdown, 0.0)
	}
}

func TestDeterministicAndCausal(t *testing.T) {
	in := randomInput(rand.New(rand.NewPCG(1, 2)), 200, DefaultSettings())
	e := NewEngine(DefaultLimits())

	a, err := e.Run(in)
	require.NoError(t, err)
	b, err := e.Run(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// 앞부분만 잘라 실행해도 그 구간에서 청산이 끝난 거래는 같아야 합니다
	cut := 120
	short := in
	short.Candles = in.Candles[:cut]
	short.Signals = in.Signals.Slice(0, cut)
	c, err := e.Run(short)
	require.NoError(t, err)

	for i, tr := range c.Trades {
		if tr.ExitReason == ExitEndOfData {
			break
		}
		assert.Equal(t, a.Trades[i], tr)
	}
	// 마지막 봉 이전의 평가 자산은 이후 데이터에 영향을 받지 않습니다
	for i := 0; i < cut-1; i++ {
		assert.Equal(t, a.Equity[i].Equity, c.Equity[i].Equity, "index %d", i)
	}
}

func TestBackendParity(t *testing.T) {
	limits := DefaultLimits()
	ref := NewEngine(limits)

	modes := []struct {
		name     string
		fill     FillMode
		trigger  TriggerMode
		stopLast bool
	}{
		{"close", FillClose, TriggerClose, false},
		{"intrabar", FillClose, TriggerIntrabar, false},
		{"next_open", FillNextOpen, TriggerClose, false},
		{"next_open_intrabar", FillNextOpen, TriggerIntrabar, true},
	}

	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(42, uint64(len(m.name))))
			inputs := make([]Input, 0, 8)
			for k := 0; k < 8; k++ {
				s := DefaultSettings()
				s.FillMode = m.fill
				s.TriggerMode = m.trigger
				s.StopFirst = m.stopLast
				s.SlippageRate = 0.0005
				s.Leverage = float64(1 + k%3)
				in := randomInput(rng, 250, s)
				in.Exits = strategy.Exits{TakeProfitPct: 2 + float64(k%3), StopLossPct: 1.5, TrailingStopPct: float64(k % 2 * 3)}
				inputs = append(inputs, in)
			}

			require.NoError(t, VerifyParity(context.Background(), ref, NewColumnarEngine(limits), inputs, 1e-12))
			require.NoError(t, VerifyParity(context.Background(), ref, NewDecimalEngine(limits), inputs, DefaultParityTolerance))
		})
	}
}

func TestRunBatchMatchesRun(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	base := randomInput(rng, 150, DefaultSettings())

	inputs := make([]Input, 5)
	for i := range inputs {
		in := base
		in.Exits = strategy.Exits{StopLossPct: float64(i + 1)}
		inputs[i] = in
	}
	inputs[3].Settings.Leverage = 0

	e := NewColumnarEngine(DefaultLimits())
	results := e.RunBatch(inputs)
	require.Len(t, results, len(inputs))

	for i, r := range results {
		if i == 3 {
			assert.ErrorIs(t, r.Err, ErrInvalidLeverage)
			continue
		}
		require.NoError(t, r.Err)
		want, err := e.Run(inputs[i])
		require.NoError(t, err)
		assert.Equal(t, want, r.Output)
	}
}

func TestInputValidation(t *testing.T) {
	valid := func() Input {
		return newInput(closes(100, 101, 102), DefaultSettings())
	}

	tests := []struct {
		name   string
		mutate func(in *Input)
		field  string
		target error
	}{
		{"레버리지 0", func(in *Input) { in.Settings.Leverage = 0 }, "leverage", ErrInvalidLeverage},
		{"레버리지 초과", func(in *Input) { in.Settings.Leverage = 200 }, "leverage", ErrInvalidLeverage},
		{"수수료 범위", func(in *Input) { in.Settings.CommissionRate = 0.5 }, "commission_rate", ErrInvalidCommission},
		{"자본 0", func(in *Input) { in.Settings.InitialCapital = 0 }, "initial_capital", ErrInvalidCapital},
		{"음수 슬리피지", func(in *Input) { in.Settings.SlippageRate = -0.1 }, "slippage_rate", ErrInvalidSlippage},
		{"알 수 없는 체결 모드", func(in *Input) { in.Settings.FillMode = "vwap" }, "fill_mode", ErrInvalidSettings},
		{"캔들 부족", func(in *Input) {
			in.Candles = in.Candles[:1]
			in.Signals = in.Signals.Slice(0, 1)
		}, "candles", ErrInsufficientData},
		{"OHLC 위반", func(in *Input) { in.Candles[1].High = 50 }, "candles", ErrInvalidCandles},
		{"시그널 길이 불일치", func(in *Input) { in.Signals.ExitLong = in.Signals.ExitLong[:2] }, "signals", ErrInvalidSignals},
		{"시그널 값 범위", func(in *Input) { in.Signals.Entry[0] = 3 }, "signals", ErrInvalidSignals},
		{"SL 100% 이상", func(in *Input) { in.Exits.StopLossPct = 150 }, "exits", ErrInvalidStrategy},
		{"사이징 오류", func(in *Input) { in.Sizing = position.Sizing{Mode: position.SizingPercent, Value: 0} }, "sizing", ErrInvalidStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			for _, b := range allBackends() {
				_, err := b.Run(in)
				require.Error(t, err, b.Name())
				assert.ErrorIs(t, err, tt.target, b.Name())

				var inputErr *InputError
				require.True(t, errors.As(err, &inputErr), b.Name())
				assert.Equal(t, tt.field, inputErr.Field)
			}
		})
	}
}

func TestCompareOutputsReportsMismatch(t *testing.T) {
	in := randomInput(rand.New(rand.NewPCG(9, 9)), 120, DefaultSettings())
	a, err := NewEngine(DefaultLimits()).Run(in)
	require.NoError(t, err)

	b := *a
	b.Backend = "tampered@v1"
	b.FinalCapital += 1

	err = CompareOutputs(a, &b, DefaultParityTolerance)
	var perr *ParityError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "tampered@v1", perr.Candidate)
	assert.NotEmpty(t, perr.Mismatches)

	assert.NoError(t, CompareOutputs(a, a, 0))
}

type namedBackend struct{ name string }

func (b namedBackend) Name() string               { return b.name }
func (b namedBackend) Run(Input) (*Output, error) { return &Output{Backend: b.name}, nil }

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(DefaultLimits())
	assert.Equal(t, []string{ColumnarName, DecimalName, ReferenceName}, r.Names())

	b, err := r.Get("reference")
	require.NoError(t, err)
	assert.Equal(t, ReferenceName, b.Name())

	_, err = r.Get("gpu")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	_, err = r.Get("reference@v9")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	require.NoError(t, r.Register(namedBackend{"reference@v2"}))
	b, err = r.Get("reference")
	require.NoError(t, err)
	assert.Equal(t, "reference@v2", b.Name())

	assert.Error(t, r.Register(namedBackend{"reference@v2"}))
	assert.Error(t, r.Register(namedBackend{"noversion"}))
	assert.Error(t, r.Register(namedBackend{"bad@v0"}))

	assert.Panics(t, func() { r.MustRegister(namedBackend{"reference@v2"}) })
	assert.NotPanics(t, func() { r.MustRegister(namedBackend{"reference@v3"}) })
}

// randomInput은 랜덤 워크 캔들과 랜덤 시그널로 입력을 생성합니다
func randomInput(rng *rand.Rand, n int, settings Settings) Input {
	ohlc := make([][4]float64, n)
	price := 100.0
	for i := range ohlc {
		open := price
		closeP := open * (1 + (rng.Float64()-0.5)*0.04)
		high := max(open, closeP) * (1 + rng.Float64()*0.01)
		low := min(open, closeP) * (1 - rng.Float64()*0.01)
		ohlc[i] = [4]float64{open, high, low, closeP}
		price = closeP
	}

	in := newInput(bars(ohlc...), settings)
	for i := 0; i < n; i++ {
		switch r := rng.IntN(20); {
		case r == 0:
			in.Signals.Entry[i] = domain.Long
		case r == 1:
			in.Signals.Entry[i] = domain.Short
		case r == 2:
			in.Signals.ExitLong[i] = true
		case r == 3:
			in.Signals.ExitShort[i] = true
		}
	}
	return in
}
