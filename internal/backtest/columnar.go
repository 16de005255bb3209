package backtest

import (
	lop "github.com/samber/lo/parallel"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// ColumnarName은 열 기반 백엔드 식별자입니다
const ColumnarName = "columnar@v1"

// columns는 캔들 시리즈의 struct-of-arrays 표현입니다
type columns struct {
	open, high, low, close []float64
}

func newColumns(candles domain.CandleList) *columns {
	n := len(candles)
	c := &columns{
		open:  make([]float64, n),
		high:  make([]float64, n),
		low:   make([]float64, n),
		close: make([]float64, n),
	}
	for i, k := range candles {
		c.open[i], c.high[i], c.low[i], c.close[i] = k.Open, k.High, k.Low, k.Close
	}
	return c
}

// ColumnarEngine은 가격 열을 미리 펼쳐 두고 방향 부호 곱으로 분기를 줄인 백엔드입니다.
// RunBatch로 같은 캔들 시리즈 위의 여러 입력을 병렬 실행할 수 있습니다.
type ColumnarEngine struct {
	Limits Limits
}

// NewColumnarEngine은 새로운 열 기반 엔진을 생성합니다
func NewColumnarEngine(limits Limits) *ColumnarEngine {
	return &ColumnarEngine{Limits: limits}
}

func (e *ColumnarEngine) Name() string { return ColumnarName }

// Run은 단일 입력을 실행합니다
func (e *ColumnarEngine) Run(in Input) (*Output, error) {
	if err := in.Validate(e.Limits); err != nil {
		return nil, err
	}
	return e.run(in, newColumns(in.Candles)), nil
}

// BatchResult는 RunBatch의 입력별 결과입니다
type BatchResult struct {
	Output *Output
	Err    error
}

// RunBatch는 입력들을 병렬로 실행합니다. 같은 캔들 슬라이스를 공유하는 입력은
// 열 변환을 한 번만 수행합니다. 결과 순서는 입력 순서와 같습니다.
func (e *ColumnarEngine) RunBatch(inputs []Input) []BatchResult {
	type seriesKey struct {
		first *domain.Candle
		n     int
	}
	shared := make(map[seriesKey]*columns)
	cols := make([]*columns, len(inputs))
	for i, in := range inputs {
		if len(in.Candles) == 0 {
			continue
		}
		key := seriesKey{first: &in.Candles[0], n: len(in.Candles)}
		if _, ok := shared[key]; !ok {
			shared[key] = newColumns(in.Candles)
		}
		cols[i] = shared[key]
	}

	return lop.Map(inputs, func(in Input, i int) BatchResult {
		if err := in.Validate(e.Limits); err != nil {
			return BatchResult{Err: err}
		}
		return BatchResult{Output: e.run(in, cols[i])}
	})
}

func (e *ColumnarEngine) run(in Input, col *columns) *Output {
	s := in.Settings
	n := len(col.close)
	last := n - 1
	nextOpen := s.FillMode == FillNextOpen
	intrabar := s.TriggerMode == TriggerIntrabar
	slip, rate := s.SlippageRate, s.CommissionRate
	tpPct, slPct, trailPct := in.Exits.TakeProfitPct, in.Exits.StopLossPct, in.Exits.TrailingStopPct

	// 방향별 유리/불리 가격 열 (인덱스 0 롱, 1 숏)
	favorable := [2][]float64{col.high, col.low}
	adverse := [2][]float64{col.low, col.high}
	if !intrabar {
		favorable = [2][]float64{col.close, col.close}
		adverse = favorable
	}

	capital := s.InitialCapital
	peak := capital
	trades := make([]Trade, 0, 16)
	equity := make([]EquityPoint, n)

	// 포지션 상태 (d == 0이면 포지션 없음)
	var d, entry, qty, entryComm, extreme float64
	var entryIdx int
	pendingEntry := domain.NoSignal
	pendingExit := false

	sideIdx := func(dir float64) int {
		if dir > 0 {
			return 0
		}
		return 1
	}
	sideOf := func(dir float64) domain.PositionSide {
		if dir > 0 {
			return domain.LongPosition
		}
		return domain.ShortPosition
	}

	enter := func(dir, price float64, i int) {
		if capital <= 0 {
			return
		}
		fill := price * (1 + dir*slip)
		q, err := in.Sizing.Quantity(capital, s.Leverage, fill)
		if err != nil {
			return
		}
		entryComm = fill * q * rate
		capital -= entryComm
		d, entry, qty, extreme, entryIdx = dir, fill, q, fill, i
	}

	exit := func(price float64, i int, reason ExitReason) {
		fill := price * (1 - d*slip)
		gross := d * (fill - entry) * qty
		exitComm := fill * qty * rate
		capital += gross - exitComm
		pnl := gross - entryComm - exitComm
		notional := entry * qty
		trades = append(trades, Trade{
			EntryTime:  in.Candles[entryIdx].OpenTime,
			ExitTime:   in.Candles[i].OpenTime,
			EntryIndex: entryIdx,
			ExitIndex:  i,
			Side:       sideOf(d),
			EntryPrice: entry,
			ExitPrice:  fill,
			Quantity:   qty,
			Notional:   notional,
			PnL:        pnl,
			PnLPct:     pnl / notional * 100,
			Commission: entryComm + exitComm,
			ExitReason: reason,
			Bars:       i - entryIdx,
		})
		d = 0
	}

	// fillAt은 레벨 체결가입니다: close 모드는 종가, intrabar 모드는 레벨 또는 갭 시 시가
	fillAt := func(i int, level float64, gap bool) float64 {
		if !intrabar {
			return col.close[i]
		}
		if gap {
			return col.open[i]
		}
		return level
	}

	for i := 0; i < n; i++ {
		if nextOpen {
			if pendingExit && d != 0 {
				exit(col.open[i], i, ExitSignal)
			}
			if pendingEntry != domain.NoSignal && d == 0 {
				enter(float64(pendingEntry), col.open[i], i)
			}
			pendingEntry, pendingExit = domain.NoSignal, false
		}

		if d != 0 && (entryIdx < i || nextOpen) {
			k := sideIdx(d)
			fav, adv, op := favorable[k][i], adverse[k][i], col.open[i]

			var reason ExitReason
			var price float64

			tpHit, slHit := false, false
			var tpPrice, slPrice float64
			if tpPct > 0 {
				level := entry * (1 + d*tpPct/100)
				tpHit = d*(fav-level) >= 0
				tpPrice = fillAt(i, level, d*(op-level) >= 0)
			}
			if slPct > 0 {
				level := entry * (1 - d*slPct/100)
				slHit = d*(adv-level) <= 0
				slPrice = fillAt(i, level, d*(op-level) <= 0)
			}

			switch {
			case s.StopFirst && slHit:
				reason, price = ExitStopLoss, slPrice
			case tpHit:
				reason, price = ExitTakeProfit, tpPrice
			case slHit:
				reason, price = ExitStopLoss, slPrice
			case trailPct > 0:
				level := extreme * (1 - d*trailPct/100)
				if d*(adv-level) <= 0 {
					reason, price = ExitTrailingStop, fillAt(i, level, d*(op-level) <= 0)
				}
			}

			if reason != "" {
				exit(price, i, reason)
			} else {
				if d*(fav-extreme) > 0 {
					extreme = fav
				}
				if in.Signals.ExitFor(sideOf(d), i) && i < last {
					if nextOpen {
						pendingExit = true
					} else {
						exit(col.close[i], i, ExitSignal)
					}
				}
			}
		}

		if sig := in.Signals.Entry[i]; sig != domain.NoSignal && i < last {
			if nextOpen {
				if d == 0 || pendingExit {
					pendingEntry = sig
				}
			} else if d == 0 {
				enter(float64(sig), col.close[i], i)
			}
		}

		if i == last && d != 0 {
			exit(col.close[i], i, ExitEndOfData)
		}

		eq := capital
		if d != 0 {
			eq += d * (col.close[i] - entry) * qty
		}
		if eq > peak {
			peak = eq
		}
		dd := peak - eq
		ddPct := 0.0
		if peak > 0 {
			ddPct = dd / peak * 100
		}
		equity[i] = EquityPoint{Index: i, Timestamp: in.Candles[i].OpenTime, Equity: eq, Drawdown: dd, DrawdownPct: ddPct}
	}

	return &Output{Backend: e.Name(), Trades: trades, Equity: equity, FinalCapital: capital}
}
