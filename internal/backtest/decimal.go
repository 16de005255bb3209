package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	p "github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
)

// DecimalName은 고정소수점 백엔드 식별자입니다
const DecimalName = "decimal@v1"

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

// DecimalEngine은 shopspring/decimal 고정소수점으로 계산하는 백엔드입니다.
// 알고리즘은 Engine과 같고 가격, 수량, 자본 계산만 decimal로 수행합니다.
type DecimalEngine struct {
	Limits Limits
}

// NewDecimalEngine은 새로운 decimal 엔진을 생성합니다
func NewDecimalEngine(limits Limits) *DecimalEngine {
	return &DecimalEngine{Limits: limits}
}

func (e *DecimalEngine) Name() string { return DecimalName }

type decPosition struct {
	side       domain.PositionSide
	dir        int
	entry      decimal.Decimal
	qty        decimal.Decimal
	commission decimal.Decimal
	extreme    decimal.Decimal
	index      int
	candle     domain.Candle
}

type decLedger struct {
	capital    decimal.Decimal
	peak       decimal.Decimal
	slippage   decimal.Decimal
	commission decimal.Decimal
	leverage   decimal.Decimal
	sizing     p.Sizing
	pos        *decPosition
	trades     []Trade
	equity     []EquityPoint
}

func (l *decLedger) open(side domain.PositionSide, price decimal.Decimal, c domain.Candle, i int) {
	if l.pos != nil || !l.capital.IsPositive() {
		return
	}
	dir := int(side.Direction())
	fill := price.Mul(decOne.Add(decimal.NewFromInt(int64(dir)).Mul(l.slippage)))
	qty, err := l.sizing.QuantityDecimal(l.capital, l.leverage, fill)
	if err != nil {
		return
	}
	comm := fill.Mul(qty).Mul(l.commission)
	l.capital = l.capital.Sub(comm)
	l.pos = &decPosition{side: side, dir: dir, entry: fill, qty: qty, commission: comm, extreme: fill, index: i, candle: c}
}

func (l *decLedger) close(price decimal.Decimal, c domain.Candle, i int, reason ExitReason) {
	pos := l.pos
	if pos == nil {
		return
	}
	dir := decimal.NewFromInt(int64(pos.dir))
	fill := price.Mul(decOne.Sub(dir.Mul(l.slippage)))
	gross := dir.Mul(fill.Sub(pos.entry)).Mul(pos.qty)
	exitComm := fill.Mul(pos.qty).Mul(l.commission)
	l.capital = l.capital.Add(gross).Sub(exitComm)

	pnl := gross.Sub(pos.commission).Sub(exitComm)
	notional := pos.entry.Mul(pos.qty)
	l.trades = append(l.trades, Trade{
		EntryTime:  pos.candle.OpenTime,
		ExitTime:   c.OpenTime,
		EntryIndex: pos.index,
		ExitIndex:  i,
		Side:       pos.side,
		EntryPrice: pos.entry.InexactFloat64(),
		ExitPrice:  fill.InexactFloat64(),
		Quantity:   pos.qty.InexactFloat64(),
		Notional:   notional.InexactFloat64(),
		PnL:        pnl.InexactFloat64(),
		PnLPct:     pnl.Div(notional).Mul(decHundred).InexactFloat64(),
		Commission: pos.commission.Add(exitComm).InexactFloat64(),
		ExitReason: reason,
		Bars:       i - pos.index,
	})
	l.pos = nil
}

func (l *decLedger) mark(c domain.Candle, i int) {
	equity := l.capital
	if l.pos != nil {
		dir := decimal.NewFromInt(int64(l.pos.dir))
		equity = equity.Add(dir.Mul(decimal.NewFromFloat(c.Close).Sub(l.pos.entry)).Mul(l.pos.qty))
	}
	if equity.GreaterThan(l.peak) {
		l.peak = equity
	}
	dd := l.peak.Sub(equity)
	ddPct := decimal.Zero
	if l.peak.IsPositive() {
		ddPct = dd.Div(l.peak).Mul(decHundred)
	}
	l.equity = append(l.equity, EquityPoint{
		Index:       i,
		Timestamp:   c.OpenTime,
		Equity:      equity.InexactFloat64(),
		Drawdown:    dd.InexactFloat64(),
		DrawdownPct: ddPct.InexactFloat64(),
	})
}

// Run은 Engine.Run과 같은 순서로 백테스트를 실행합니다
func (e *DecimalEngine) Run(in Input) (*Output, error) {
	if err := in.Validate(e.Limits); err != nil {
		return nil, err
	}

	s := in.Settings
	nextOpen := s.FillMode == FillNextOpen
	intrabar := s.TriggerMode == TriggerIntrabar
	last := len(in.Candles) - 1
	capital := decimal.NewFromFloat(s.InitialCapital)

	l := &decLedger{
		capital:    capital,
		peak:       capital,
		slippage:   decimal.NewFromFloat(s.SlippageRate),
		commission: decimal.NewFromFloat(s.CommissionRate),
		leverage:   decimal.NewFromFloat(s.Leverage),
		sizing:     in.Sizing,
		equity:     make([]EquityPoint, 0, len(in.Candles)),
	}
	tp := decimal.NewFromFloat(in.Exits.TakeProfitPct).Div(decHundred)
	sl := decimal.NewFromFloat(in.Exits.StopLossPct).Div(decHundred)
	trail := decimal.NewFromFloat(in.Exits.TrailingStopPct).Div(decHundred)

	pendingEntry := domain.NoSignal
	pendingExit := false

	for i, c := range in.Candles {
		open := decimal.NewFromFloat(c.Open)
		high := decimal.NewFromFloat(c.High)
		low := decimal.NewFromFloat(c.Low)
		closePrice := decimal.NewFromFloat(c.Close)

		if nextOpen {
			if pendingExit && l.pos != nil {
				l.close(open, c, i, ExitSignal)
			}
			if pendingEntry != domain.NoSignal && l.pos == nil {
				l.open(domain.SideFromSignal(pendingEntry), open, c, i)
			}
			pendingEntry, pendingExit = domain.NoSignal, false
		}

		if pos := l.pos; pos != nil && (pos.index < i || nextOpen) {
			dir := decimal.NewFromInt(int64(pos.dir))
			favorable, adverse := high, low
			if pos.dir < 0 {
				favorable, adverse = low, high
			}
			if !intrabar {
				favorable, adverse = closePrice, closePrice
			}

			// 유리한 방향 도달 (d*(price-level) >= 0)
			reached := func(price, level decimal.Decimal) bool {
				return !dir.Mul(price.Sub(level)).IsNegative()
			}
			// 불리한 방향 도달 (d*(price-level) <= 0)
			breached := func(price, level decimal.Decimal) bool {
				return !dir.Mul(price.Sub(level)).IsPositive()
			}
			fillAt := func(level decimal.Decimal, gap bool) decimal.Decimal {
				if !intrabar {
					return closePrice
				}
				if gap {
					return open
				}
				return level
			}

			type check struct {
				reason ExitReason
				hit    func() (decimal.Decimal, bool)
			}
			takeProfit := check{ExitTakeProfit, func() (decimal.Decimal, bool) {
				if !tp.IsPositive() {
					return decimal.Zero, false
				}
				level := pos.entry.Mul(decOne.Add(dir.Mul(tp)))
				return fillAt(level, reached(open, level)), reached(favorable, level)
			}}
			stopLoss := check{ExitStopLoss, func() (decimal.Decimal, bool) {
				if !sl.IsPositive() {
					return decimal.Zero, false
				}
				level := pos.entry.Mul(decOne.Sub(dir.Mul(sl)))
				return fillAt(level, breached(open, level)), breached(adverse, level)
			}}
			trailing := check{ExitTrailingStop, func() (decimal.Decimal, bool) {
				if !trail.IsPositive() {
					return decimal.Zero, false
				}
				level := pos.extreme.Mul(decOne.Sub(dir.Mul(trail)))
				return fillAt(level, breached(open, level)), breached(adverse, level)
			}}

			order := []check{takeProfit, stopLoss, trailing}
			if s.StopFirst {
				order = []check{stopLoss, takeProfit, trailing}
			}

			closed := false
			for _, ch := range order {
				if price, ok := ch.hit(); ok {
					l.close(price, c, i, ch.reason)
					closed = true
					break
				}
			}

			if !closed {
				if pos.dir > 0 {
					pos.extreme = decimal.Max(pos.extreme, favorable)
				} else {
					pos.extreme = decimal.Min(pos.extreme, favorable)
				}
				if in.Signals.ExitFor(pos.side, i) && i < last {
					if nextOpen {
						pendingExit = true
					} else {
						l.close(closePrice, c, i, ExitSignal)
					}
				}
			}
		}

		if sig := in.Signals.Entry[i]; sig != domain.NoSignal && i < last {
			if nextOpen {
				if l.pos == nil || pendingExit {
					pendingEntry = sig
				}
			} else if l.pos == nil {
				l.open(domain.SideFromSignal(sig), closePrice, c, i)
			}
		}

		if i == last && l.pos != nil {
			l.close(closePrice, c, i, ExitEndOfData)
		}

		l.mark(c, i)
	}

	return &Output{
		Backend:      e.Name(),
		Trades:       l.trades,
		Equity:       l.equity,
		FinalCapital: l.capital.InexactFloat64(),
	}, nil
}
