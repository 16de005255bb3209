package backtest

import (
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	p "github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// ReferenceName은 기준 백엔드 식별자입니다
const ReferenceName = "reference@v1"

// Engine은 float64 스칼라 루프로 구현한 기준 백엔드입니다.
// 다른 백엔드는 이 결과와의 일치 여부로 검증합니다.
type Engine struct {
	Limits Limits
}

// NewEngine은 새로운 기준 엔진을 생성합니다
func NewEngine(limits Limits) *Engine {
	return &Engine{Limits: limits}
}

// Name은 백엔드 식별자를 반환합니다
func (e *Engine) Name() string { return ReferenceName }

// Run은 백테스트를 실행합니다.
//
// 봉 i의 판정은 i 이하의 데이터만 사용합니다. 한 봉에서의 처리 순서:
//  1. next_open 모드: 대기 중인 청산, 이어서 대기 중인 진입을 시가에 체결
//  2. 열린 포지션의 TP, SL(StopFirst면 순서 교체), 트레일링 스탑, 청산 시그널 판정
//  3. 포지션이 없으면 진입 시그널 처리 (청산 직후 같은 봉 재진입 허용)
//  4. 마지막 봉이면 남은 포지션을 end_of_data로 종가 청산
//  5. 종가 기준 평가 자산 기록
func (e *Engine) Run(in Input) (*Output, error) {
	if err := in.Validate(e.Limits); err != nil {
		return nil, err
	}

	s := in.Settings
	nextOpen := s.FillMode == FillNextOpen
	intrabar := s.TriggerMode == TriggerIntrabar
	last := len(in.Candles) - 1

	m := NewManager(s, in.Sizing, len(in.Candles))
	pendingEntry := domain.NoSignal
	pendingExit := false

	for i, c := range in.Candles {
		// 1. 다음 봉 시가 체결
		if nextOpen {
			if pendingExit && m.Position != nil {
				m.ClosePosition(c.Open, c, i, ExitSignal)
			}
			if pendingEntry != domain.NoSignal && m.Position == nil {
				m.OpenPosition(domain.SideFromSignal(pendingEntry), c.Open, c, i)
			}
			pendingEntry, pendingExit = domain.NoSignal, false
		}

		// 2. 청산 판정
		if pos := m.Position; pos != nil && (pos.EntryIndex < i || nextOpen) {
			price, reason := e.checkExits(pos, in.Exits, c, intrabar, s.StopFirst)
			if reason != "" {
				m.ClosePosition(price, c, i, reason)
			} else {
				if intrabar {
					pos.UpdateExtreme(c.High, c.Low)
				} else {
					pos.UpdateExtreme(c.Close, c.Close)
				}
				if in.Signals.ExitFor(pos.Side, i) && i < last {
					if nextOpen {
						pendingExit = true
					} else {
						m.ClosePosition(c.Close, c, i, ExitSignal)
					}
				}
			}
		}

		// 3. 진입
		if sig := in.Signals.Entry[i]; sig != domain.NoSignal && i < last {
			if nextOpen {
				if m.Position == nil || pendingExit {
					pendingEntry = sig
				}
			} else if m.Position == nil {
				m.OpenPosition(domain.SideFromSignal(sig), c.Close, c, i)
			}
		}

		// 4. 데이터 종료
		if i == last && m.Position != nil {
			m.ClosePosition(c.Close, c, i, ExitEndOfData)
		}

		// 5. 평가 자산
		m.UpdateEquity(c, i)
	}

	return m.Output(e.Name()), nil
}

// checkExits는 가격 기반 청산 조건을 우선순위대로 확인합니다.
// 조건이 없으면 빈 reason을 반환합니다.
func (e *Engine) checkExits(pos *p.Position, exits strategy.Exits, c domain.Candle, intrabar, stopFirst bool) (float64, ExitReason) {
	d := pos.Side.Direction()

	takeProfit := func() (float64, bool) {
		if exits.TakeProfitPct <= 0 {
			return 0, false
		}
		level := p.TakeProfitLevel(pos.Side, pos.EntryPrice, exits.TakeProfitPct)
		if !intrabar {
			return c.Close, d*(c.Close-level) >= 0
		}
		favorable := c.High
		if d < 0 {
			favorable = c.Low
		}
		if d*(favorable-level) < 0 {
			return 0, false
		}
		if d*(c.Open-level) >= 0 {
			return c.Open, true
		}
		return level, true
	}

	stop := func(level float64) (float64, bool) {
		if !intrabar {
			return c.Close, d*(c.Close-level) <= 0
		}
		adverse := c.Low
		if d < 0 {
			adverse = c.High
		}
		if d*(adverse-level) > 0 {
			return 0, false
		}
		if d*(c.Open-level) <= 0 {
			return c.Open, true
		}
		return level, true
	}

	stopLoss := func() (float64, bool) {
		if exits.StopLossPct <= 0 {
			return 0, false
		}
		return stop(p.StopLossLevel(pos.Side, pos.EntryPrice, exits.StopLossPct))
	}

	first, second := takeProfit, stopLoss
	firstReason, secondReason := ExitTakeProfit, ExitStopLoss
	if stopFirst {
		first, second = stopLoss, takeProfit
		firstReason, secondReason = ExitStopLoss, ExitTakeProfit
	}
	if price, ok := first(); ok {
		return price, firstReason
	}
	if price, ok := second(); ok {
		return price, secondReason
	}

	if exits.TrailingStopPct > 0 {
		if price, ok := stop(pos.TrailingLevel(exits.TrailingStopPct)); ok {
			return price, ExitTrailingStop
		}
	}
	return 0, ""
}
