package backtest

import (
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	p "github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
)

// Manager는 한 번의 실행 동안 자본, 열린 포지션, 거래 기록, 자산 곡선을 관리합니다.
// 실행마다 새로 생성하며 공유하지 않습니다.
type Manager struct {
	Capital  float64     // 실현 자본 (진입 수수료 차감 반영)
	Position *p.Position // 열린 포지션 (없으면 nil)
	Trades   []Trade     // 청산된 거래 기록
	Equity   []EquityPoint
	peak     float64
	settings Settings
	sizing   p.Sizing
}

// NewManager는 새로운 백테스트 매니저를 생성합니다
func NewManager(settings Settings, sizing p.Sizing, bars int) *Manager {
	return &Manager{
		Capital:  settings.InitialCapital,
		Trades:   make([]Trade, 0, 16),
		Equity:   make([]EquityPoint, 0, bars),
		peak:     settings.InitialCapital,
		settings: settings,
		sizing:   sizing,
	}
}

// OpenPosition은 price(슬리피지 적용 전)에 새 포지션을 생성합니다.
// 자본이 없거나 수량이 0이면 진입하지 않고 false를 반환합니다.
func (m *Manager) OpenPosition(side domain.PositionSide, price float64, candle domain.Candle, index int) bool {
	if m.Position != nil || m.Capital <= 0 {
		return false
	}

	fill := p.EntryFill(side, price, m.settings.SlippageRate)
	qty, err := m.sizing.Quantity(m.Capital, m.settings.Leverage, fill)
	if err != nil {
		return false
	}

	// 진입 수수료는 즉시 자본에서 차감
	commission := fill * qty * m.settings.CommissionRate
	m.Capital -= commission
	m.Position = p.Open(side, fill, qty, candle.OpenTime, index, commission)
	return true
}

// ClosePosition은 열린 포지션을 price(슬리피지 적용 전)에 청산하고 거래를 기록합니다
func (m *Manager) ClosePosition(price float64, candle domain.Candle, index int, reason ExitReason) {
	pos := m.Position
	if pos == nil {
		return
	}

	fill := p.ExitFill(pos.Side, price, m.settings.SlippageRate)
	gross := pos.Side.Direction() * (fill - pos.EntryPrice) * pos.Quantity
	exitCommission := fill * pos.Quantity * m.settings.CommissionRate
	m.Capital += gross - exitCommission

	pnl := gross - pos.EntryCommission - exitCommission
	notional := pos.Notional()
	m.Trades = append(m.Trades, Trade{
		EntryTime:  pos.EntryTime,
		ExitTime:   candle.OpenTime,
		EntryIndex: pos.EntryIndex,
		ExitIndex:  index,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		Quantity:   pos.Quantity,
		Notional:   notional,
		PnL:        pnl,
		PnLPct:     pnl / notional * 100,
		Commission: pos.EntryCommission + exitCommission,
		ExitReason: reason,
		Bars:       index - pos.EntryIndex,
	})
	m.Position = nil
}

// UpdateEquity는 종가 기준 평가 자산과 낙폭을 기록합니다
func (m *Manager) UpdateEquity(candle domain.Candle, index int) {
	equity := m.Capital
	if m.Position != nil {
		equity += m.Position.UnrealizedPnL(candle.Close)
	}
	if equity > m.peak {
		m.peak = equity
	}

	dd := m.peak - equity
	ddPct := 0.0
	if m.peak > 0 {
		ddPct = dd / m.peak * 100
	}
	m.Equity = append(m.Equity, EquityPoint{
		Index:       index,
		Timestamp:   candle.OpenTime,
		Equity:      equity,
		Drawdown:    dd,
		DrawdownPct: ddPct,
	})
}

// Output은 실행 결과를 반환합니다
func (m *Manager) Output(backend string) *Output {
	return &Output{
		Backend:      backend,
		Trades:       m.Trades,
		Equity:       m.Equity,
		FinalCapital: m.Capital,
	}
}
