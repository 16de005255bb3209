package position

import (
	"math"
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// Position은 백테스트 중 열린 포지션입니다. 하나의 실행에만 속합니다.
type Position struct {
	Side            domain.PositionSide // 롱/숏 포지션
	EntryPrice      float64             // 체결 진입가 (슬리피지 포함)
	Quantity        float64             // 수량
	EntryTime       time.Time           // 진입 시각
	EntryIndex      int                 // 진입 봉 인덱스
	EntryCommission float64             // 진입 수수료
	Extreme         float64             // 트레일링 스탑용 유리한 방향 최고/최저가
}

// Open은 새 포지션을 생성합니다. 트레일링 기준가는 진입가로 시작합니다.
func Open(side domain.PositionSide, fill, qty float64, at time.Time, index int, commission float64) *Position {
	return &Position{
		Side:            side,
		EntryPrice:      fill,
		Quantity:        qty,
		EntryTime:       at,
		EntryIndex:      index,
		EntryCommission: commission,
		Extreme:         fill,
	}
}

// Notional은 진입 명목 가치입니다
func (p *Position) Notional() float64 {
	return p.EntryPrice * p.Quantity
}

// UnrealizedPnL은 mark 가격 기준 미실현 손익입니다 (수수료 제외)
func (p *Position) UnrealizedPnL(mark float64) float64 {
	return p.Side.Direction() * (mark - p.EntryPrice) * p.Quantity
}

// TrailingLevel은 현재 기준가에서 pct% 되돌린 가격입니다
func (p *Position) TrailingLevel(pct float64) float64 {
	return p.Extreme * (1 - p.Side.Direction()*pct/100)
}

// UpdateExtreme은 봉의 고가/저가로 유리한 방향 극값을 갱신합니다
func (p *Position) UpdateExtreme(high, low float64) {
	if p.Side == domain.LongPosition {
		p.Extreme = math.Max(p.Extreme, high)
		return
	}
	p.Extreme = math.Min(p.Extreme, low)
}
