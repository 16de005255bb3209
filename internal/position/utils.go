package position

import (
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// EntryFill은 슬리피지를 불리한 방향으로 적용한 진입 체결가를 반환합니다
// (롱은 높게, 숏은 낮게)
func EntryFill(side domain.PositionSide, price, slippage float64) float64 {
	if side == domain.LongPosition {
		return price * (1 + slippage)
	}
	return price * (1 - slippage)
}

// ExitFill은 슬리피지를 불리한 방향으로 적용한 청산 체결가를 반환합니다
// (롱은 낮게, 숏은 높게)
func ExitFill(side domain.PositionSide, price, slippage float64) float64 {
	if side == domain.LongPosition {
		return price * (1 - slippage)
	}
	return price * (1 + slippage)
}

// TakeProfitLevel은 진입가 대비 pct% 유리한 가격입니다
func TakeProfitLevel(side domain.PositionSide, entry, pct float64) float64 {
	return entry * (1 + side.Direction()*pct/100)
}

// StopLossLevel은 진입가 대비 pct% 불리한 가격입니다
func StopLossLevel(side domain.PositionSide, entry, pct float64) float64 {
	return entry * (1 - side.Direction()*pct/100)
}
