package position

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// SizingMode는 포지션 크기 결정 방식입니다
type SizingMode string

const (
	// SizingAllIn은 가용 자본 전체에 레버리지를 곱한 만큼 진입합니다
	SizingAllIn SizingMode = "all_in"
	// SizingPercent는 가용 자본의 Value% 만큼 증거금으로 사용합니다
	SizingPercent SizingMode = "percent"
	// SizingFixed는 고정 증거금 Value(호가 통화)를 사용합니다
	SizingFixed SizingMode = "fixed"
)

// Sizing은 포지션 사이즈 계산을 위한 설정을 정의합니다
type Sizing struct {
	Mode     SizingMode `json:"mode"`
	Value    float64    `json:"value,omitempty"`     // percent: 0–100, fixed: 금액
	StepSize float64    `json:"step_size,omitempty"` // 수량 최소 단위 (0이면 조정 안 함)
}

// DefaultSizing은 all_in 설정을 반환합니다
func DefaultSizing() Sizing {
	return Sizing{Mode: SizingAllIn}
}

// Validate는 설정 값의 범위를 확인합니다
func (s Sizing) Validate() error {
	switch s.Mode {
	case SizingAllIn, "":
	case SizingPercent:
		if s.Value <= 0 || s.Value > 100 {
			return &SizingError{Mode: s.Mode, Err: fmt.Errorf("%w: percent는 (0, 100] 범위여야 합니다 (%.4f)", ErrInvalidSizing, s.Value)}
		}
	case SizingFixed:
		if s.Value <= 0 {
			return &SizingError{Mode: s.Mode, Err: fmt.Errorf("%w: fixed 금액은 0보다 커야 합니다 (%.4f)", ErrInvalidSizing, s.Value)}
		}
	default:
		return &SizingError{Mode: s.Mode, Err: fmt.Errorf("%w: 알 수 없는 모드", ErrInvalidSizing)}
	}
	if s.StepSize < 0 {
		return &SizingError{Mode: s.Mode, Err: fmt.Errorf("%w: step_size는 음수일 수 없습니다", ErrInvalidSizing)}
	}
	return nil
}

// margin은 진입에 쓸 증거금을 계산합니다. 자본을 넘지 않습니다.
func (s Sizing) margin(capital float64) float64 {
	switch s.Mode {
	case SizingPercent:
		return capital * s.Value / 100
	case SizingFixed:
		return math.Min(s.Value, capital)
	default:
		return capital
	}
}

// Quantity는 체결 가격 기준 진입 수량을 계산합니다.
// all_in 모드에서 수량 = 자본 × 레버리지 / 가격 입니다.
func (s Sizing) Quantity(capital, leverage, price float64) (float64, error) {
	if capital <= 0 {
		return 0, ErrInsufficientBalance
	}
	if price <= 0 {
		return 0, fmt.Errorf("유효하지 않은 가격: %.8f", price)
	}

	qty := s.margin(capital) * leverage / price

	// 최소 주문 단위로 내림
	if s.StepSize > 0 {
		qty = math.Floor(qty/s.StepSize) * s.StepSize
	}
	if qty <= 0 {
		return 0, ErrInsufficientBalance
	}
	return qty, nil
}

// QuantityDecimal은 Quantity의 고정소수점 버전입니다
func (s Sizing) QuantityDecimal(capital, leverage, price decimal.Decimal) (decimal.Decimal, error) {
	if !capital.IsPositive() {
		return decimal.Zero, ErrInsufficientBalance
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("유효하지 않은 가격: %s", price)
	}

	margin := capital
	switch s.Mode {
	case SizingPercent:
		margin = capital.Mul(decimal.NewFromFloat(s.Value)).Div(decimal.NewFromInt(100))
	case SizingFixed:
		margin = decimal.Min(decimal.NewFromFloat(s.Value), capital)
	}

	qty := margin.Mul(leverage).Div(price)
	if s.StepSize > 0 {
		step := decimal.NewFromFloat(s.StepSize)
		qty = qty.Div(step).Floor().Mul(step)
	}
	if !qty.IsPositive() {
		return decimal.Zero, ErrInsufficientBalance
	}
	return qty, nil
}
