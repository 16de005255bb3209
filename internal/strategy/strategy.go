package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
)

// ErrInvalidConfig는 전략 설정 검증 실패를 나타냅니다
var ErrInvalidConfig = errors.New("잘못된 전략 설정입니다")

// Direction은 허용되는 진입 방향입니다
type Direction string

const (
	DirectionBoth  Direction = "both"
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// AllowsLong은 롱 진입 허용 여부입니다
func (d Direction) AllowsLong() bool { return d == DirectionBoth || d == DirectionLong || d == "" }

// AllowsShort는 숏 진입 허용 여부입니다
func (d Direction) AllowsShort() bool { return d == DirectionBoth || d == DirectionShort || d == "" }

// IndicatorSpec은 전략에서 ID로 참조하는 지표 명세입니다
type IndicatorSpec struct {
	ID string `json:"id"`
	indicator.Spec
}

// Exits는 퍼센트 단위 청산 규칙입니다. 0이면 비활성입니다.
type Exits struct {
	TakeProfitPct   float64 `json:"take_profit_pct,omitempty"`
	StopLossPct     float64 `json:"stop_loss_pct,omitempty"`
	TrailingStopPct float64 `json:"trailing_stop_pct,omitempty"`
}

// Validate는 청산 규칙 범위를 확인합니다
func (e Exits) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"take_profit_pct", e.TakeProfitPct},
		{"stop_loss_pct", e.StopLossPct},
		{"trailing_stop_pct", e.TrailingStopPct},
	}
	for _, f := range fields {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s는 0 이상의 유한한 값이어야 합니다 (%g)", f.name, f.value)
		}
	}
	if e.StopLossPct >= 100 {
		return fmt.Errorf("stop_loss_pct는 100 미만이어야 합니다 (%g)", e.StopLossPct)
	}
	if e.TrailingStopPct >= 100 {
		return fmt.Errorf("trailing_stop_pct는 100 미만이어야 합니다 (%g)", e.TrailingStopPct)
	}
	return nil
}

// Config는 선언적 전략 정의입니다. 실행에 전달된 뒤에는 변경하지 않습니다.
type Config struct {
	Name       string          `json:"name"`
	Indicators []IndicatorSpec `json:"indicators"`
	LongEntry  Node            `json:"-"`
	ShortEntry Node            `json:"-"`
	LongExit   Node            `json:"-"`
	ShortExit  Node            `json:"-"`
	Exits      Exits           `json:"exits"`
	Sizing     position.Sizing `json:"sizing"`
	Direction  Direction       `json:"direction"`
}

// Validate는 실행 전에 지표 참조와 설정 값을 타입 검사합니다
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, c.Name, err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.Direction {
	case DirectionBoth, DirectionLong, DirectionShort, "":
	default:
		return fmt.Errorf("알 수 없는 방향: %q", c.Direction)
	}

	r := make(resolver, len(c.Indicators))
	for _, spec := range c.Indicators {
		if spec.ID == "" {
			return fmt.Errorf("지표 ID가 비어있습니다 (%s)", spec.Type)
		}
		if spec.ID == "price" {
			return fmt.Errorf("지표 ID %q는 예약어입니다", spec.ID)
		}
		if _, dup := r[spec.ID]; dup {
			return fmt.Errorf("중복된 지표 ID: %q", spec.ID)
		}
		ind, err := indicator.New(spec.Spec)
		if err != nil {
			return err
		}
		r[spec.ID] = ind.Lines()
	}

	if c.LongEntry == nil && c.ShortEntry == nil {
		return fmt.Errorf("진입 조건이 없습니다")
	}
	// 오류 보고 순서를 고정하기 위해 슬라이스로 순회합니다
	nodes := []struct {
		name string
		node Node
	}{
		{"long_entry", c.LongEntry},
		{"short_entry", c.ShortEntry},
		{"long_exit", c.LongExit},
		{"short_exit", c.ShortExit},
	}
	for _, n := range nodes {
		if n.node == nil {
			continue
		}
		if err := n.node.validate(r); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
	}

	if err := c.Exits.Validate(); err != nil {
		return err
	}
	return c.Sizing.Validate()
}

// Warmup은 모든 지표가 유효해지기 위해 필요한 최소 캔들 수입니다
func (c Config) Warmup() (int, error) {
	warmup := 1
	for _, spec := range c.Indicators {
		ind, err := indicator.New(spec.Spec)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if w := ind.WarmupPeriod(); w > warmup {
			warmup = w
		}
	}
	return warmup, nil
}
