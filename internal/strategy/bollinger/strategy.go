// Package bollinger는 볼린저 밴드 돌파 프리셋입니다.
package bollinger

import (
	"fmt"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

const Name = "bollinger_breakout"

// Template은 종가가 상단 밴드를 상향 돌파하면 롱, 하단 밴드를 하향 돌파하면 숏으로
// 진입하고 중심선 재돌파 시 청산하는 설정을 생성합니다.
func Template(p strategy.Params) (strategy.Config, error) {
	period := p.Int("period", 20)
	mult := p.Float("mult", 2)
	if period <= 1 || mult <= 0 {
		return strategy.Config{}, fmt.Errorf("잘못된 밴드 설정 (period=%d, mult=%g)", period, mult)
	}

	closePrice := strategy.Price(strategy.PriceClose)
	return strategy.Config{
		Name: Name,
		Indicators: []strategy.IndicatorSpec{
			{ID: "bb", Spec: indicator.Spec{Type: indicator.TypeBollinger, Params: map[string]float64{"period": float64(period), "mult": mult}}},
		},
		LongEntry:  strategy.Compare{Left: closePrice, Op: strategy.CrossesAbove, Right: strategy.Ind("bb", indicator.LineUpper)},
		ShortEntry: strategy.Compare{Left: closePrice, Op: strategy.CrossesBelow, Right: strategy.Ind("bb", indicator.LineLower)},
		LongExit:   strategy.Compare{Left: closePrice, Op: strategy.CrossesBelow, Right: strategy.Ind("bb", indicator.LineMiddle)},
		ShortExit:  strategy.Compare{Left: closePrice, Op: strategy.CrossesAbove, Right: strategy.Ind("bb", indicator.LineMiddle)},
		Direction:  strategy.DirectionBoth,
	}, nil
}

func Preset() strategy.Preset {
	return strategy.Preset{
		Name:        Name,
		Description: "볼린저 밴드 돌파 전략",
		Template:    Template,
		Defaults:    strategy.Params{"period": 20.0, "mult": 2.0},
		Space: strategy.Space{
			{Name: "period", Kind: strategy.KindInt, Min: 10, Max: 30, Step: 10},
			{Name: "mult", Kind: strategy.KindFloat, Min: 1.5, Max: 2.5, Step: 0.5},
			{Name: strategy.ParamDirection, Kind: strategy.KindCategorical, Choices: []any{"both", "long", "short"}},
		},
	}
}

func RegisterStrategy(registry *strategy.Registry) error {
	return registry.Register(Preset())
}
