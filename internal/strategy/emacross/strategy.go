// Package emacross는 두 EMA의 교차로 진입하는 프리셋입니다.
package emacross

import (
	"fmt"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

const Name = "ema_cross"

// Template은 단기 EMA가 장기 EMA를 상향/하향 돌파할 때 진입하는 설정을 생성합니다.
// 반대 방향 교차가 곧 청산 시그널입니다.
func Template(p strategy.Params) (strategy.Config, error) {
	fast := p.Int("fast", 9)
	slow := p.Int("slow", 21)
	if fast <= 0 || slow <= 0 {
		return strategy.Config{}, fmt.Errorf("EMA 기간은 0보다 커야 합니다 (fast=%d, slow=%d)", fast, slow)
	}
	if fast >= slow {
		return strategy.Config{}, fmt.Errorf("fast(%d)는 slow(%d)보다 작아야 합니다", fast, slow)
	}

	fastLine := strategy.Ind("fast", indicator.LineValue)
	slowLine := strategy.Ind("slow", indicator.LineValue)
	return strategy.Config{
		Name: Name,
		Indicators: []strategy.IndicatorSpec{
			{ID: "fast", Spec: indicator.Spec{Type: indicator.TypeEMA, Params: map[string]float64{"period": float64(fast)}}},
			{ID: "slow", Spec: indicator.Spec{Type: indicator.TypeEMA, Params: map[string]float64{"period": float64(slow)}}},
		},
		LongEntry:  strategy.Compare{Left: fastLine, Op: strategy.CrossesAbove, Right: slowLine},
		ShortEntry: strategy.Compare{Left: fastLine, Op: strategy.CrossesBelow, Right: slowLine},
		Direction:  strategy.DirectionBoth,
	}, nil
}

func Preset() strategy.Preset {
	return strategy.Preset{
		Name:        Name,
		Description: "단기/장기 EMA 교차 전략",
		Template:    Template,
		Defaults:    strategy.Params{"fast": 9.0, "slow": 21.0},
		Space: strategy.Space{
			{Name: "fast", Kind: strategy.KindInt, Min: 5, Max: 20, Step: 5},
			{Name: "slow", Kind: strategy.KindInt, Min: 20, Max: 60, Step: 10},
			{Name: strategy.ParamStopLoss, Kind: strategy.KindFloat, Min: 0, Max: 4, Step: 2},
		},
	}
}

func RegisterStrategy(registry *strategy.Registry) error {
	return registry.Register(Preset())
}
