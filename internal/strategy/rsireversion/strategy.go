// Package rsireversion은 장기 RSI 추세 필터와 단기 RSI 밴드 돌파를 조합한 프리셋입니다.
package rsireversion

import (
	"fmt"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

const Name = "rsi_reversion"

const (
	idRSI   = "rsi"
	idTrend = "trend_rsi"
)

// Template은 RSI 되돌림 전략 설정을 생성합니다.
//
// 롱: RSI가 lower를 상향 돌파 (추세 필터 사용 시 장기 RSI > upper)
// 숏: RSI가 upper를 하향 돌파 (추세 필터 사용 시 장기 RSI < lower)
// 청산: 롱은 RSI >= exit_upper, 숏은 RSI <= exit_lower
func Template(p strategy.Params) (strategy.Config, error) {
	period := p.Int("period", 14)
	lower := p.Float("lower", 30)
	upper := p.Float("upper", 70)
	if period <= 0 {
		return strategy.Config{}, fmt.Errorf("period는 0보다 커야 합니다: %d", period)
	}
	if lower >= upper {
		return strategy.Config{}, fmt.Errorf("lower(%g)는 upper(%g)보다 작아야 합니다", lower, upper)
	}

	rsi := strategy.Ind(idRSI, indicator.LineValue)
	cfg := strategy.Config{
		Name: Name,
		Indicators: []strategy.IndicatorSpec{
			{ID: idRSI, Spec: indicator.Spec{Type: indicator.TypeRSI, Params: map[string]float64{"period": float64(period)}}},
		},
		LongExit:  strategy.Compare{Left: rsi, Op: strategy.GTE, Right: strategy.Const(p.Float("exit_upper", upper))},
		ShortExit: strategy.Compare{Left: rsi, Op: strategy.LTE, Right: strategy.Const(p.Float("exit_lower", lower))},
		Direction: strategy.DirectionBoth,
	}

	longEntry := strategy.All{strategy.Compare{Left: rsi, Op: strategy.CrossesAbove, Right: strategy.Const(lower)}}
	shortEntry := strategy.All{strategy.Compare{Left: rsi, Op: strategy.CrossesBelow, Right: strategy.Const(upper)}}

	if p.Bool("trend_filter", false) {
		trendPeriod := p.Int("trend_period", period*4)
		if trendPeriod <= period {
			return strategy.Config{}, fmt.Errorf("trend_period(%d)는 period(%d)보다 커야 합니다", trendPeriod, period)
		}
		cfg.Indicators = append(cfg.Indicators, strategy.IndicatorSpec{
			ID: idTrend, Spec: indicator.Spec{Type: indicator.TypeRSI, Params: map[string]float64{"period": float64(trendPeriod)}},
		})
		trend := strategy.Ind(idTrend, indicator.LineValue)
		longEntry = append(longEntry, strategy.Compare{Left: trend, Op: strategy.GT, Right: strategy.Const(p.Float("trend_upper", 50))})
		shortEntry = append(shortEntry, strategy.Compare{Left: trend, Op: strategy.LT, Right: strategy.Const(p.Float("trend_lower", 50))})
	}

	cfg.LongEntry = longEntry
	cfg.ShortEntry = shortEntry
	return cfg, nil
}

func Preset() strategy.Preset {
	return strategy.Preset{
		Name:        Name,
		Description: "RSI 밴드 돌파 되돌림 전략 (선택적 장기 RSI 추세 필터)",
		Template:    Template,
		Defaults: strategy.Params{
			"period":       14.0,
			"lower":        30.0,
			"upper":        70.0,
			"trend_filter": false,
		},
		Space: strategy.Space{
			{Name: "period", Kind: strategy.KindInt, Min: 7, Max: 21, Step: 7},
			{Name: "lower", Kind: strategy.KindFloat, Min: 20, Max: 40, Step: 10},
			{Name: "upper", Kind: strategy.KindFloat, Min: 60, Max: 80, Step: 10},
			{Name: "trend_filter", Kind: strategy.KindBool},
		},
	}
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry) error {
	return registry.Register(Preset())
}
