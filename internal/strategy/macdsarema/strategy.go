// Package macdsarema는 MACD, Parabolic SAR, 장기 EMA를 조합한 트렌드 팔로잉 프리셋입니다.
package macdsarema

import (
	"fmt"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Name은 레지스트리에 등록되는 프리셋 이름입니다
const Name = "macd_sar_ema"

// 지표 ID
const (
	idEMA  = "ema"
	idMACD = "macd"
	idSAR  = "sar"
)

// Template은 파라미터로 MACD+SAR+EMA 전략 설정을 생성합니다.
//
// 롱: 종가 > EMA, MACD 상향돌파, 히스토그램 >= min_histogram, SAR < 저가
// 숏: 종가 < EMA, MACD 하향돌파, 히스토그램 <= -min_histogram, SAR > 고가
// 청산: SAR 추세 전환
func Template(p strategy.Params) (strategy.Config, error) {
	emaLength := p.Int("ema_length", 200)
	minHistogram := p.Float("min_histogram", 0.00005)
	if emaLength <= 0 {
		return strategy.Config{}, fmt.Errorf("ema_length는 0보다 커야 합니다: %d", emaLength)
	}
	if minHistogram < 0 {
		return strategy.Config{}, fmt.Errorf("min_histogram은 음수일 수 없습니다: %g", minHistogram)
	}

	macdLine := strategy.Ind(idMACD, indicator.LineMACD)
	signalLine := strategy.Ind(idMACD, indicator.LineSignal)
	histogram := strategy.Ind(idMACD, indicator.LineHistogram)
	sar := strategy.Ind(idSAR, indicator.LineSAR)
	closePrice := strategy.Price(strategy.PriceClose)
	ema := strategy.Ind(idEMA, indicator.LineValue)

	return strategy.Config{
		Name: Name,
		Indicators: []strategy.IndicatorSpec{
			{ID: idEMA, Spec: indicator.Spec{Type: indicator.TypeEMA, Params: map[string]float64{"period": float64(emaLength)}}},
			{ID: idMACD, Spec: indicator.Spec{Type: indicator.TypeMACD, Params: map[string]float64{
				"fast": float64(p.Int("macd_fast", 12)), "slow": float64(p.Int("macd_slow", 26)), "signal": float64(p.Int("macd_signal", 9)),
			}}},
			{ID: idSAR, Spec: indicator.Spec{Type: indicator.TypeSAR, Params: map[string]float64{
				"af_initial": p.Float("sar_af", 0.02), "af_max": p.Float("sar_af_max", 0.2),
			}}},
		},
		LongEntry: strategy.All{
			strategy.Compare{Left: closePrice, Op: strategy.GT, Right: ema},
			strategy.Compare{Left: macdLine, Op: strategy.CrossesAbove, Right: signalLine},
			strategy.Compare{Left: histogram, Op: strategy.GTE, Right: strategy.Const(minHistogram)},
			strategy.Compare{Left: sar, Op: strategy.LT, Right: strategy.Price(strategy.PriceLow)},
		},
		ShortEntry: strategy.All{
			strategy.Compare{Left: closePrice, Op: strategy.LT, Right: ema},
			strategy.Compare{Left: macdLine, Op: strategy.CrossesBelow, Right: signalLine},
			strategy.Compare{Left: histogram, Op: strategy.LTE, Right: strategy.Const(-minHistogram)},
			strategy.Compare{Left: sar, Op: strategy.GT, Right: strategy.Price(strategy.PriceHigh)},
		},
		LongExit:  strategy.Compare{Left: strategy.Ind(idSAR, indicator.LineTrend), Op: strategy.LT, Right: strategy.Const(0)},
		ShortExit: strategy.Compare{Left: strategy.Ind(idSAR, indicator.LineTrend), Op: strategy.GT, Right: strategy.Const(0)},
		Direction: strategy.DirectionBoth,
	}, nil
}

// Preset은 기본값과 탐색 공간을 포함한 프리셋 정의입니다
func Preset() strategy.Preset {
	return strategy.Preset{
		Name:        Name,
		Description: "MACD, Parabolic SAR, 장기 EMA를 조합한 트렌드 팔로잉 전략",
		Template:    Template,
		Defaults: strategy.Params{
			"ema_length":             200.0,
			"min_histogram":          0.00005,
			strategy.ParamStopLoss:   2.0,
			strategy.ParamTakeProfit: 4.0,
		},
		Space: strategy.Space{
			{Name: "ema_length", Kind: strategy.KindInt, Min: 50, Max: 200, Step: 50},
			{Name: strategy.ParamStopLoss, Kind: strategy.KindFloat, Min: 1, Max: 3, Step: 1},
			{Name: strategy.ParamTakeProfit, Kind: strategy.KindFloat, Min: 2, Max: 6, Step: 2},
		},
	}
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry) error {
	return registry.Register(Preset())
}
