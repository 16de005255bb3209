package signal

import (
	"fmt"
	"math"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/indicator"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Frame은 한 캔들 시리즈에 정렬된 가격 필드와 지표 라인 시계열입니다.
// 키는 "<지표ID>.<라인>" 또는 "price.<필드>" 형식입니다.
type Frame struct {
	series map[string][]float64
	n      int
}

// NewFrame은 가격 필드만 담긴 Frame을 생성합니다
func NewFrame(candles domain.CandleList) *Frame {
	n := len(candles)
	f := &Frame{series: make(map[string][]float64, 8), n: n}
	fields := map[string]func(domain.Candle) float64{
		strategy.PriceOpen:   func(c domain.Candle) float64 { return c.Open },
		strategy.PriceHigh:   func(c domain.Candle) float64 { return c.High },
		strategy.PriceLow:    func(c domain.Candle) float64 { return c.Low },
		strategy.PriceClose:  func(c domain.Candle) float64 { return c.Close },
		strategy.PriceVolume: func(c domain.Candle) float64 { return c.Volume },
	}
	for name, get := range fields {
		values := make([]float64, n)
		for i, c := range candles {
			values[i] = get(c)
		}
		f.series[strategy.SeriesKey("price", name)] = values
	}
	return f
}

// BuildFrame은 설정의 모든 지표 라인을 계산해 Frame에 담습니다.
// cache가 nil이면 이 호출 전용 캐시를 사용합니다.
func BuildFrame(cfg strategy.Config, candles domain.CandleList, cache *indicator.Cache) (*Frame, error) {
	if cache == nil {
		cache = indicator.NewCache(indicator.ConvertCandlesToPriceData(candles), nil)
	}
	f := NewFrame(candles)

	for _, spec := range cfg.Indicators {
		results, err := cache.Get(spec.Spec)
		if err != nil {
			return nil, fmt.Errorf("지표 %s: %w", spec.ID, err)
		}
		if len(results) != len(candles) {
			return nil, fmt.Errorf("지표 %s 결과 길이 불일치: %d != %d", spec.ID, len(results), len(candles))
		}
		ind, err := indicator.New(spec.Spec)
		if err != nil {
			return nil, err
		}
		for _, line := range ind.Lines() {
			f.Set(strategy.SeriesKey(spec.ID, line), indicator.ExtractLine(results, line))
		}
	}
	return f, nil
}

// Set은 시계열을 추가하거나 교체합니다
func (f *Frame) Set(key string, values []float64) {
	f.series[key] = values
}

// Len은 봉 수입니다
func (f *Frame) Len() int { return f.n }

// Value는 strategy.Frame 인터페이스 구현입니다
func (f *Frame) Value(key string, i int) float64 {
	s, ok := f.series[key]
	if !ok || i < 0 || i >= len(s) {
		return math.NaN()
	}
	return s[i]
}
