package indicator

import (
	"fmt"
	"math"
	"time"
)

// MACDResult는 MACD 지표 계산 결과입니다
type MACDResult struct {
	MACD      float64   // MACD 라인
	Signal    float64   // 시그널 라인
	Histogram float64   // 히스토그램
	Timestamp time.Time // 계산 시점
}

// GetTimestamp는 결과의 타임스탬프를 반환합니다 (Result 인터페이스 구현)
func (r MACDResult) GetTimestamp() time.Time {
	return r.Timestamp
}

// Line은 macd, signal, histogram 라인을 반환합니다
func (r MACDResult) Line(name string) float64 {
	switch name {
	case LineMACD, LineValue:
		return r.MACD
	case LineSignal:
		return r.Signal
	case LineHistogram:
		return r.Histogram
	}
	return math.NaN()
}

// MACD는 Moving Average Convergence Divergence 지표를 구현합니다
type MACD struct {
	BaseIndicator
	ShortPeriod  int // 단기 EMA 기간
	LongPeriod   int // 장기 EMA 기간
	SignalPeriod int // 시그널 라인 기간
}

// NewMACD는 새로운 MACD 지표 인스턴스를 생성합니다
func NewMACD(shortPeriod, longPeriod, signalPeriod int) *MACD {
	return &MACD{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("MACD(%d,%d,%d)", shortPeriod, longPeriod, signalPeriod),
			Config: map[string]interface{}{
				"ShortPeriod":  shortPeriod,
				"LongPeriod":   longPeriod,
				"SignalPeriod": signalPeriod,
			},
		},
		ShortPeriod:  shortPeriod,
		LongPeriod:   longPeriod,
		SignalPeriod: signalPeriod,
	}
}

func (m *MACD) Lines() []string {
	return []string{LineMACD, LineSignal, LineHistogram}
}

// WarmupPeriod는 시그널 라인이 처음 유효해지는 시점까지의 캔들 수입니다
func (m *MACD) WarmupPeriod() int { return m.LongPeriod + m.SignalPeriod - 1 }

// Calculate는 주어진 가격 데이터에 대해 MACD를 계산합니다
func (m *MACD) Calculate(prices []PriceData) ([]Result, error) {
	if err := m.validateInput(prices); err != nil {
		return nil, err
	}

	c := closes(prices)
	shortEMA := emaSeries(c, m.ShortPeriod)
	longEMA := emaSeries(c, m.LongPeriod)

	// MACD 라인 (단기 EMA - 장기 EMA), 장기 EMA가 유효한 구간부터 시작
	macdLine := nanSlice(len(prices))
	for i := range prices {
		if math.IsNaN(shortEMA[i]) || math.IsNaN(longEMA[i]) {
			continue
		}
		macdLine[i] = shortEMA[i] - longEMA[i]
	}

	// 시그널 라인 (MACD의 EMA)
	signalLine := emaSeries(macdLine, m.SignalPeriod)

	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = MACDResult{
			MACD:      macdLine[i],
			Signal:    signalLine[i],
			Histogram: macdLine[i] - signalLine[i],
			Timestamp: prices[i].Time,
		}
	}
	return results, nil
}

// validateInput은 입력 데이터가 유효한지 검증합니다
func (m *MACD) validateInput(prices []PriceData) error {
	if err := validatePeriod("short", m.ShortPeriod); err != nil {
		return err
	}
	if err := validatePeriod("long", m.LongPeriod); err != nil {
		return err
	}
	if err := validatePeriod("signal", m.SignalPeriod); err != nil {
		return err
	}
	if m.ShortPeriod >= m.LongPeriod {
		return &ValidationError{
			Field: "short",
			Err:   fmt.Errorf("단기 기간(%d)은 장기 기간(%d)보다 작아야 합니다", m.ShortPeriod, m.LongPeriod),
		}
	}
	return validatePrices(prices, m.WarmupPeriod())
}
