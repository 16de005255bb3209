package indicator

import (
	"fmt"
	"math"
	"time"
)

// ------------ 결과 -------------------------------------------------------
// EMAResult는 EMA 지표 계산 결과입니다
type EMAResult struct {
	Value     float64
	Timestamp time.Time
}

// GetTimestamp는 결과의 타임스탬프를 반환합니다 (Result 인터페이스 구현)
func (r EMAResult) GetTimestamp() time.Time {
	return r.Timestamp
}

// Line은 "value" 라인을 반환합니다
func (r EMAResult) Line(name string) float64 {
	if name == LineValue {
		return r.Value
	}
	return math.NaN()
}

// ------------ 본체 -------------------------------------------------------
// EMA는 지수이동평균 지표를 구현합니다
type EMA struct {
	BaseIndicator
	Period int // EMA 기간
}

// NewEMA는 새로운 EMA 지표 인스턴스를 생성합니다
func NewEMA(period int) *EMA {
	return &EMA{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("EMA(%d)", period),
			Config: map[string]interface{}{
				"Period": period,
			},
		},
		Period: period,
	}
}

// Lines는 출력 라인 목록입니다
func (e *EMA) Lines() []string { return []string{LineValue} }

// WarmupPeriod는 첫 유효 값까지 필요한 캔들 수입니다
func (e *EMA) WarmupPeriod() int { return e.Period }

// Calculate는 주어진 가격 데이터에 대해 EMA를 계산합니다.
// 첫 Period개 종가의 SMA로 시드하고 그 이전 구간은 NaN입니다.
func (e *EMA) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", e.Period); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, e.Period); err != nil {
		return nil, err
	}

	values := emaSeries(closes(prices), e.Period)
	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = EMAResult{Value: values[i], Timestamp: prices[i].Time}
	}
	return results, nil
}
