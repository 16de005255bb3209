package indicator

import (
	"fmt"
	"time"
)

// SMA는 단순이동평균입니다. 결과 타입은 EMAResult와 동일한 단일 라인입니다.
type SMA struct {
	BaseIndicator
	Period int
}

// NewSMA는 새로운 SMA 지표 인스턴스를 생성합니다
func NewSMA(period int) *SMA {
	return &SMA{
		BaseIndicator: BaseIndicator{
			Name:   fmt.Sprintf("SMA(%d)", period),
			Config: map[string]interface{}{"Period": period},
		},
		Period: period,
	}
}

func (s *SMA) Lines() []string   { return []string{LineValue} }
func (s *SMA) WarmupPeriod() int { return s.Period }

// Calculate는 종가 기준 SMA를 계산합니다
func (s *SMA) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", s.Period); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, s.Period); err != nil {
		return nil, err
	}

	values := smaSeries(closes(prices), s.Period)
	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = valueResult(values[i], prices[i].Time)
	}
	return results, nil
}

func valueResult(v float64, ts time.Time) Result {
	return EMAResult{Value: v, Timestamp: ts}
}
