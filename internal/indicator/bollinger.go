package indicator

import (
	"fmt"
	"math"
	"time"
)

// BollingerResult는 볼린저 밴드 계산 결과입니다
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	Timestamp time.Time
}

func (r BollingerResult) GetTimestamp() time.Time { return r.Timestamp }

// Line은 upper, middle, lower 라인을 반환합니다
func (r BollingerResult) Line(name string) float64 {
	switch name {
	case LineUpper:
		return r.Upper
	case LineMiddle, LineValue:
		return r.Middle
	case LineLower:
		return r.Lower
	}
	return math.NaN()
}

// Bollinger는 SMA 중심선과 모표준편차 밴드를 계산합니다
type Bollinger struct {
	BaseIndicator
	Period     int
	Multiplier float64
}

// NewBollinger는 새로운 볼린저 밴드 인스턴스를 생성합니다
func NewBollinger(period int, multiplier float64) *Bollinger {
	return &Bollinger{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("BB(%d,%.1f)", period, multiplier),
			Config: map[string]interface{}{
				"Period":     period,
				"Multiplier": multiplier,
			},
		},
		Period:     period,
		Multiplier: multiplier,
	}
}

func (b *Bollinger) Lines() []string   { return []string{LineMiddle, LineUpper, LineLower} }
func (b *Bollinger) WarmupPeriod() int { return b.Period }

// Calculate는 볼린저 밴드를 계산합니다
func (b *Bollinger) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", b.Period); err != nil {
		return nil, err
	}
	if b.Multiplier <= 0 {
		return nil, &ValidationError{Field: "multiplier", Err: fmt.Errorf("multiplier must be > 0")}
	}
	if err := validatePrices(prices, b.Period); err != nil {
		return nil, err
	}

	c := closes(prices)
	mid := smaSeries(c, b.Period)
	std := stdevSeries(c, mid, b.Period)

	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = BollingerResult{
			Upper:     mid[i] + b.Multiplier*std[i],
			Middle:    mid[i],
			Lower:     mid[i] - b.Multiplier*std[i],
			Timestamp: prices[i].Time,
		}
	}
	return results, nil
}
