package indicator

import (
	"fmt"
	"time"
)

// ATR은 Wilder 평활 Average True Range입니다
type ATR struct {
	BaseIndicator
	Period int
}

// NewATR은 새로운 ATR 인스턴스를 생성합니다
func NewATR(period int) *ATR {
	return &ATR{
		BaseIndicator: BaseIndicator{
			Name:   fmt.Sprintf("ATR(%d)", period),
			Config: map[string]interface{}{"Period": period},
		},
		Period: period,
	}
}

func (a *ATR) Lines() []string   { return []string{LineValue} }
func (a *ATR) WarmupPeriod() int { return a.Period }

// Calculate는 ATR을 계산합니다. 첫 캔들의 True Range는 고가-저가입니다.
func (a *ATR) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", a.Period); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, a.Period); err != nil {
		return nil, err
	}

	values := rmaSeries(trueRange(prices), a.Period)
	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = atrResult(values[i], prices[i].Time)
	}
	return results, nil
}

func atrResult(v float64, ts time.Time) Result {
	return EMAResult{Value: v, Timestamp: ts}
}
