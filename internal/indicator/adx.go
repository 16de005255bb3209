package indicator

import (
	"fmt"
	"math"
	"time"
)

// ADXResult는 DMI/ADX 계산 결과입니다
type ADXResult struct {
	ADX       float64
	PlusDI    float64
	MinusDI   float64
	Timestamp time.Time
}

func (r ADXResult) GetTimestamp() time.Time { return r.Timestamp }

func (r ADXResult) Line(name string) float64 {
	switch name {
	case LineADX, LineValue:
		return r.ADX
	case LinePlusDI:
		return r.PlusDI
	case LineMinusDI:
		return r.MinusDI
	}
	return math.NaN()
}

// ADX는 Wilder 방식의 Average Directional Index입니다
type ADX struct {
	BaseIndicator
	Period int
}

// NewADX는 새로운 ADX 인스턴스를 생성합니다
func NewADX(period int) *ADX {
	return &ADX{
		BaseIndicator: BaseIndicator{
			Name:   fmt.Sprintf("ADX(%d)", period),
			Config: map[string]interface{}{"Period": period},
		},
		Period: period,
	}
}

func (a *ADX) Lines() []string { return []string{LineADX, LinePlusDI, LineMinusDI} }

// WarmupPeriod: DI는 Period+1개, ADX는 추가로 Period-1개의 캔들이 필요합니다
func (a *ADX) WarmupPeriod() int { return 2 * a.Period }

// Calculate는 +DI, -DI, ADX를 계산합니다
func (a *ADX) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", a.Period); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, a.WarmupPeriod()); err != nil {
		return nil, err
	}

	n := len(prices)
	tr := nanSlice(n)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	fullTR := trueRange(prices)
	for i := 1; i < n; i++ {
		up := prices[i].High - prices[i-1].High
		down := prices[i-1].Low - prices[i].Low
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = fullTR[i]
	}

	trSmooth := rmaSeries(tr, a.Period)
	plusSmooth := rmaSeries(plusDM, a.Period)
	minusSmooth := rmaSeries(minusDM, a.Period)

	plusDI := nanSlice(n)
	minusDI := nanSlice(n)
	dx := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(trSmooth[i]) {
			continue
		}
		if trSmooth[i] == 0 {
			plusDI[i], minusDI[i] = 0, 0
		} else {
			plusDI[i] = 100 * plusSmooth[i] / trSmooth[i]
			minusDI[i] = 100 * minusSmooth[i] / trSmooth[i]
		}
		sum := plusDI[i] + minusDI[i]
		if sum == 0 {
			sum = 1
		}
		dx[i] = math.Abs(plusDI[i]-minusDI[i]) / sum
	}

	adx := rmaSeries(dx, a.Period)

	results := make([]Result, n)
	for i := range prices {
		results[i] = ADXResult{
			ADX:       100 * adx[i],
			PlusDI:    plusDI[i],
			MinusDI:   minusDI[i],
			Timestamp: prices[i].Time,
		}
	}
	return results, nil
}
