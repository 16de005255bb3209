package indicator

import (
	"fmt"
	"math"
	"time"
)

// StochasticResult는 스토캐스틱 %K, %D 값입니다
type StochasticResult struct {
	K         float64
	D         float64
	Timestamp time.Time
}

func (r StochasticResult) GetTimestamp() time.Time { return r.Timestamp }

func (r StochasticResult) Line(name string) float64 {
	switch name {
	case LineK, LineValue:
		return r.K
	case LineD:
		return r.D
	}
	return math.NaN()
}

// Stochastic은 스토캐스틱 오실레이터입니다
type Stochastic struct {
	BaseIndicator
	KPeriod int // %K 조회 기간
	Smooth  int // %K 평활 기간
	DPeriod int // %D 기간
}

// NewStochastic은 새로운 스토캐스틱 인스턴스를 생성합니다
func NewStochastic(kPeriod, smooth, dPeriod int) *Stochastic {
	return &Stochastic{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("STOCH(%d,%d,%d)", kPeriod, smooth, dPeriod),
			Config: map[string]interface{}{
				"KPeriod": kPeriod,
				"Smooth":  smooth,
				"DPeriod": dPeriod,
			},
		},
		KPeriod: kPeriod,
		Smooth:  smooth,
		DPeriod: dPeriod,
	}
}

func (s *Stochastic) Lines() []string { return []string{LineK, LineD} }

func (s *Stochastic) WarmupPeriod() int { return s.KPeriod + s.Smooth + s.DPeriod - 2 }

// Calculate는 %K, %D를 계산합니다.
// 조회 구간의 고가와 저가가 같으면 원시 %K는 50으로 둡니다.
func (s *Stochastic) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("k", s.KPeriod); err != nil {
		return nil, err
	}
	if err := validatePeriod("smooth", s.Smooth); err != nil {
		return nil, err
	}
	if err := validatePeriod("d", s.DPeriod); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, s.WarmupPeriod()); err != nil {
		return nil, err
	}

	raw := nanSlice(len(prices))
	for i := s.KPeriod - 1; i < len(prices); i++ {
		hh, ll := math.Inf(-1), math.Inf(1)
		for j := i - s.KPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, prices[j].High)
			ll = math.Min(ll, prices[j].Low)
		}
		if hh == ll {
			raw[i] = 50
			continue
		}
		raw[i] = 100 * (prices[i].Close - ll) / (hh - ll)
	}

	k := smaSeries(raw, s.Smooth)
	d := smaSeries(k, s.DPeriod)

	results := make([]Result, len(prices))
	for i := range prices {
		results[i] = StochasticResult{K: k[i], D: d[i], Timestamp: prices[i].Time}
	}
	return results, nil
}
