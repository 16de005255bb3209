package indicator

import (
	"fmt"
	"math"
	"time"
)

// SARResult는 Parabolic SAR 지표 계산 결과입니다
type SARResult struct {
	SAR       float64   // SAR 값
	IsLong    bool      // 현재 추세가 상승인지 여부
	Timestamp time.Time // 계산 시점
}

// GetTimestamp는 결과의 타임스탬프를 반환합니다 (Result 인터페이스 구현)
func (r SARResult) GetTimestamp() time.Time {
	return r.Timestamp
}

// Line은 "sar" 값과 "trend"(상승 1, 하락 -1)를 반환합니다
func (r SARResult) Line(name string) float64 {
	switch name {
	case LineSAR, LineValue:
		return r.SAR
	case LineTrend:
		if math.IsNaN(r.SAR) {
			return math.NaN()
		}
		if r.IsLong {
			return 1
		}
		return -1
	}
	return math.NaN()
}

// SAR은 Parabolic SAR 지표를 구현합니다
type SAR struct {
	BaseIndicator
	AccelerationInitial float64 // 초기 가속도
	AccelerationMax     float64 // 최대 가속도
}

// NewSAR는 새로운 Parabolic SAR 지표 인스턴스를 생성합니다
func NewSAR(accelerationInitial, accelerationMax float64) *SAR {
	return &SAR{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("SAR(%.2f,%.2f)", accelerationInitial, accelerationMax),
			Config: map[string]interface{}{
				"AccelerationInitial": accelerationInitial,
				"AccelerationMax":     accelerationMax,
			},
		},
		AccelerationInitial: accelerationInitial,
		AccelerationMax:     accelerationMax,
	}
}

// NewDefaultSAR는 기본 설정으로 SAR 인스턴스를 생성합니다
func NewDefaultSAR() *SAR {
	return NewSAR(0.02, 0.2)
}

func (s *SAR) Lines() []string   { return []string{LineSAR, LineTrend} }
func (s *SAR) WarmupPeriod() int { return 2 }

// Calculate는 Wilder 방식으로 Parabolic SAR을 계산합니다.
// 초기 추세는 첫 두 종가로 정하고, SAR은 직전 두 봉의 저가(상승)/고가(하락)를 넘지 않도록 제한합니다.
func (s *SAR) Calculate(prices []PriceData) ([]Result, error) {
	if err := s.validateInput(prices); err != nil {
		return nil, err
	}

	results := make([]Result, len(prices))
	isLong := prices[1].Close >= prices[0].Close
	af := s.AccelerationInitial
	sar, ep := prices[0].Low, prices[0].High
	if !isLong {
		sar, ep = prices[0].High, prices[0].Low
	}
	// 첫 봉은 추세를 알 수 없으므로 비워둡니다
	results[0] = SARResult{SAR: math.NaN(), Timestamp: prices[0].Time}

	for i := 1; i < len(prices); i++ {
		cur := prices[i]
		next := sar + af*(ep-sar)

		if isLong {
			next = math.Min(next, prices[i-1].Low)
			if i >= 2 {
				next = math.Min(next, prices[i-2].Low)
			}
			if cur.Low < next {
				// 하락 반전: SAR은 직전 극값에서 다시 시작
				isLong, next, ep, af = false, ep, cur.Low, s.AccelerationInitial
			} else if cur.High > ep {
				ep = cur.High
				af = math.Min(af+s.AccelerationInitial, s.AccelerationMax)
			}
		} else {
			next = math.Max(next, prices[i-1].High)
			if i >= 2 {
				next = math.Max(next, prices[i-2].High)
			}
			if cur.High > next {
				isLong, next, ep, af = true, ep, cur.High, s.AccelerationInitial
			} else if cur.Low < ep {
				ep = cur.Low
				af = math.Min(af+s.AccelerationInitial, s.AccelerationMax)
			}
		}

		sar = next
		results[i] = SARResult{SAR: sar, IsLong: isLong, Timestamp: cur.Time}
	}

	return results, nil
}

// validateInput은 입력 데이터가 유효한지 검증합니다
func (s *SAR) validateInput(prices []PriceData) error {
	if s.AccelerationInitial <= 0 || s.AccelerationMax < s.AccelerationInitial {
		return &ValidationError{
			Field: "acceleration",
			Err:   fmt.Errorf("가속도 설정이 잘못되었습니다 (initial=%.3f, max=%.3f)", s.AccelerationInitial, s.AccelerationMax),
		}
	}
	if len(prices) < 2 {
		return &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("SAR 계산에는 최소 2개의 가격 데이터가 필요합니다"),
		}
	}

	return nil
}
