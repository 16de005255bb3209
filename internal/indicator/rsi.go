package indicator

import (
	"fmt"
	"math"
	"time"
)

// RSIResult는 RSI 지표 계산 결과
type RSIResult struct {
	Value     float64   // RSI 값 (0–100, 계산 불가 구간은 math.NaN())
	AvgGain   float64   // 평균 이득
	AvgLoss   float64   // 평균 손실
	Timestamp time.Time // 계산 시점
}

// GetTimestamp는 결과의 타임스탬프를 반환
func (r RSIResult) GetTimestamp() time.Time { return r.Timestamp }

// Line은 "value" 라인을 반환
func (r RSIResult) Line(name string) float64 {
	if name == LineValue {
		return r.Value
	}
	return math.NaN()
}

// RSI는 Relative Strength Index 지표를 구현
type RSI struct {
	BaseIndicator
	Period int // RSI 계산 기간
}

// NewRSI는 새로운 RSI 지표 인스턴스를 생성
func NewRSI(period int) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{
			Name: fmt.Sprintf("RSI(%d)", period),
			Config: map[string]interface{}{
				"Period": period,
			},
		},
		Period: period,
	}
}

func (r *RSI) Lines() []string { return []string{LineValue} }

// WarmupPeriod는 Period개의 변동을 얻기 위해 Period+1개 캔들이 필요합니다
func (r *RSI) WarmupPeriod() int { return r.Period + 1 }

// Calculate는 주어진 가격 데이터에 대해 RSI를 계산
func (r *RSI) Calculate(prices []PriceData) ([]Result, error) {
	if err := validatePeriod("period", r.Period); err != nil {
		return nil, err
	}
	if err := validatePrices(prices, r.Period+1); err != nil {
		return nil, err
	}

	// 변동을 상승분/하락분으로 나눠 각각 Wilder 평활 (첫 값은 p개 변동의 SMA)
	gains, losses := nanSlice(len(prices)), nanSlice(len(prices))
	for i := 1; i < len(prices); i++ {
		delta := prices[i].Close - prices[i-1].Close
		gains[i], losses[i] = math.Max(delta, 0), math.Max(-delta, 0)
	}
	avgGain, avgLoss := rmaSeries(gains, r.Period), rmaSeries(losses, r.Period)

	results := make([]Result, len(prices))
	for i := range prices {
		if math.IsNaN(avgGain[i]) {
			results[i] = RSIResult{Value: math.NaN(), AvgGain: math.NaN(), AvgLoss: math.NaN(), Timestamp: prices[i].Time}
			continue
		}
		results[i] = toRSI(avgGain[i], avgLoss[i], prices[i].Time)
	}
	return results, nil
}

func toRSI(avgGain, avgLoss float64, ts time.Time) RSIResult {
	var rsi float64
	switch {
	case avgGain == 0 && avgLoss == 0:
		rsi = 50 // 완전 횡보
	case avgLoss == 0:
		rsi = 100
	default:
		rs := avgGain / avgLoss
		rsi = 100 - 100/(1+rs)
	}
	return RSIResult{Value: rsi, AvgGain: avgGain, AvgLoss: avgLoss, Timestamp: ts}
}
