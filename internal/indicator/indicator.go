package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// PriceData는 지표 계산에 필요한 가격 정보를 정의합니다
type PriceData struct {
	Time   time.Time // 타임스탬프
	Open   float64   // 시가
	High   float64   // 고가
	Low    float64   // 저가
	Close  float64   // 종가
	Volume float64   // 거래량
}

// Result는 지표 계산의 기본 결과 인터페이스입니다.
// Line은 이름에 해당하는 출력 값을 반환하며, 계산 불가 구간이나
// 알 수 없는 이름이면 math.NaN()을 반환합니다.
type Result interface {
	GetTimestamp() time.Time
	Line(name string) float64
}

// ValidationError는 입력값 검증 에러를 정의합니다
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("유효하지 않은 %s: %v", e.Field, e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// Indicator는 모든 기술적 지표가 구현해야 하는 인터페이스입니다.
// 모든 구현은 인과적이어야 합니다: i번째 결과는 0..i 구간의 데이터에만 의존합니다.
type Indicator interface {
	// Calculate는 가격 데이터를 기반으로 지표를 계산합니다
	Calculate(data []PriceData) ([]Result, error)

	// GetName은 지표의 이름을 반환합니다
	GetName() string

	// GetConfig는 지표의 현재 설정을 반환합니다
	GetConfig() map[string]interface{}

	// Lines는 지표가 제공하는 출력 라인 이름을 반환합니다 (첫 번째가 기본 라인)
	Lines() []string

	// WarmupPeriod는 첫 유효 값을 얻기 위해 필요한 최소 캔들 수입니다
	WarmupPeriod() int
}

// BaseIndicator는 모든 지표 구현체에서 공통적으로 사용할 수 있는 기본 구현을 제공합니다
type BaseIndicator struct {
	Name   string
	Config map[string]interface{}
}

// GetName은 지표의 이름을 반환합니다
func (b *BaseIndicator) GetName() string {
	return b.Name
}

// GetConfig는 지표의 현재 설정을 반환합니다
func (b *BaseIndicator) GetConfig() map[string]interface{} {
	// 설정의 복사본 반환
	configCopy := make(map[string]interface{})
	for k, v := range b.Config {
		configCopy[k] = v
	}
	return configCopy
}

// ConvertCandlesToPriceData는 캔들 데이터를 지표 계산용 PriceData로 변환합니다
func ConvertCandlesToPriceData(candles domain.CandleList) []PriceData {
	priceData := make([]PriceData, len(candles))
	for i, candle := range candles {
		priceData[i] = PriceData{
			Time:   candle.OpenTime,
			Open:   candle.Open,
			High:   candle.High,
			Low:    candle.Low,
			Close:  candle.Close,
			Volume: candle.Volume,
		}
	}
	return priceData
}

// ExtractLine은 결과 목록에서 특정 라인을 float 배열로 꺼냅니다
func ExtractLine(results []Result, line string) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		if r == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = r.Line(line)
	}
	return out
}

// validatePrices는 공통 입력 검증입니다
func validatePrices(prices []PriceData, need int) error {
	if len(prices) == 0 {
		return &ValidationError{Field: "prices", Err: fmt.Errorf("가격 데이터가 비어있습니다")}
	}
	if len(prices) < need {
		return &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("가격 데이터가 부족합니다. 필요: %d, 현재: %d", need, len(prices)),
		}
	}
	return nil
}

func validatePeriod(field string, period int) error {
	if period <= 0 {
		return &ValidationError{Field: field, Err: fmt.Errorf("%s must be > 0", field)}
	}
	return nil
}
