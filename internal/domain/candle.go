package domain

import (
	"fmt"
	"time"
)

// Candle은 캔들 데이터를 표현합니다
type Candle struct {
	OpenTime  time.Time    `json:"open_time"`  // 캔들 시작 시간
	CloseTime time.Time    `json:"close_time"` // 캔들 종료 시간
	Open      float64      `json:"open"`       // 시가
	High      float64      `json:"high"`       // 고가
	Low       float64      `json:"low"`        // 저가
	Close     float64      `json:"close"`      // 종가
	Volume    float64      `json:"volume"`     // 거래량
	Symbol    string       `json:"symbol"`     // 심볼 (예: BTCUSDT)
	Interval  TimeInterval `json:"interval"`   // 시간 간격 (예: 15m, 1h)
}

// Valid는 low ≤ min(open, close) ≤ max(open, close) ≤ high 조건을 확인합니다
func (c Candle) Valid() bool {
	if c.Open <= 0 || c.Close <= 0 || c.Low <= 0 {
		return false
	}
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && hi <= c.High
}

// CandleList는 캔들 데이터 목록입니다
type CandleList []Candle

// GetLastCandle은 가장 최근 캔들을 반환합니다
func (cl CandleList) GetLastCandle() (Candle, bool) {
	if len(cl) == 0 {
		return Candle{}, false
	}
	return cl[len(cl)-1], true
}

// GetPriceAtIndex는 특정 인덱스의 가격을 반환합니다
func (cl CandleList) GetPriceAtIndex(index int) (float64, bool) {
	if index < 0 || index >= len(cl) {
		return 0, false
	}
	return cl[index].Close, true
}

// GetSubList는 지정된 범위의 부분 리스트를 반환합니다
func (cl CandleList) GetSubList(start, end int) (CandleList, bool) {
	if start < 0 || end > len(cl) || start >= end {
		return nil, false
	}
	return cl[start:end], true
}

// Closes는 종가 배열을 반환합니다
func (cl CandleList) Closes() []float64 {
	out := make([]float64, len(cl))
	for i, c := range cl {
		out[i] = c.Close
	}
	return out
}

// Validate는 OHLC 불변식과 시간 순서를 검증합니다
func (cl CandleList) Validate() error {
	for i, c := range cl {
		if !c.Valid() {
			return fmt.Errorf("캔들 %d의 OHLC 값이 유효하지 않습니다 (O=%.8f H=%.8f L=%.8f C=%.8f)",
				i, c.Open, c.High, c.Low, c.Close)
		}
		if i > 0 && !c.OpenTime.After(cl[i-1].OpenTime) {
			return fmt.Errorf("캔들 데이터가 시간순으로 정렬되어 있지 않습니다 (인덱스 %d: %s <= %s)",
				i, c.OpenTime.Format(time.RFC3339), cl[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// ValidateGaps는 간격이 알려진 경우 누락된 캔들이 없는지 확인합니다
func (cl CandleList) ValidateGaps(interval TimeInterval) error {
	step := TimeIntervalToDuration(interval)
	if step <= 0 {
		return fmt.Errorf("알 수 없는 시간 간격: %s", interval)
	}
	for i := 1; i < len(cl); i++ {
		if gap := cl[i].OpenTime.Sub(cl[i-1].OpenTime); gap != step {
			return fmt.Errorf("캔들 %d에서 간격 불일치: 기대 %s, 실제 %s", i, step, gap)
		}
	}
	return nil
}
