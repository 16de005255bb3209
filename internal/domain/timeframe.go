package domain

import (
	"fmt"
	"time"
)

// Resample은 하위 시간봉 캔들을 상위 시간봉으로 집계합니다.
// 각 버킷은 target 간격으로 정렬된 OpenTime 기준으로 묶이며,
// 마지막 버킷이 완성되지 않았더라도 그대로 포함됩니다.
func Resample(candles CandleList, target TimeInterval) (CandleList, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("캔들 데이터가 비어있습니다")
	}

	step := TimeIntervalToDuration(target)
	if step <= 0 {
		return nil, fmt.Errorf("알 수 없는 시간 간격: %s", target)
	}

	// 시간 정렬 확인 (첫 캔들이 가장 오래된 데이터)
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return nil, fmt.Errorf("캔들 데이터가 시간순으로 정렬되어 있지 않습니다")
		}
	}

	out := make(CandleList, 0, len(candles))
	var cur *Candle
	for _, c := range candles {
		bucket := c.OpenTime.UTC().Truncate(step)
		if cur == nil || !cur.OpenTime.Equal(bucket) {
			if cur != nil {
				out = append(out, *cur)
			}
			// 버킷 시작: 시가는 첫 캔들의 시가
			cur = &Candle{
				Symbol:    c.Symbol,
				Interval:  target,
				OpenTime:  bucket,
				CloseTime: bucket.Add(step - time.Millisecond),
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    0,
			}
		}

		// 최고가, 최저가, 거래량 계산
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	out = append(out, *cur)

	return out, nil
}
