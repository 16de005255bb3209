package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// SyntheticSource는 시드 고정 랜덤 워크 캔들을 생성합니다. 같은 설정이면 항상 같은 시리즈입니다.
type SyntheticSource struct {
	Seed       uint64
	StartPrice float64 // 기본 100
	Volatility float64 // 봉당 수익률 표준편차 (기본 0.01)
	Drift      float64 // 봉당 평균 수익률
}

// Candles는 Query 구간의 캔들을 생성합니다. Start와 End가 모두 필요합니다.
func (s SyntheticSource) Candles(ctx context.Context, q Query) (domain.CandleList, error) {
	step := domain.TimeIntervalToDuration(q.Interval)
	if step <= 0 {
		return nil, fmt.Errorf("알 수 없는 시간 간격: %s", q.Interval)
	}
	if q.Start.IsZero() || !q.End.After(q.Start) {
		return nil, fmt.Errorf("합성 데이터는 유효한 Start/End 구간이 필요합니다")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := int(q.End.Sub(q.Start) / step)
	if n == 0 {
		return nil, ErrNoData
	}
	candles := s.Generate(n, q.Start, q.Interval)
	for i := range candles {
		candles[i].Symbol = q.Symbol
	}
	return candles, nil
}

// Generate는 start부터 n개의 캔들을 생성합니다
func (s SyntheticSource) Generate(n int, start time.Time, interval domain.TimeInterval) domain.CandleList {
	price := s.StartPrice
	if price <= 0 {
		price = 100
	}
	vol := s.Volatility
	if vol <= 0 {
		vol = 0.01
	}
	step := domain.TimeIntervalToDuration(interval)
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	out := make(domain.CandleList, n)
	for i := range out {
		open := price
		ret := s.Drift + vol*rng.NormFloat64()
		closeP := math.Max(open*math.Exp(ret), 1e-8)
		wick := vol * math.Abs(rng.NormFloat64()) / 2
		high := math.Max(open, closeP) * (1 + wick)
		low := math.Min(open, closeP) * (1 - math.Min(wick, 0.5))

		openTime := start.Add(time.Duration(i) * step)
		out[i] = domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(step - time.Millisecond),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    100 + 50*rng.Float64(),
			Interval:  interval,
		}
		price = closeP
	}
	return out
}

// RandomWalk는 테스트와 데모용 1시간 캔들 n개를 생성합니다
func RandomWalk(seed uint64, n int) domain.CandleList {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return SyntheticSource{Seed: seed}.Generate(n, start, domain.Interval1h)
}
