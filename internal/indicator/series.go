package indicator

import "math"

// 아래 함수들은 모두 float 배열 위에서 동작하는 인과적 이동 평균입니다.
// 선행 NaN 구간은 건너뛰고 첫 유효 값부터 계산을 시작합니다.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

// smaSeries는 단순 이동평균입니다
func smaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	start := firstValid(values)
	for i := start + period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// emaSeries는 첫 period 구간의 SMA로 시드한 지수이동평균입니다
func emaSeries(values []float64, period int) []float64 {
	return smoothed(values, period, 2.0/float64(period+1))
}

// rmaSeries는 Wilder 방식(alpha = 1/period) 이동평균입니다
func rmaSeries(values []float64, period int) []float64 {
	return smoothed(values, period, 1.0/float64(period))
}

func smoothed(values []float64, period int, alpha float64) []float64 {
	out := nanSlice(len(values))
	start := firstValid(values)
	seed := start + period - 1
	if seed >= len(values) {
		return out
	}

	sum := 0.0
	for j := start; j <= seed; j++ {
		sum += values[j]
	}
	prev := sum / float64(period)
	out[seed] = prev

	for i := seed + 1; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// stdevSeries는 모표준편차(population)입니다
func stdevSeries(values, mean []float64, period int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		if math.IsNaN(mean[i]) {
			continue
		}
		ss := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

func trueRange(prices []PriceData) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		if i == 0 {
			out[i] = p.High - p.Low
			continue
		}
		prevClose := prices[i-1].Close
		out[i] = math.Max(p.High-p.Low, math.Max(math.Abs(p.High-prevClose), math.Abs(p.Low-prevClose)))
	}
	return out
}

func closes(prices []PriceData) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.Close
	}
	return out
}
