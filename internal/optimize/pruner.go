package optimize

import "sort"

// MedianPruner는 부분 평가 점수가 이전 시행들의 부분 점수 중앙값보다 나쁘면 중단합니다
type MedianPruner struct {
	Fraction float64 // 부분 평가에 사용할 데이터 비율
	Warmup   int     // 비교에 필요한 최소 이전 부분 점수 수
}

// ShouldPrune은 partial이 prior의 중앙값보다 나쁜지 판정합니다
func (m MedianPruner) ShouldPrune(partial float64, prior []float64, objective Objective) bool {
	if len(prior) < max(m.Warmup, 1) {
		return false
	}
	return objective.Better(median(prior), partial)
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
