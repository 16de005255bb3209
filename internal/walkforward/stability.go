package walkforward

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Stability는 구간별 최적 파라미터 한 개의 변동성입니다.
// 숫자형은 평균/표준편차/변동계수, 범주형과 불리언은 최빈값과 그 비율을 사용합니다.
type Stability struct {
	Name      string  `json:"name"`
	Mean      float64 `json:"mean,omitempty"`
	StdDev    float64 `json:"std_dev,omitempty"`
	CV        float64 `json:"cv,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	ModeShare float64 `json:"mode_share,omitempty"`
	Unstable  bool    `json:"unstable"`
}

// ParameterStability는 공간의 각 파라미터에 대해 구간별 선택값의 안정성을 계산합니다.
// 숫자형은 CV > threshold, 범주형은 최빈값 비율 < 1 - threshold 이면 불안정입니다.
func ParameterStability(space strategy.Space, chosen []strategy.Params, threshold float64) []Stability {
	out := make([]Stability, 0, len(space))
	for _, p := range space {
		st := Stability{Name: p.Name}
		switch p.Kind {
		case strategy.KindInt, strategy.KindFloat:
			values := lo.FilterMap(chosen, func(params strategy.Params, _ int) (float64, bool) {
				v, ok := params[p.Name].(float64)
				return v, ok
			})
			if len(values) == 0 {
				continue
			}
			st.Mean, st.StdDev = meanStd(values)
			if math.Abs(st.Mean) > 1e-12 {
				st.CV = st.StdDev / math.Abs(st.Mean)
			}
			st.Unstable = st.CV > threshold
		default:
			labels := lo.FilterMap(chosen, func(params strategy.Params, _ int) (string, bool) {
				v, ok := params[p.Name]
				return fmt.Sprint(v), ok
			})
			if len(labels) == 0 {
				continue
			}
			counts := lo.CountValues(labels)
			// 동률이면 먼저 등장한 값
			for _, label := range labels {
				if counts[label] > counts[st.Mode] || st.Mode == "" {
					st.Mode = label
				}
			}
			st.ModeShare = float64(counts[st.Mode]) / float64(len(labels))
			st.Unstable = st.ModeShare < 1-threshold
		}
		out = append(out, st)
	}
	return out
}

// meanStd는 평균과 모표준편차입니다
func meanStd(values []float64) (float64, float64) {
	mean := lo.Sum(values) / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}
