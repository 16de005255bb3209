package metrics

import (
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
)

// DrawdownStats는 자산 곡선의 낙폭 요약입니다
type DrawdownStats struct {
	Max             float64       // 최대 낙폭 (호가 통화)
	MaxPct          float64       // 최대 낙폭 (%)
	AvgPct          float64       // 낙폭 구간 봉들의 평균 낙폭 (%)
	LongestBars     int           // 고점 회복까지 가장 오래 걸린 봉 수 (미회복 구간 포함)
	LongestDuration time.Duration // LongestBars 구간의 시간
}

// Drawdowns는 자산 이력에서 낙폭 통계를 계산합니다
func Drawdowns(equity []backtest.EquityPoint) DrawdownStats {
	var st DrawdownStats
	if len(equity) == 0 {
		return st
	}

	highWaterMark := equity[0].Equity
	inDrawdown := false
	startIdx := 0
	total, count := 0.0, 0

	closeSpell := func(endIdx int) {
		if bars := endIdx - startIdx; bars > st.LongestBars {
			st.LongestBars = bars
			st.LongestDuration = equity[endIdx].Timestamp.Sub(equity[startIdx].Timestamp)
		}
	}

	for i, point := range equity {
		// 신규 최고점 갱신 시 낙폭 종료
		if point.Equity >= highWaterMark {
			highWaterMark = point.Equity
			if inDrawdown {
				inDrawdown = false
				closeSpell(i)
			}
			continue
		}

		dd := highWaterMark - point.Equity
		if dd > st.Max {
			st.Max = dd
		}
		if highWaterMark > 0 {
			pct := dd / highWaterMark * 100
			if pct > st.MaxPct {
				st.MaxPct = pct
			}
			total += pct
			count++
		}
		if !inDrawdown {
			inDrawdown = true
			startIdx = i - 1
		}
	}
	if inDrawdown {
		closeSpell(len(equity) - 1)
	}
	if count > 0 {
		st.AvgPct = total / float64(count)
	}
	return st
}
