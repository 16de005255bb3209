// Package optimize는 파라미터 공간에서 목적 지표가 가장 좋은 전략 파라미터를 찾습니다.
package optimize

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Status는 시행 결과 상태입니다
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"  // 평가 중 에러
	StatusSkipped Status = "skipped" // 최소 거래 수 미달 또는 취소로 미실행
	StatusPruned  Status = "pruned"  // 부분 평가에서 조기 중단
)

// Result는 한 파라미터 조합의 평가 결과입니다
type Result struct {
	Trial   int             `json:"trial"`
	Params  strategy.Params `json:"params"`
	Metrics metrics.Set     `json:"metrics,omitempty"`
	Score   float64         `json:"score"`
	Rank    int             `json:"rank"` // 1부터 시작, 순위 제외 결과는 0
	Status  Status          `json:"status"`
	Error   string          `json:"error,omitempty"`
}

// Evaluator는 파라미터 조합을 평가하는 목적 함수입니다
type Evaluator interface {
	Evaluate(ctx context.Context, params strategy.Params) (*pipeline.Result, error)
}

// PartialEvaluator는 데이터 앞부분만으로도 평가할 수 있는 Evaluator입니다 (조기 중단용)
type PartialEvaluator interface {
	Evaluator
	EvaluatePartial(ctx context.Context, params strategy.Params, fraction float64) (*pipeline.Result, error)
}

// Objective는 순위를 매길 지표와 최소 거래 수입니다
type Objective struct {
	Metric    metrics.Name
	MinTrades int
}

// Better는 a가 b보다 좋은 점수인지 반환합니다
func (o Objective) Better(a, b float64) bool {
	if metrics.LowerIsBetter(o.Metric) {
		return a < b
	}
	return a > b
}

// evaluate는 시행 하나를 실행해 Result로 변환합니다
func (o Objective) evaluate(ctx context.Context, eval Evaluator, trial int, params strategy.Params) Result {
	r := Result{Trial: trial, Params: params}
	res, err := eval.Evaluate(ctx, params)
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return r
	}
	return o.classify(r, res.Metrics)
}

func (o Objective) classify(r Result, set metrics.Set) Result {
	r.Metrics = set
	r.Score = set.Get(o.Metric)
	minTrades := max(o.MinTrades, 1)
	if trades := int(set.Get(metrics.TotalTrades)); trades < minTrades {
		r.Status = StatusSkipped
		r.Error = fmt.Sprintf("거래 수 부족: %d < %d", trades, minTrades)
		return r
	}
	r.Status = StatusOK
	return r
}

// Rank는 StatusOK 결과를 목적 지표 순으로 정렬해 순위를 매기고, 나머지는 시행 순서대로 뒤에 둡니다.
// 동점이면 먼저 시행된 결과가 앞섭니다.
func Rank(results []Result, objective Objective) []Result {
	ok, rest := lo.FilterReject(results, func(r Result, _ int) bool { return r.Status == StatusOK })

	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].Score != ok[j].Score {
			return objective.Better(ok[i].Score, ok[j].Score)
		}
		return ok[i].Trial < ok[j].Trial
	})
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Trial < rest[j].Trial })

	for i := range ok {
		ok[i].Rank = i + 1
	}
	for i := range rest {
		rest[i].Rank = 0
	}
	return append(ok, rest...)
}

// Best는 순위 1위 결과를 반환합니다
func Best(results []Result) (Result, bool) {
	return lo.Find(results, func(r Result) bool { return r.Rank == 1 })
}

// Summary는 상태별 시행 수입니다
func Summary(results []Result) map[Status]int {
	return lo.CountValuesBy(results, func(r Result) Status { return r.Status })
}
