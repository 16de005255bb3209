package optimize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/workers"
)

// DefaultMaxCombinations는 그리드 조합 수 기본 상한입니다
const DefaultMaxCombinations = 100_000

// GridConfig는 그리드 탐색 설정입니다
type GridConfig struct {
	Objective       Objective
	Parallelism     int // 0이면 CPU 수
	MaxCombinations int
	Progress        func(done, total int)
	Logger          *zap.Logger
}

// Combinations는 공간의 데카르트 곱을 선언 순서대로 생성합니다 (마지막 파라미터가 가장 빠르게 변함)
func Combinations(space strategy.Space) ([]strategy.Params, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	combos := []strategy.Params{{}}
	for _, p := range space {
		values, err := p.Values()
		if err != nil {
			return nil, err
		}
		combos = lo.FlatMap(combos, func(base strategy.Params, _ int) []strategy.Params {
			return lo.Map(values, func(v any, _ int) strategy.Params {
				next := base.Clone()
				next[p.Name] = v
				return next
			})
		})
	}
	return combos, nil
}

// Grid는 모든 조합을 병렬로 평가하고 순위를 매긴 결과를 반환합니다.
// 개별 시행의 실패는 결과에 기록되고 탐색을 중단하지 않습니다.
// 취소되면 실행되지 않은 조합을 StatusSkipped로 포함한 결과와 ctx 에러를 함께 반환합니다.
func Grid(ctx context.Context, eval Evaluator, space strategy.Space, cfg GridConfig) ([]Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.MaxCombinations
	if limit <= 0 {
		limit = DefaultMaxCombinations
	}

	size, err := space.Size()
	if err != nil {
		return nil, err
	}
	if size > limit {
		return nil, fmt.Errorf("그리드 조합 수 %d가 상한 %d를 초과합니다", size, limit)
	}
	combos, err := Combinations(space)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	logger.Info("그리드 탐색 시작",
		zap.Int("combinations", len(combos)),
		zap.String("objective", string(cfg.Objective.Metric)),
		zap.Int("parallelism", workers.Limit(cfg.Parallelism)),
	)

	progress := workers.NewProgress(len(combos), cfg.Progress)
	results, errs, runErr := workers.Map(ctx, combos, cfg.Parallelism, progress,
		func(ctx context.Context, i int, params strategy.Params) (Result, error) {
			r := cfg.Objective.evaluate(ctx, eval, i, params)
			if r.Status == StatusFailed {
				logger.Debug("시행 실패", zap.Int("trial", i), zap.String("params", params.Key()), zap.String("error", r.Error))
			}
			return r, nil
		})

	for i, err := range errs {
		if err != nil {
			results[i] = Result{Trial: i, Params: combos[i], Status: statusFor(err), Error: err.Error()}
		}
	}

	ranked := Rank(results, cfg.Objective)
	summary := Summary(ranked)
	logger.Info("그리드 탐색 완료",
		zap.Int("ok", summary[StatusOK]),
		zap.Int("failed", summary[StatusFailed]),
		zap.Int("skipped", summary[StatusSkipped]),
		zap.Duration("elapsed", time.Since(started)),
	)
	return ranked, runErr
}

// statusFor는 workers.Map 에러를 상태로 변환합니다
func statusFor(err error) Status {
	if errors.Is(err, workers.ErrSkipped) {
		return StatusSkipped
	}
	return StatusFailed
}
