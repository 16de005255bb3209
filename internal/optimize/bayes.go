package optimize

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/workers"
)

// BayesConfig는 TPE 탐색 설정입니다
type BayesConfig struct {
	Objective     Objective
	Trials        int     // 전체 시행 수
	StartupTrials int     // 균등 샘플링으로 시작하는 시행 수
	Gamma         float64 // 좋은 시행 비율 (기본 0.25)
	Candidates    int     // 제안마다 비교하는 후보 수 (기본 24)
	BatchSize     int     // 한 번에 제안해 병렬 평가하는 시행 수 (기본 Parallelism)
	Seed          uint64
	Parallelism   int
	Pruner        *MedianPruner // nil이면 조기 중단 없음
	Progress      func(done, total int)
	Logger        *zap.Logger
}

func (c BayesConfig) withDefaults() BayesConfig {
	if c.Gamma <= 0 || c.Gamma >= 1 {
		c.Gamma = 0.25
	}
	if c.Candidates <= 0 {
		c.Candidates = 24
	}
	if c.StartupTrials <= 0 {
		c.StartupTrials = min(10, c.Trials)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = workers.Limit(c.Parallelism)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Bayes는 TPE로 순차 탐색합니다.
//
// 제안은 BatchSize 단위로 이전 배치까지의 기록만 사용해 생성하므로, 같은 Seed와
// BatchSize라면 병렬 실행 순서와 무관하게 같은 결과가 나옵니다.
func Bayes(ctx context.Context, eval Evaluator, space strategy.Space, cfg BayesConfig) ([]Result, error) {
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("시행 수는 0보다 커야 합니다: %d", cfg.Trials)
	}
	if len(space) == 0 {
		return nil, fmt.Errorf("탐색 공간이 비어있습니다")
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	logger := cfg.Logger

	partialEval, canPrune := eval.(PartialEvaluator)
	pruning := cfg.Pruner != nil && canPrune

	sampler := newTPE(space, cfg.Gamma, cfg.Candidates, cfg.Seed)
	progress := workers.NewProgress(cfg.Trials, cfg.Progress)
	history := make([]Result, 0, cfg.Trials)
	var partialScores []float64

	started := time.Now()
	logger.Info("베이지안 탐색 시작",
		zap.Int("trials", cfg.Trials),
		zap.Int("startup", cfg.StartupTrials),
		zap.Int("batch", cfg.BatchSize),
		zap.Uint64("seed", cfg.Seed),
		zap.Bool("pruning", pruning),
	)

	var runErr error
	for len(history) < cfg.Trials {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		// 배치 제안 (이전 배치까지의 기록만 사용)
		observed := okResults(history)
		batch := make([]strategy.Params, min(cfg.BatchSize, cfg.Trials-len(history)))
		for k := range batch {
			if len(history)+k < cfg.StartupTrials {
				batch[k] = sampler.random()
			} else {
				batch[k] = sampler.suggest(observed, cfg.Objective.Better)
			}
		}
		priorPartial := append([]float64(nil), partialScores...)
		base := len(history)

		type trialOutcome struct {
			result  Result
			partial *float64
		}
		outcomes, errs, err := workers.Map(ctx, batch, cfg.Parallelism, progress,
			func(ctx context.Context, k int, params strategy.Params) (trialOutcome, error) {
				trial := base + k
				var partial *float64
				if pruning {
					res, err := partialEval.EvaluatePartial(ctx, params, cfg.Pruner.Fraction)
					if err == nil {
						score := res.Metrics.Get(cfg.Objective.Metric)
						partial = &score
						if cfg.Pruner.ShouldPrune(score, priorPartial, cfg.Objective) {
							r := cfg.Objective.classify(Result{Trial: trial, Params: params}, res.Metrics)
							r.Status = StatusPruned
							r.Error = fmt.Sprintf("부분 점수 %.6g가 중앙값보다 나쁩니다", score)
							return trialOutcome{result: r, partial: partial}, nil
						}
					}
				}
				r := cfg.Objective.evaluate(ctx, eval, trial, params)
				if r.Status == StatusFailed {
					logger.Debug("시행 실패", zap.Int("trial", trial), zap.String("params", params.Key()), zap.String("error", r.Error))
				}
				return trialOutcome{result: r, partial: partial}, nil
			})

		for k := range batch {
			if errs[k] != nil {
				history = append(history, Result{Trial: base + k, Params: batch[k], Status: statusFor(errs[k]), Error: errs[k].Error()})
				continue
			}
			history = append(history, outcomes[k].result)
			if outcomes[k].partial != nil {
				partialScores = append(partialScores, *outcomes[k].partial)
			}
		}
		if err != nil {
			runErr = err
			break
		}

		if best, ok := Best(Rank(append([]Result(nil), history...), cfg.Objective)); ok {
			logger.Info("베이지안 탐색 진행",
				zap.Int("done", len(history)),
				zap.Int("total", cfg.Trials),
				zap.Float64("best_score", best.Score),
			)
		}
	}

	ranked := Rank(history, cfg.Objective)
	summary := Summary(ranked)
	logger.Info("베이지안 탐색 완료",
		zap.Int("ok", summary[StatusOK]),
		zap.Int("pruned", summary[StatusPruned]),
		zap.Int("failed", summary[StatusFailed]),
		zap.Duration("elapsed", time.Since(started)),
	)
	return ranked, runErr
}

func okResults(history []Result) []Result {
	return lo.Filter(history, func(r Result, _ int) bool { return r.Status == StatusOK })
}
