package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/jobs"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/montecarlo"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/optimize"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/report"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/signal"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/walkforward"
)

// 결과 CSV에 함께 적는 지표
var summaryMetrics = []metrics.Name{
	metrics.NetProfit, metrics.TotalReturnPct, metrics.TotalTrades, metrics.WinRate,
	metrics.ProfitFactor, metrics.SharpeRatio, metrics.MaxDrawdownPct,
}

// run 모드의 periods.csv 구간 수
const reportPeriods = 4

// parseParams는 "k=v,k=v" 형식을 파싱합니다. 숫자, true/false, 그 외 문자열 순으로 해석합니다.
func parseParams(raw string) (strategy.Params, error) {
	params := strategy.Params{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("파라미터 형식이 잘못되었습니다: %q", pair)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			params[key] = b
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func (a *app) runSingle(ctx context.Context) error {
	p, err := a.newPipeline(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	res, err := p.Evaluate(ctx, a.params)
	if err != nil {
		return err
	}
	a.logResult("백테스트 완료", res)

	if err := a.writeFile("trades.csv", func(w io.Writer) error { return report.WriteTrades(w, res.Output.Trades) }); err != nil {
		return err
	}
	if err := a.writeFile("equity.csv", func(w io.Writer) error { return report.WriteEquity(w, res.Output.Equity) }); err != nil {
		return err
	}
	if err := a.writeFile("metrics.csv", func(w io.Writer) error { return report.WriteMetrics(w, res.Metrics) }); err != nil {
		return err
	}

	breakdown := metrics.BreakdownOf(res.Output.Trades)
	first, last := a.candles[0], a.candles[len(a.candles)-1]
	periods := metrics.Periods(res.Output.Trades, first.OpenTime, last.CloseTime, reportPeriods)
	if err := a.writeFile("breakdown.csv", func(w io.Writer) error { return report.WriteBreakdown(w, breakdown) }); err != nil {
		return err
	}
	if err := a.writeFile("periods.csv", func(w io.Writer) error { return report.WritePeriods(w, periods) }); err != nil {
		return err
	}

	return printJSON(struct {
		*pipeline.Result
		Breakdown metrics.Breakdown           `json:"breakdown"`
		Periods   []metrics.PeriodPerformance `json:"periods"`
	}{res, breakdown, periods})
}

func (a *app) runGrid(ctx context.Context) error {
	p, err := a.newPipeline(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	gc := a.cfg.GridConfig()
	gc.Logger = a.logger
	gc.Progress = a.progress("그리드")
	results, err := optimize.Grid(ctx, p, a.preset.Space, gc)
	if err != nil && results == nil {
		return err
	}
	return a.finishOptimization(results, err)
}

func (a *app) runBayes(ctx context.Context) error {
	p, err := a.newPipeline(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	bc := a.cfg.BayesConfig()
	bc.Logger = a.logger
	bc.Progress = a.progress("베이지안")
	results, err := optimize.Bayes(ctx, p, a.preset.Space, bc)
	if err != nil && results == nil {
		return err
	}
	return a.finishOptimization(results, err)
}

// finishOptimization은 결과를 저장하고 최적 파라미터를 출력합니다. 취소된 경우에도 부분 결과는 저장합니다.
func (a *app) finishOptimization(results []optimize.Result, runErr error) error {
	names := lo.Map(a.preset.Space, func(p strategy.Parameter, _ int) string { return p.Name })
	if err := a.writeFile("optimization.csv", func(w io.Writer) error {
		return report.WriteOptimization(w, results, names, summaryMetrics)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	best, ok := optimize.Best(results)
	if !ok {
		return fmt.Errorf("유효한 시행이 없습니다: %v", optimize.Summary(results))
	}
	a.logger.Info("최적 파라미터",
		zap.String("params", best.Params.Key()),
		zap.Float64("score", best.Score),
		zap.Int("trial", best.Trial),
	)
	return printJSON(best)
}

func (a *app) runWalkForward(ctx context.Context) error {
	p, err := a.newPipeline(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	wc := a.cfg.WalkForwardConfig()
	wc.Logger = a.logger
	rep, err := walkforward.Run(ctx, p, a.preset.Space, wc)
	if err != nil {
		return err
	}
	for _, st := range rep.Stability {
		if st.Unstable {
			a.logger.Warn("불안정한 파라미터", zap.String("name", st.Name), zap.Float64("cv", st.CV), zap.Float64("mode_share", st.ModeShare))
		}
	}
	return printJSON(rep)
}

func (a *app) runMonteCarlo(ctx context.Context) error {
	p, err := a.newPipeline(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	res, err := p.Evaluate(ctx, a.params)
	if err != nil {
		return err
	}
	a.logResult("기준 백테스트 완료", res)

	mc := a.cfg.MonteCarloConfig()
	mc.Logger = a.logger
	rep, err := montecarlo.Simulate(ctx, res.Output.Trades, a.cfg.Engine.InitialCapital, mc)
	if err != nil {
		return err
	}
	return printJSON(rep)
}

// backtestInputs는 그리드 조합 중 최대 limit개로 백엔드 입력을 만듭니다
func (a *app) backtestInputs(limit int) ([]backtest.Input, []strategy.Params, error) {
	combos, err := optimize.Combinations(a.preset.Space)
	if err != nil {
		return nil, nil, err
	}
	if limit > 0 && len(combos) > limit {
		combos = combos[:limit]
	}
	inputs := make([]backtest.Input, 0, len(combos))
	for _, params := range combos {
		cfg, err := a.preset.Build(a.params.Merge(params))
		if err != nil {
			return nil, nil, err
		}
		cfg.Sizing = a.cfg.Sizing()
		detector, err := signal.NewDetector(cfg, a.candles)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, backtest.Input{
			Candles:  a.candles,
			Signals:  detector.Detect(),
			Exits:    cfg.Exits,
			Sizing:   cfg.Sizing,
			Settings: a.cfg.Settings(),
		})
	}
	return inputs, combos, nil
}

// runParity는 설정된 기준 백엔드와 나머지 모든 백엔드의 결과를 비교합니다
func (a *app) runParity(ctx context.Context) error {
	canonical, err := a.backends.Get(a.cfg.Engine.Backend)
	if err != nil {
		return err
	}
	inputs, _, err := a.backtestInputs(50)
	if err != nil {
		return err
	}

	var failed []string
	for _, name := range a.backends.Names() {
		if name == canonical.Name() {
			continue
		}
		candidate, err := a.backends.Get(name)
		if err != nil {
			return err
		}
		if err := backtest.VerifyParity(ctx, canonical, candidate, inputs, a.cfg.Engine.ParityTolerance); err != nil {
			a.logger.Error("백엔드 결과 불일치", zap.String("canonical", canonical.Name()), zap.String("candidate", name), zap.Error(err))
			failed = append(failed, name)
			continue
		}
		a.logger.Info("백엔드 결과 일치", zap.String("canonical", canonical.Name()), zap.String("candidate", name), zap.Int("inputs", len(inputs)))
	}
	if len(failed) > 0 {
		return fmt.Errorf("백엔드 결과 불일치: %s", strings.Join(failed, ", "))
	}
	return nil
}

// runBatch는 모든 그리드 조합을 컬럼형 백엔드로 한 번에 실행합니다
func (a *app) runBatch(ctx context.Context) error {
	inputs, combos, err := a.backtestInputs(a.cfg.Optimizer.MaxCombinations)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now()
	engine := backtest.NewColumnarEngine(a.cfg.Limits())
	batch := engine.RunBatch(inputs)
	opts := metrics.OptionsFor(a.candles, domain.TimeInterval(a.cfg.Data.Interval), a.cfg.Engine.RiskFreeRate)

	objective := a.cfg.Objective()
	results := make([]optimize.Result, len(batch))
	for i, br := range batch {
		r := optimize.Result{Trial: i, Params: combos[i]}
		if br.Err != nil {
			r.Status, r.Error = optimize.StatusFailed, br.Err.Error()
		} else {
			r.Metrics = metrics.Calculate(br.Output.Trades, br.Output.Equity, a.cfg.Engine.InitialCapital, opts)
			r.Score = r.Metrics.Get(objective.Metric)
			r.Status = optimize.StatusOK
			if int(r.Metrics.Get(metrics.TotalTrades)) < max(objective.MinTrades, 1) {
				r.Status = optimize.StatusSkipped
			}
		}
		results[i] = r
	}
	a.logger.Info("배치 실행 완료", zap.Int("inputs", len(inputs)), zap.Duration("elapsed", time.Since(started)))
	return a.finishOptimization(optimize.Rank(results, objective), nil)
}

// runJobs는 그리드 조합을 작업 큐에 넣고 디스패처로 모두 처리합니다
func (a *app) runJobs(ctx context.Context) error {
	combos, err := optimize.Combinations(a.preset.Space)
	if err != nil {
		return err
	}
	queue := jobs.NewQueue()
	submitted := lo.Map(combos, func(params strategy.Params, _ int) *jobs.Job {
		return queue.Submit(jobs.Request{
			Preset:   a.preset.Name,
			Params:   a.params.Merge(params),
			Backend:  a.cfg.Engine.Backend,
			Settings: a.cfg.Settings(),
			Query:    a.cfg.Query(),
		})
	})

	// 캔들은 이미 로드되어 있으므로 요청마다 파이프라인만 만듭니다
	pipelines := map[string]*pipeline.Pipeline{}
	for _, name := range lo.Uniq(lo.Map(submitted, func(j *jobs.Job, _ int) string { return j.Request.Backend })) {
		p, err := a.newPipeline(name)
		if err != nil {
			return err
		}
		pipelines[name] = p
	}
	runner := func(ctx context.Context, req jobs.Request) (*pipeline.Result, error) {
		return pipelines[req.Backend].Evaluate(ctx, req.Params)
	}

	dispatcher := jobs.NewDispatcher(queue, runner, a.cfg.Optimizer.Workers, a.logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx, 200*time.Millisecond) }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for queue.Count(jobs.StatusPending)+queue.Count(jobs.StatusRunning) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
		}
	}
	cancel()
	<-done

	a.logger.Info("작업 처리 완료",
		zap.Int("completed", queue.Count(jobs.StatusCompleted)),
		zap.Int("failed", queue.Count(jobs.StatusFailed)),
	)
	results := lo.Map(submitted, func(j *jobs.Job, i int) optimize.Result {
		r := optimize.Result{Trial: i, Params: j.Request.Params, Status: optimize.StatusOK}
		res, err := j.Outcome()
		if err != nil {
			r.Status, r.Error = optimize.StatusFailed, err.Error()
			return r
		}
		r.Metrics = res.Metrics
		r.Score = res.Metrics.Get(a.cfg.Objective().Metric)
		return r
	})
	return a.finishOptimization(optimize.Rank(results, a.cfg.Objective()), nil)
}

func (a *app) logResult(msg string, res *pipeline.Result) {
	a.logger.Info(msg,
		zap.String("strategy", res.Config.Name),
		zap.String("backend", res.Output.Backend),
		zap.Int("trades", len(res.Output.Trades)),
		zap.Float64("net_profit", res.Metrics.Get(metrics.NetProfit)),
		zap.Float64("total_return_pct", res.Metrics.Get(metrics.TotalReturnPct)),
		zap.Float64("max_drawdown_pct", res.Metrics.Get(metrics.MaxDrawdownPct)),
		zap.Float64("sharpe_ratio", res.Metrics.Get(metrics.SharpeRatio)),
	)
}

// progress는 10% 단위로 진행률을 기록하는 콜백입니다
func (a *app) progress(label string) func(done, total int) {
	return func(done, total int) {
		if total == 0 {
			return
		}
		step := max(total/10, 1)
		if done%step == 0 || done == total {
			a.logger.Info(label+" 진행", zap.Int("done", done), zap.Int("total", total))
		}
	}
}

// writeFile은 outDir이 지정된 경우에만 파일을 씁니다
func (a *app) writeFile(name string, write func(io.Writer) error) error {
	if a.outDir == "" {
		return nil
	}
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return fmt.Errorf("출력 디렉터리 생성 실패: %w", err)
	}
	path := filepath.Join(a.outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s 생성 실패: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	a.logger.Info("결과 저장", zap.String("path", path))
	return f.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
