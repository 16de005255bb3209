package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/config"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/logging"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/marketdata"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/presets"
)

// app은 실행 모드가 공유하는 의존성입니다
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	backends *backtest.Registry
	preset   strategy.Preset
	params   strategy.Params
	candles  domain.CandleList
	outDir   string
}

func main() {
	// 명령줄 플래그 정의
	mode := flag.String("mode", "run", "실행 모드: run, grid, bayes, walkforward, montecarlo, parity, batch, jobs")
	presetName := flag.String("strategy", "ema_cross", "전략 프리셋 이름")
	paramsFlag := flag.String("params", "", "프리셋 파라미터 덮어쓰기 (예: fast=9,slow=21)")
	envFile := flag.String("env", ".env", "환경변수 파일 경로 (없으면 무시)")
	outDir := flag.String("out", "", "CSV 결과를 저장할 디렉터리 (비우면 저장 안 함)")

	// 플래그 파싱
	flag.Parse()

	// 시그널을 받으면 컨텍스트 취소
	ctx, stop := osSignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 설정 로드
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "로거 생성 실패: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger, *mode, *presetName, *paramsFlag, *outDir); err != nil {
		logger.Error("실행 실패", zap.String("mode", *mode), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, mode, presetName, paramsFlag, outDir string) error {
	// 전략 레지스트리 생성
	registry, err := presets.NewRegistry()
	if err != nil {
		return fmt.Errorf("전략 레지스트리 생성 실패: %w", err)
	}
	preset, err := registry.Get(presetName)
	if err != nil {
		return err
	}
	params, err := parseParams(paramsFlag)
	if err != nil {
		return err
	}

	// 데이터 로드
	candles, err := loadCandles(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("캔들 로드 완료",
		zap.String("symbol", cfg.Data.Symbol),
		zap.String("interval", cfg.Data.Interval),
		zap.Int("count", len(candles)),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		backends: backtest.DefaultRegistry(cfg.Limits()),
		preset:   preset,
		params:   params,
		candles:  candles,
		outDir:   outDir,
	}

	switch mode {
	case "run":
		return a.runSingle(ctx)
	case "grid":
		return a.runGrid(ctx)
	case "bayes":
		return a.runBayes(ctx)
	case "walkforward":
		return a.runWalkForward(ctx)
	case "montecarlo":
		return a.runMonteCarlo(ctx)
	case "parity":
		return a.runParity(ctx)
	case "batch":
		return a.runBatch(ctx)
	case "jobs":
		return a.runJobs(ctx)
	}
	return fmt.Errorf("알 수 없는 모드: %s", mode)
}

// loadCandles는 설정된 소스에서 캔들을 읽고 검증합니다
func loadCandles(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.CandleList, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Data.Timeout)
	defer cancel()

	q := cfg.Query()
	switch cfg.Data.Source {
	case config.SourceClickHouse:
		source, err := marketdata.NewClickHouseSource(ctx, cfg.ClickHouse(), logger)
		if err != nil {
			return nil, err
		}
		defer source.Close()
		return marketdata.Load(ctx, source, q)
	case config.SourceSynthetic:
		source := marketdata.SyntheticSource{Seed: cfg.Data.SyntheticSeed}
		if q.Start.IsZero() {
			q.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		if q.End.IsZero() {
			q.End = q.Start.Add(time.Duration(cfg.Data.SyntheticBars) * domain.TimeIntervalToDuration(q.Interval))
		}
		return marketdata.Load(ctx, source, q)
	default:
		return marketdata.Load(ctx, marketdata.NewCSVSource(cfg.Data.CSVPath), q)
	}
}

// newPipeline은 설정된 백엔드와 실행 설정으로 파이프라인을 생성합니다
func (a *app) newPipeline(backendName string) (*pipeline.Pipeline, error) {
	backend, err := a.backends.Get(backendName)
	if err != nil {
		return nil, err
	}
	return pipeline.New(a.candles,
		pipeline.WithPreset(a.preset),
		pipeline.WithBackend(backend),
		pipeline.WithSettings(a.cfg.Settings()),
		pipeline.WithSizing(a.cfg.Sizing()),
		pipeline.WithRiskFreeRate(a.cfg.Engine.RiskFreeRate),
		pipeline.WithInterval(domain.TimeInterval(a.cfg.Data.Interval)),
		pipeline.WithLogger(a.logger),
	)
}
