package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/marketdata"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/metrics"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/montecarlo"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/optimize"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/walkforward"
)

// 데이터 소스 종류
const (
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
	SourceSynthetic  = "synthetic"
)

type Config struct {
	// 애플리케이션 설정
	App struct {
		LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
		LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	}

	// 실행 엔진 설정
	Engine struct {
		Backend         string  `envconfig:"BACKEND" default:"reference@v1"`
		InitialCapital  float64 `envconfig:"INITIAL_CAPITAL" default:"10000"`
		Leverage        float64 `envconfig:"LEVERAGE" default:"1"`
		CommissionRate  float64 `envconfig:"COMMISSION_RATE" default:"0.0006"`
		SlippageRate    float64 `envconfig:"SLIPPAGE_RATE" default:"0"`
		FillMode        string  `envconfig:"FILL_MODE" default:"close"`
		TriggerMode     string  `envconfig:"TRIGGER_MODE" default:"close"`
		StopFirst       bool    `envconfig:"STOP_FIRST" default:"false"`
		SizingMode      string  `envconfig:"SIZING_MODE" default:"all_in"`
		SizingValue     float64 `envconfig:"SIZING_VALUE" default:"0"`
		QtyStep         float64 `envconfig:"QTY_STEP" default:"0"`
		MaxLeverage     float64 `envconfig:"MAX_LEVERAGE" default:"125"`
		MaxCommission   float64 `envconfig:"MAX_COMMISSION" default:"0.01"`
		MaxSlippage     float64 `envconfig:"MAX_SLIPPAGE" default:"0.05"`
		MinCandles      int     `envconfig:"MIN_CANDLES" default:"2"`
		RiskFreeRate    float64 `envconfig:"RISK_FREE_RATE" default:"0"`
		ParityTolerance float64 `envconfig:"PARITY_TOLERANCE" default:"1e-6"`
	}

	// 최적화 설정
	Optimizer struct {
		Workers         int     `envconfig:"OPT_WORKERS" default:"0"`
		Objective       string  `envconfig:"OPT_OBJECTIVE" default:"sharpe_ratio"`
		MinTrades       int     `envconfig:"OPT_MIN_TRADES" default:"1"`
		MaxCombinations int     `envconfig:"OPT_MAX_COMBINATIONS" default:"100000"`
		Seed            uint64  `envconfig:"OPT_SEED" default:"42"`
		Trials          int     `envconfig:"OPT_TRIALS" default:"100"`
		StartupTrials   int     `envconfig:"OPT_STARTUP_TRIALS" default:"10"`
		Gamma           float64 `envconfig:"OPT_GAMMA" default:"0.25"`
		Candidates      int     `envconfig:"OPT_CANDIDATES" default:"24"`
		BatchSize       int     `envconfig:"OPT_BATCH_SIZE" default:"0"`
		Prune           bool    `envconfig:"OPT_PRUNE" default:"false"`
		PruneFraction   float64 `envconfig:"OPT_PRUNE_FRACTION" default:"0.3"`
		PruneWarmup     int     `envconfig:"OPT_PRUNE_WARMUP" default:"5"`
	}

	// 워크포워드 설정
	WalkForward struct {
		Mode          string  `envconfig:"WF_MODE" default:"rolling"`
		Inner         string  `envconfig:"WF_INNER" default:"grid"`
		TrainSize     int     `envconfig:"WF_TRAIN_SIZE" default:"500"`
		TestSize      int     `envconfig:"WF_TEST_SIZE" default:"100"`
		StepSize      int     `envconfig:"WF_STEP_SIZE" default:"100"`
		EfficiencyMin float64 `envconfig:"WF_EFFICIENCY_MIN" default:"-1"`
		EfficiencyMax float64 `envconfig:"WF_EFFICIENCY_MAX" default:"2"`
		CVThreshold   float64 `envconfig:"WF_CV_THRESHOLD" default:"0.5"`
		Workers       int     `envconfig:"WF_WORKERS" default:"0"`
	}

	// 몬테카를로 설정
	MonteCarlo struct {
		Trials       int     `envconfig:"MC_TRIALS" default:"1000"`
		Seed         uint64  `envconfig:"MC_SEED" default:"42"`
		RuinFloorPct float64 `envconfig:"MC_RUIN_FLOOR_PCT" default:"50"`
		Workers      int     `envconfig:"MC_WORKERS" default:"0"`
	}

	// 데이터 소스 설정
	Data struct {
		Source             string        `envconfig:"DATA_SOURCE" default:"csv"`
		CSVPath            string        `envconfig:"DATA_CSV_PATH"`
		ClickHouseAddr     []string      `envconfig:"CLICKHOUSE_ADDR"`
		ClickHouseDatabase string        `envconfig:"CLICKHOUSE_DATABASE" default:"market"`
		ClickHouseTable    string        `envconfig:"CLICKHOUSE_TABLE" default:"candles"`
		ClickHouseUser     string        `envconfig:"CLICKHOUSE_USER" default:"default"`
		ClickHousePassword string        `envconfig:"CLICKHOUSE_PASSWORD"`
		Symbol             string        `envconfig:"SYMBOL" default:"BTCUSDT"`
		Interval           string        `envconfig:"INTERVAL" default:"1h"`
		ResampleTo         string        `envconfig:"DATA_RESAMPLE_TO"`
		Start              time.Time     `envconfig:"DATA_START"`
		End                time.Time     `envconfig:"DATA_END"`
		SyntheticBars      int           `envconfig:"SYNTHETIC_BARS" default:"2000"`
		SyntheticSeed      uint64        `envconfig:"SYNTHETIC_SEED" default:"1"`
		Timeout            time.Duration `envconfig:"DATA_TIMEOUT" default:"30s"`
	}
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.App.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT은 console 또는 json 이어야 합니다: %q", cfg.App.LogFormat)
	}

	if err := cfg.Settings().Validate(cfg.Limits()); err != nil {
		return err
	}
	if err := cfg.Sizing().Validate(); err != nil {
		return err
	}
	if cfg.Engine.ParityTolerance <= 0 {
		return fmt.Errorf("PARITY_TOLERANCE는 0보다 커야 합니다")
	}

	if _, err := metrics.ParseName(cfg.Optimizer.Objective); err != nil {
		return fmt.Errorf("OPT_OBJECTIVE: %w", err)
	}
	if cfg.Optimizer.Trials < 1 {
		return fmt.Errorf("OPT_TRIALS는 1 이상이어야 합니다")
	}
	if cfg.Optimizer.Prune && !(cfg.Optimizer.PruneFraction > 0 && cfg.Optimizer.PruneFraction < 1) {
		return fmt.Errorf("OPT_PRUNE_FRACTION은 (0, 1) 범위여야 합니다")
	}

	if err := cfg.WalkForwardConfig().Validate(); err != nil {
		return err
	}

	if cfg.MonteCarlo.Trials < 1 {
		return fmt.Errorf("MC_TRIALS는 1 이상이어야 합니다")
	}
	if cfg.MonteCarlo.RuinFloorPct < 0 || cfg.MonteCarlo.RuinFloorPct >= 100 {
		return fmt.Errorf("MC_RUIN_FLOOR_PCT는 0 이상 100 미만이어야 합니다")
	}

	if domain.TimeIntervalToDuration(domain.TimeInterval(cfg.Data.Interval)) == 0 {
		return fmt.Errorf("지원하지 않는 INTERVAL입니다: %q", cfg.Data.Interval)
	}
	if cfg.Data.ResampleTo != "" {
		if err := marketdata.CheckResample(domain.TimeInterval(cfg.Data.Interval), domain.TimeInterval(cfg.Data.ResampleTo)); err != nil {
			return fmt.Errorf("DATA_RESAMPLE_TO: %w", err)
		}
	}
	switch cfg.Data.Source {
	case SourceCSV:
		if cfg.Data.CSVPath == "" {
			return fmt.Errorf("DATA_CSV_PATH가 필요합니다")
		}
	case SourceClickHouse:
		if err := cfg.ClickHouse().Validate(); err != nil {
			return err
		}
	case SourceSynthetic:
		if cfg.Data.SyntheticBars < 2 {
			return fmt.Errorf("SYNTHETIC_BARS는 2 이상이어야 합니다")
		}
	default:
		return fmt.Errorf("알 수 없는 DATA_SOURCE입니다: %q", cfg.Data.Source)
	}
	if !cfg.Data.Start.IsZero() && !cfg.Data.End.IsZero() && !cfg.Data.Start.Before(cfg.Data.End) {
		return fmt.Errorf("DATA_START는 DATA_END보다 앞서야 합니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
// .env 파일(또는 지정한 파일)이 있으면 먼저 읽고, 없으면 환경변수만 사용합니다.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}

// Settings는 엔진 실행 설정입니다
func (c *Config) Settings() backtest.Settings {
	return backtest.Settings{
		InitialCapital: c.Engine.InitialCapital,
		Leverage:       c.Engine.Leverage,
		CommissionRate: c.Engine.CommissionRate,
		SlippageRate:   c.Engine.SlippageRate,
		FillMode:       backtest.FillMode(c.Engine.FillMode),
		TriggerMode:    backtest.TriggerMode(c.Engine.TriggerMode),
		StopFirst:      c.Engine.StopFirst,
	}
}

// Limits는 엔진 허용 범위입니다
func (c *Config) Limits() backtest.Limits {
	return backtest.Limits{
		MaxLeverage:   c.Engine.MaxLeverage,
		MaxCommission: c.Engine.MaxCommission,
		MaxSlippage:   c.Engine.MaxSlippage,
		MinCandles:    c.Engine.MinCandles,
	}
}

// Sizing은 포지션 사이징 설정입니다
func (c *Config) Sizing() position.Sizing {
	return position.Sizing{
		Mode:     position.SizingMode(c.Engine.SizingMode),
		Value:    c.Engine.SizingValue,
		StepSize: c.Engine.QtyStep,
	}
}

// Objective는 최적화 목적 지표입니다
func (c *Config) Objective() optimize.Objective {
	return optimize.Objective{Metric: metrics.Name(c.Optimizer.Objective), MinTrades: c.Optimizer.MinTrades}
}

// BayesConfig는 베이지안 탐색 설정입니다 (Logger, Progress는 호출 측에서 지정)
func (c *Config) BayesConfig() optimize.BayesConfig {
	bc := optimize.BayesConfig{
		Objective:     c.Objective(),
		Trials:        c.Optimizer.Trials,
		StartupTrials: c.Optimizer.StartupTrials,
		Gamma:         c.Optimizer.Gamma,
		Candidates:    c.Optimizer.Candidates,
		BatchSize:     c.Optimizer.BatchSize,
		Seed:          c.Optimizer.Seed,
		Parallelism:   c.Optimizer.Workers,
	}
	if c.Optimizer.Prune {
		bc.Pruner = &optimize.MedianPruner{Fraction: c.Optimizer.PruneFraction, Warmup: c.Optimizer.PruneWarmup}
	}
	return bc
}

// GridConfig는 그리드 탐색 설정입니다
func (c *Config) GridConfig() optimize.GridConfig {
	return optimize.GridConfig{
		Objective:       c.Objective(),
		Parallelism:     c.Optimizer.Workers,
		MaxCombinations: c.Optimizer.MaxCombinations,
	}
}

// WalkForwardConfig는 워크포워드 설정입니다
func (c *Config) WalkForwardConfig() walkforward.Config {
	return walkforward.Config{
		Mode:          walkforward.Mode(c.WalkForward.Mode),
		Inner:         walkforward.Inner(c.WalkForward.Inner),
		TrainSize:     c.WalkForward.TrainSize,
		TestSize:      c.WalkForward.TestSize,
		StepSize:      c.WalkForward.StepSize,
		Objective:     c.Objective(),
		Bayes:         c.BayesConfig(),
		EfficiencyMin: c.WalkForward.EfficiencyMin,
		EfficiencyMax: c.WalkForward.EfficiencyMax,
		CVThreshold:   c.WalkForward.CVThreshold,
		Parallelism:   c.WalkForward.Workers,
	}
}

// MonteCarloConfig는 몬테카를로 설정입니다
func (c *Config) MonteCarloConfig() montecarlo.Config {
	return montecarlo.Config{
		Trials:       c.MonteCarlo.Trials,
		Seed:         c.MonteCarlo.Seed,
		RuinFloorPct: c.MonteCarlo.RuinFloorPct,
		Parallelism:  c.MonteCarlo.Workers,
	}
}

// ClickHouse는 ClickHouse 접속 설정입니다
func (c *Config) ClickHouse() marketdata.ClickHouseConfig {
	return marketdata.ClickHouseConfig{
		Addr:     c.Data.ClickHouseAddr,
		Database: c.Data.ClickHouseDatabase,
		Table:    c.Data.ClickHouseTable,
		Username: c.Data.ClickHouseUser,
		Password: c.Data.ClickHousePassword,
	}
}

// Query는 캔들 조회 조건입니다
func (c *Config) Query() marketdata.Query {
	return marketdata.Query{
		Symbol:   c.Data.Symbol,
		Interval: domain.TimeInterval(c.Data.Interval),
		Start:    c.Data.Start,
		End:      c.Data.End,
		Target:   domain.TimeInterval(c.Data.ResampleTo),
	}
}
