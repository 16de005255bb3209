package backtest

import (
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/position"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// FillMode는 시그널 체결 시점입니다
type FillMode string

const (
	// FillClose는 시그널이 발생한 봉의 종가에 체결합니다
	FillClose FillMode = "close"
	// FillNextOpen은 다음 봉의 시가에 체결합니다
	FillNextOpen FillMode = "next_open"
)

// TriggerMode는 TP/SL/트레일링 판정 방식입니다
type TriggerMode string

const (
	// TriggerClose는 봉 종가로 판정하고 종가에 체결합니다
	TriggerClose TriggerMode = "close"
	// TriggerIntrabar는 고가/저가로 판정하고 레벨(갭이면 시가)에 체결합니다
	TriggerIntrabar TriggerMode = "intrabar"
)

// Settings는 실행 환경 설정입니다
type Settings struct {
	InitialCapital float64     `json:"initial_capital"`
	Leverage       float64     `json:"leverage"`
	CommissionRate float64     `json:"commission_rate"` // 체결 명목가 대비 비율 (0.001 = 0.1%)
	SlippageRate   float64     `json:"slippage_rate"`   // 체결가에 불리하게 적용하는 비율
	FillMode       FillMode    `json:"fill_mode"`
	TriggerMode    TriggerMode `json:"trigger_mode"`
	StopFirst      bool        `json:"stop_first"` // TP와 SL이 같은 봉에서 충족되면 SL 우선
}

// DefaultSettings는 기본 실행 설정을 반환합니다
func DefaultSettings() Settings {
	return Settings{
		InitialCapital: 10000,
		Leverage:       1,
		CommissionRate: 0.0006,
		FillMode:       FillClose,
		TriggerMode:    TriggerClose,
	}
}

// Input은 백엔드 한 번 실행에 필요한 모든 입력입니다
type Input struct {
	Candles  domain.CandleList
	Signals  domain.Signals
	Exits    strategy.Exits
	Sizing   position.Sizing
	Settings Settings
}

// ExitReason은 포지션 청산 이유를 정의합니다
type ExitReason string

const (
	ExitSignal       ExitReason = "signal"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitEndOfData    ExitReason = "end_of_data"
)

// Trade는 개별 거래 정보를 저장합니다
type Trade struct {
	EntryTime  time.Time           `json:"entry_time"`
	ExitTime   time.Time           `json:"exit_time"`
	EntryIndex int                 `json:"entry_index"`
	ExitIndex  int                 `json:"exit_index"`
	Side       domain.PositionSide `json:"side"`
	EntryPrice float64             `json:"entry_price"`
	ExitPrice  float64             `json:"exit_price"`
	Quantity   float64             `json:"quantity"`
	Notional   float64             `json:"notional"`   // 진입 명목 가치
	PnL        float64             `json:"pnl"`        // 수수료 차감 후 손익 (호가 통화)
	PnLPct     float64             `json:"pnl_pct"`    // 진입 명목 가치 대비 손익 (%)
	Commission float64             `json:"commission"` // 진입 + 청산 수수료
	ExitReason ExitReason          `json:"exit_reason"`
	Bars       int                 `json:"bars"` // 보유 봉 수
}

// EquityPoint는 봉 종가 기준 평가 자산입니다
type EquityPoint struct {
	Index       int       `json:"index"`
	Timestamp   time.Time `json:"timestamp"`
	Equity      float64   `json:"equity"`
	Drawdown    float64   `json:"drawdown"`     // 고점 대비 낙폭 (호가 통화)
	DrawdownPct float64   `json:"drawdown_pct"` // 고점 대비 낙폭 (%)
}

// Output은 백엔드 실행 결과입니다
type Output struct {
	Backend      string        `json:"backend"`
	Trades       []Trade       `json:"trades"`
	Equity       []EquityPoint `json:"equity"`
	FinalCapital float64       `json:"final_capital"`
}

// Backend는 실행 엔진 구현체입니다. 같은 입력에 대해 항상 같은 결과를 내야 합니다.
type Backend interface {
	// Name은 "<이름>@v<버전>" 형식의 식별자입니다
	Name() string
	Run(in Input) (*Output, error)
}

// Limits는 허용되는 설정 범위입니다
type Limits struct {
	MaxLeverage   float64
	MaxCommission float64
	MaxSlippage   float64
	MinCandles    int
}

// DefaultLimits는 기본 허용 범위를 반환합니다
func DefaultLimits() Limits {
	return Limits{
		MaxLeverage:   125,
		MaxCommission: 0.01,
		MaxSlippage:   0.05,
		MinCandles:    2,
	}
}
