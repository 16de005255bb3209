package backtest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Error 타입들은 백테스트 입력 검증 중 발생할 수 있는 에러를 정의합니다
var (
	ErrInsufficientData  = errors.New("캔들 데이터가 부족합니다")
	ErrInvalidCandles    = errors.New("캔들 데이터가 유효하지 않습니다")
	ErrInvalidStrategy   = strategy.ErrInvalidConfig
	ErrInvalidLeverage   = errors.New("레버리지가 허용 범위를 벗어났습니다")
	ErrInvalidCommission = errors.New("수수료율이 허용 범위를 벗어났습니다")
	ErrInvalidCapital    = errors.New("초기 자본이 유효하지 않습니다")
	ErrInvalidSlippage   = errors.New("슬리피지가 허용 범위를 벗어났습니다")
	ErrInvalidSignals    = errors.New("시그널 길이가 캔들과 맞지 않습니다")
	ErrInvalidSettings   = errors.New("실행 설정이 유효하지 않습니다")
	ErrUnknownBackend    = errors.New("등록되지 않은 백엔드입니다")
)

// InputError는 입력 검증 에러를 확장한 구조체입니다
type InputError struct {
	Field string
	Err   error
}

// Error는 error 인터페이스를 구현합니다
func (e *InputError) Error() string {
	return fmt.Sprintf("입력 에러 [%s]: %v", e.Field, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *InputError) Unwrap() error {
	return e.Err
}

func inputErr(field string, sentinel error, format string, args ...any) error {
	return &InputError{Field: field, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}

// Validate는 설정 값이 limits 범위 안에 있는지 확인합니다
func (s Settings) Validate(limits Limits) error {
	if !(s.InitialCapital > 0) || math.IsInf(s.InitialCapital, 0) {
		return inputErr("initial_capital", ErrInvalidCapital, "%g", s.InitialCapital)
	}
	if !(s.Leverage > 0) || s.Leverage > limits.MaxLeverage {
		return inputErr("leverage", ErrInvalidLeverage, "%g (허용: (0, %g])", s.Leverage, limits.MaxLeverage)
	}
	if !(s.CommissionRate >= 0) || s.CommissionRate > limits.MaxCommission {
		return inputErr("commission_rate", ErrInvalidCommission, "%g (허용: [0, %g])", s.CommissionRate, limits.MaxCommission)
	}
	if !(s.SlippageRate >= 0) || s.SlippageRate > limits.MaxSlippage {
		return inputErr("slippage_rate", ErrInvalidSlippage, "%g (허용: [0, %g])", s.SlippageRate, limits.MaxSlippage)
	}
	switch s.FillMode {
	case FillClose, FillNextOpen, "":
	default:
		return inputErr("fill_mode", ErrInvalidSettings, "%q", s.FillMode)
	}
	switch s.TriggerMode {
	case TriggerClose, TriggerIntrabar, "":
	default:
		return inputErr("trigger_mode", ErrInvalidSettings, "%q", s.TriggerMode)
	}
	return nil
}

// Validate는 시뮬레이션 전에 입력 전체를 검증합니다
func (in Input) Validate(limits Limits) error {
	if err := in.Settings.Validate(limits); err != nil {
		return err
	}
	minCandles := limits.MinCandles
	if minCandles < 1 {
		minCandles = 1
	}
	if len(in.Candles) < minCandles {
		return inputErr("candles", ErrInsufficientData, "필요: %d, 현재: %d", minCandles, len(in.Candles))
	}
	if err := in.Candles.Validate(); err != nil {
		return &InputError{Field: "candles", Err: fmt.Errorf("%w: %v", ErrInvalidCandles, err)}
	}
	if !in.Signals.Aligned(len(in.Candles)) {
		return inputErr("signals", ErrInvalidSignals, "entry=%d exit_long=%d exit_short=%d candles=%d",
			len(in.Signals.Entry), len(in.Signals.ExitLong), len(in.Signals.ExitShort), len(in.Candles))
	}
	for i, s := range in.Signals.Entry {
		if s < -1 || s > 1 {
			return inputErr("signals", ErrInvalidSignals, "인덱스 %d의 값 %d", i, s)
		}
	}
	if err := in.Exits.Validate(); err != nil {
		return &InputError{Field: "exits", Err: fmt.Errorf("%w: %v", ErrInvalidStrategy, err)}
	}
	if err := in.Sizing.Validate(); err != nil {
		return &InputError{Field: "sizing", Err: fmt.Errorf("%w: %v", ErrInvalidStrategy, err)}
	}
	return nil
}

// ParityError는 백엔드 간 결과 불일치 목록입니다
type ParityError struct {
	Reference  string
	Candidate  string
	Mismatches []string
}

func (e *ParityError) Error() string {
	const maxShown = 10
	shown := e.Mismatches
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	msg := fmt.Sprintf("백엔드 불일치 %s vs %s: %d건\n  %s", e.Reference, e.Candidate, len(e.Mismatches), strings.Join(shown, "\n  "))
	if len(e.Mismatches) > maxShown {
		msg += fmt.Sprintf("\n  ... 외 %d건", len(e.Mismatches)-maxShown)
	}
	return msg
}
