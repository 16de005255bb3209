package domain

import "time"

// SignalType은 트레이딩 시그널 유형을 정의합니다
type SignalType int8

const (
	Short    SignalType = -1
	NoSignal SignalType = 0
	Long     SignalType = 1
)

// String은 SignalType의 문자열 표현을 반환합니다
func (s SignalType) String() string {
	switch s {
	case NoSignal:
		return "NoSignal"
	case Long:
		return "Long"
	case Short:
		return "Short"
	default:
		return "Unknown"
	}
}

// PositionSide는 포지션 방향을 정의합니다
type PositionSide string

const (
	LongPosition  PositionSide = "LONG"
	ShortPosition PositionSide = "SHORT"
)

// Direction은 롱이면 1, 숏이면 -1을 반환합니다
func (s PositionSide) Direction() float64 {
	if s == ShortPosition {
		return -1
	}
	return 1
}

// SideFromSignal은 시그널 타입에 따른 포지션 사이드를 반환합니다
func SideFromSignal(signalType SignalType) PositionSide {
	if signalType == Short {
		return ShortPosition
	}
	return LongPosition
}

// TimeInterval은 캔들 차트의 시간 간격을 정의합니다
type TimeInterval string

const (
	Interval1m  TimeInterval = "1m"
	Interval3m  TimeInterval = "3m"
	Interval5m  TimeInterval = "5m"
	Interval15m TimeInterval = "15m"
	Interval30m TimeInterval = "30m"
	Interval1h  TimeInterval = "1h"
	Interval2h  TimeInterval = "2h"
	Interval4h  TimeInterval = "4h"
	Interval6h  TimeInterval = "6h"
	Interval8h  TimeInterval = "8h"
	Interval12h TimeInterval = "12h"
	Interval1d  TimeInterval = "1d"
)

// TimeIntervalToDuration은 시간 간격 문자열을 time.Duration으로 변환합니다
func TimeIntervalToDuration(interval TimeInterval) time.Duration {
	switch interval {
	case Interval1m:
		return time.Minute
	case Interval3m:
		return 3 * time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval2h:
		return 2 * time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval6h:
		return 6 * time.Hour
	case Interval8h:
		return 8 * time.Hour
	case Interval12h:
		return 12 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// PeriodsPerYear는 간격 기준 연간 봉 개수를 반환합니다 (연율화용)
func PeriodsPerYear(interval TimeInterval) float64 {
	d := TimeIntervalToDuration(interval)
	if d <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(d)
}
