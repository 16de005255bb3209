// Package marketdata는 백테스트용 과거 캔들을 읽어옵니다.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

var (
	// ErrNoData는 조건에 맞는 캔들이 없을 때 반환됩니다
	ErrNoData = errors.New("조건에 맞는 캔들이 없습니다")
	// ErrInvalidResample은 Target이 저장 간격의 배수인 상위 간격이 아닐 때 반환됩니다
	ErrInvalidResample = errors.New("리샘플 간격이 올바르지 않습니다")
)

// Query는 캔들 조회 조건입니다. Start, End가 0이면 해당 방향으로 제한하지 않습니다.
// 구간은 OpenTime 기준 [Start, End) 입니다.
type Query struct {
	Symbol   string
	Interval domain.TimeInterval // 저장된 간격
	Start    time.Time
	End      time.Time
	Target   domain.TimeInterval // 비어있지 않으면 Load가 이 간격으로 리샘플
}

func (q Query) contains(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !t.Before(q.End) {
		return false
	}
	return true
}

// Source는 캔들 공급원입니다
type Source interface {
	Candles(ctx context.Context, q Query) (domain.CandleList, error)
}

// ValidateSeries는 정렬, OHLC 불변식, 그리고 간격이 알려진 경우 누락 캔들을 검사합니다
func ValidateSeries(candles domain.CandleList, interval domain.TimeInterval) error {
	if len(candles) == 0 {
		return ErrNoData
	}
	if err := candles.Validate(); err != nil {
		return err
	}
	if domain.TimeIntervalToDuration(interval) > 0 {
		if err := candles.ValidateGaps(interval); err != nil {
			return err
		}
	}
	return nil
}

// CheckResample은 interval 캔들을 target으로 집계할 수 있는지 확인합니다
func CheckResample(interval, target domain.TimeInterval) error {
	base := domain.TimeIntervalToDuration(interval)
	step := domain.TimeIntervalToDuration(target)
	if base <= 0 || step <= 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidResample, interval, target)
	}
	if step < base || step%base != 0 {
		return fmt.Errorf("%w: %s는 %s의 배수가 아닙니다", ErrInvalidResample, target, interval)
	}
	return nil
}

// Load는 source에서 캔들을 읽고 검증합니다.
// q.Target이 저장 간격보다 크면 검증 후 상위 간격으로 리샘플합니다.
func Load(ctx context.Context, source Source, q Query) (domain.CandleList, error) {
	if q.Target != "" && q.Target != q.Interval {
		if err := CheckResample(q.Interval, q.Target); err != nil {
			return nil, err
		}
	}

	candles, err := source.Candles(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := ValidateSeries(candles, q.Interval); err != nil {
		return nil, fmt.Errorf("%s %s 캔들 검증 실패: %w", q.Symbol, q.Interval, err)
	}
	if q.Target == "" || q.Target == q.Interval {
		return candles, nil
	}

	resampled, err := domain.Resample(candles, q.Target)
	if err != nil {
		return nil, fmt.Errorf("%s %s 리샘플 실패: %w", q.Symbol, q.Target, err)
	}
	if err := ValidateSeries(resampled, q.Target); err != nil {
		return nil, fmt.Errorf("%s %s 리샘플 캔들 검증 실패: %w", q.Symbol, q.Target, err)
	}
	return resampled, nil
}
