package backtest

import (
	"context"
	"fmt"
	"math"
)

// DefaultParityTolerance는 백엔드 간 수치 비교의 기본 상대 허용 오차입니다
const DefaultParityTolerance = 1e-6

// CompareOutputs는 기준 결과와 후보 결과를 비교합니다.
// 거래 수, 인덱스, 방향, 청산 이유는 정확히 같아야 하고 수치는 상대 허용 오차 안에 있어야 합니다.
func CompareOutputs(ref, got *Output, tol float64) error {
	perr := &ParityError{Reference: ref.Backend, Candidate: got.Backend}
	add := func(format string, args ...any) {
		perr.Mismatches = append(perr.Mismatches, fmt.Sprintf(format, args...))
	}
	num := func(label string, a, b float64) {
		if !closeEnough(a, b, tol) {
			add("%s: %v != %v", label, a, b)
		}
	}

	if len(ref.Trades) != len(got.Trades) {
		add("거래 수: %d != %d", len(ref.Trades), len(got.Trades))
	}
	for i := 0; i < min(len(ref.Trades), len(got.Trades)); i++ {
		a, b := ref.Trades[i], got.Trades[i]
		if a.EntryIndex != b.EntryIndex || a.ExitIndex != b.ExitIndex {
			add("거래 %d 인덱스: [%d,%d] != [%d,%d]", i, a.EntryIndex, a.ExitIndex, b.EntryIndex, b.ExitIndex)
		}
		if a.Side != b.Side {
			add("거래 %d 방향: %s != %s", i, a.Side, b.Side)
		}
		if a.ExitReason != b.ExitReason {
			add("거래 %d 청산 이유: %s != %s", i, a.ExitReason, b.ExitReason)
		}
		num(fmt.Sprintf("거래 %d 진입가", i), a.EntryPrice, b.EntryPrice)
		num(fmt.Sprintf("거래 %d 청산가", i), a.ExitPrice, b.ExitPrice)
		num(fmt.Sprintf("거래 %d 수량", i), a.Quantity, b.Quantity)
		num(fmt.Sprintf("거래 %d 손익", i), a.PnL, b.PnL)
		num(fmt.Sprintf("거래 %d 수수료", i), a.Commission, b.Commission)
	}

	if len(ref.Equity) != len(got.Equity) {
		add("자산 곡선 길이: %d != %d", len(ref.Equity), len(got.Equity))
	}
	for i := 0; i < min(len(ref.Equity), len(got.Equity)); i++ {
		num(fmt.Sprintf("자산 %d", i), ref.Equity[i].Equity, got.Equity[i].Equity)
	}
	num("최종 자본", ref.FinalCapital, got.FinalCapital)

	if len(perr.Mismatches) > 0 {
		return perr
	}
	return nil
}

// VerifyParity는 같은 입력들을 두 백엔드로 실행해 결과를 비교합니다.
// 어느 한쪽이 에러를 반환하면 두 에러의 발생 여부도 같아야 합니다.
func VerifyParity(ctx context.Context, canonical, candidate Backend, inputs []Input, tol float64) error {
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref, refErr := canonical.Run(in)
		got, gotErr := candidate.Run(in)
		switch {
		case refErr != nil && gotErr != nil:
			continue
		case refErr != nil || gotErr != nil:
			return &ParityError{
				Reference:  canonical.Name(),
				Candidate:  candidate.Name(),
				Mismatches: []string{fmt.Sprintf("입력 %d 에러 불일치: %v / %v", i, refErr, gotErr)},
			}
		}
		if err := CompareOutputs(ref, got, tol); err != nil {
			return fmt.Errorf("입력 %d: %w", i, err)
		}
	}
	return nil
}

func closeEnough(a, b, tol float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}
