// Package workers는 제한된 동시성으로 독립 작업을 병렬 실행합니다.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrSkipped는 취소로 인해 시작되지 않은 작업의 에러입니다
var ErrSkipped = errors.New("취소되어 실행되지 않은 작업입니다")

// Progress는 완료/실패 작업 수를 원자적으로 집계하고 갱신마다 콜백을 호출합니다
type Progress struct {
	total    int64
	done     atomic.Int64
	failed   atomic.Int64
	onUpdate func(done, total int)
}

// NewProgress는 total개 작업에 대한 진행률 집계기를 생성합니다. fn은 nil일 수 있습니다.
func NewProgress(total int, fn func(done, total int)) *Progress {
	return &Progress{total: int64(total), onUpdate: fn}
}

// Add는 작업 하나의 완료를 기록합니다
func (p *Progress) Add(err error) {
	if p == nil {
		return
	}
	if err != nil {
		p.failed.Add(1)
	}
	done := p.done.Add(1)
	if p.onUpdate != nil {
		p.onUpdate(int(done), int(p.total))
	}
}

// Snapshot은 현재까지의 완료 수, 실패 수, 전체 수를 반환합니다
func (p *Progress) Snapshot() (done, failed, total int) {
	if p == nil {
		return 0, 0, 0
	}
	return int(p.done.Load()), int(p.failed.Load()), int(p.total)
}

// Limit은 limit이 0 이하이면 CPU 수를 반환합니다
func Limit(limit int) int {
	if limit <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return limit
}

// Map은 items의 각 원소에 fn을 최대 limit개 고루틴으로 적용합니다.
//
// 결과와 에러는 입력 순서대로 반환됩니다. 개별 작업의 에러나 패닉은 해당 위치에만
// 기록되고 나머지 작업은 계속 실행됩니다. 취소는 작업 사이에서만 확인하며, 취소 후
// 시작되지 않은 작업은 ErrSkipped로 기록되고 세 번째 반환값으로 ctx.Err()를 반환합니다.
func Map[T, R any](ctx context.Context, items []T, limit int, progress *Progress, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, []error, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(Limit(limit))

	for i, item := range items {
		if ctx.Err() != nil {
			for j := i; j < len(items); j++ {
				errs[j] = fmt.Errorf("%w: %v", ErrSkipped, ctx.Err())
			}
			break
		}
		g.Go(func() (err error) {
			if ctx.Err() != nil {
				errs[i] = fmt.Errorf("%w: %v", ErrSkipped, ctx.Err())
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("작업 %d 패닉: %v", i, r)
				}
				progress.Add(errs[i])
			}()
			results[i], errs[i] = fn(ctx, i, item)
			return nil
		})
	}
	// 작업 에러는 errs에 기록하므로 Wait는 nil 외에는 반환하지 않습니다
	if err := g.Wait(); err != nil {
		return results, errs, err
	}
	return results, errs, ctx.Err()
}
