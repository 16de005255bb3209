package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/scheduler"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/workers"
)

// Runner는 요청 하나를 실행합니다
type Runner func(ctx context.Context, req Request) (*pipeline.Result, error)

// Dispatcher는 호출될 때마다 대기 작업을 최대 Batch개 가져가 병렬로 실행합니다.
// scheduler.Task를 구현합니다.
type Dispatcher struct {
	queue  *Queue
	runner Runner
	batch  int
	logger *zap.Logger
}

// NewDispatcher는 디스패처를 생성합니다. batch가 0 이하이면 CPU 수입니다.
func NewDispatcher(queue *Queue, runner Runner, batch int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, runner: runner, batch: workers.Limit(batch), logger: logger}
}

// Execute는 대기 작업을 가져가 실행하고 결과를 기록합니다
func (d *Dispatcher) Execute(ctx context.Context) error {
	var claimed []*Job
	for len(claimed) < d.batch {
		job, ok := d.queue.Claim()
		if !ok {
			break
		}
		claimed = append(claimed, job)
	}
	if len(claimed) == 0 {
		return nil
	}

	_, errs, err := workers.Map(ctx, claimed, d.batch, nil, func(ctx context.Context, _ int, job *Job) (struct{}, error) {
		d.logger.Info("작업 실행 시작", zap.String("job_id", job.ID), zap.String("preset", job.Request.Preset))
		res, runErr := d.runner(ctx, job.Request)
		if err := d.queue.Complete(job, res, runErr); err != nil {
			return struct{}{}, err
		}
		if runErr != nil {
			d.logger.Error("작업 실패", zap.String("job_id", job.ID), zap.Error(runErr))
		} else {
			d.logger.Info("작업 완료", zap.String("job_id", job.ID), zap.Duration("elapsed", job.Elapsed()))
		}
		return struct{}{}, nil
	})
	// 취소나 패닉으로 결과가 기록되지 않은 작업은 실패로 남깁니다
	for i, e := range errs {
		if e != nil && claimed[i].Status() == StatusRunning {
			_ = d.queue.Complete(claimed[i], nil, e)
		}
	}
	return err
}

// Run은 interval마다 Execute를 호출하며 ctx가 취소될 때까지 블록합니다
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	return scheduler.NewScheduler(interval, d, d.logger).Start(ctx)
}
