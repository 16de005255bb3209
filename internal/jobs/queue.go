// Package jobs는 백테스트 작업 큐와 주기적으로 작업을 가져가 실행하는 디스패처입니다.
package jobs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/backtest"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/marketdata"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

var (
	ErrNotFound   = errors.New("작업을 찾을 수 없습니다")
	ErrNotRunning = errors.New("실행 중인 작업이 아닙니다")
)

// Status는 작업 상태입니다
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Request는 백테스트 한 번을 실행하는 데 필요한 정보입니다
type Request struct {
	Preset   string            `json:"preset"`
	Params   strategy.Params   `json:"params,omitempty"`
	Backend  string            `json:"backend,omitempty"`
	Settings backtest.Settings `json:"settings"`
	Query    marketdata.Query  `json:"query"`
}

// Job은 큐에 등록된 작업입니다. 상태 전이는 원자적으로 이루어집니다.
type Job struct {
	ID        string
	Request   Request
	CreatedAt time.Time

	status atomic.Int32

	mu         sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
	result     *pipeline.Result
	err        error
}

// Status는 현재 상태입니다
func (j *Job) Status() Status { return Status(j.status.Load()) }

// Outcome은 완료된 작업의 결과와 에러입니다
func (j *Job) Outcome() (*pipeline.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Elapsed는 실행 시간입니다. 끝나지 않았으면 0입니다.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finishedAt.IsZero() {
		return 0
	}
	return j.finishedAt.Sub(j.startedAt)
}

// Queue는 메모리 작업 큐입니다. 등록 순서대로 가져갑니다.
type Queue struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []*Job
}

// NewQueue는 빈 큐를 생성합니다
func NewQueue() *Queue {
	return &Queue{jobs: make(map[string]*Job)}
}

// Submit은 작업을 대기 상태로 등록합니다
func (q *Queue) Submit(req Request) *Job {
	job := &Job{ID: uuid.NewString(), Request: req, CreatedAt: time.Now()}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job)
	return job
}

// Get은 ID로 작업을 찾습니다
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// Claim은 가장 오래된 대기 작업을 실행 상태로 바꿔 반환합니다.
// 상태 전이는 compare-and-swap 한 번으로 이루어지므로 같은 작업을 두 곳에서 가져갈 수 없습니다.
func (q *Queue) Claim() (*Job, bool) {
	q.mu.RLock()
	order := q.order
	q.mu.RUnlock()

	for _, job := range order {
		if job.status.CompareAndSwap(int32(StatusPending), int32(StatusRunning)) {
			job.mu.Lock()
			job.startedAt = time.Now()
			job.mu.Unlock()
			return job, true
		}
	}
	return nil, false
}

// Complete는 실행 중인 작업을 결과에 따라 완료 또는 실패로 바꿉니다
func (q *Queue) Complete(job *Job, result *pipeline.Result, err error) error {
	next := StatusCompleted
	if err != nil {
		next = StatusFailed
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if !job.status.CompareAndSwap(int32(StatusRunning), int32(next)) {
		return fmt.Errorf("%w: %s (%s)", ErrNotRunning, job.ID, job.Status())
	}
	job.finishedAt = time.Now()
	job.result = result
	job.err = err
	return nil
}

// Count는 상태별 작업 수입니다
func (q *Queue) Count(status Status) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, job := range q.order {
		if job.Status() == status {
			n++
		}
	}
	return n
}
