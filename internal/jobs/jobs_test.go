package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/pipeline"
)

func TestSubmitAndGet(t *testing.T) {
	q := NewQueue()
	job := q.Submit(Request{Preset: "ema_cross"})
	_, err := uuid.Parse(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status())

	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)

	_, err = q.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimOrderAndComplete(t *testing.T) {
	q := NewQueue()
	first := q.Submit(Request{Preset: "a"})
	second := q.Submit(Request{Preset: "b"})

	job, ok := q.Claim()
	require.True(t, ok)
	assert.Same(t, first, job)
	assert.Equal(t, StatusRunning, job.Status())

	require.NoError(t, q.Complete(job, &pipeline.Result{}, nil))
	assert.Equal(t, StatusCompleted, job.Status())
	assert.ErrorIs(t, q.Complete(job, nil, nil), ErrNotRunning)
	assert.ErrorIs(t, q.Complete(second, nil, nil), ErrNotRunning)

	job, ok = q.Claim()
	require.True(t, ok)
	assert.Same(t, second, job)
	require.NoError(t, q.Complete(job, nil, errors.New("데이터 없음")))
	assert.Equal(t, StatusFailed, job.Status())
	_, err := job.Outcome()
	assert.EqualError(t, err, "데이터 없음")

	_, ok = q.Claim()
	assert.False(t, ok)
}

func TestConcurrentClaimIsExclusive(t *testing.T) {
	q := NewQueue()
	const total = 200
	for range total {
		q.Submit(Request{})
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.Claim()
				if !ok {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, total, q.Count(StatusRunning))
	assert.Zero(t, q.Count(StatusPending))
}

func TestDispatcherExecute(t *testing.T) {
	q := NewQueue()
	ok := q.Submit(Request{Preset: "ok"})
	bad := q.Submit(Request{Preset: "bad"})
	later := q.Submit(Request{Preset: "ok"})

	runner := func(_ context.Context, req Request) (*pipeline.Result, error) {
		if req.Preset == "bad" {
			return nil, errors.New("알 수 없는 프리셋")
		}
		return &pipeline.Result{Start: 0, End: 10}, nil
	}
	d := NewDispatcher(q, runner, 2, nil)
	require.NoError(t, d.Execute(context.Background()))

	assert.Equal(t, StatusCompleted, ok.Status())
	assert.Equal(t, StatusFailed, bad.Status())
	assert.Equal(t, StatusPending, later.Status())

	require.NoError(t, d.Execute(context.Background()))
	assert.Equal(t, StatusCompleted, later.Status())
	res, err := later.Outcome()
	require.NoError(t, err)
	assert.Equal(t, 10, res.End)

	// 대기 작업이 없으면 아무것도 하지 않습니다
	require.NoError(t, d.Execute(context.Background()))
}

func TestDispatcherRun(t *testing.T) {
	q := NewQueue()
	job := q.Submit(Request{Preset: "ok"})
	d := NewDispatcher(q, func(context.Context, Request) (*pipeline.Result, error) {
		return &pipeline.Result{}, nil
	}, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return job.Status() == StatusCompleted }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
