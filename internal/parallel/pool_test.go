// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	assert.Equal(t, 4, pool.Workers())
	assert.True(t, pool.IsRunning())
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		assert.Equal(t, runtime.GOMAXPROCS(0), pool.Workers())
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	require.NoError(t, pool.ExecuteAll(work))
	assert.Equal(t, int64(100), counter.Load())
}

func TestWorkerPool_ExecuteAll_WritesDistinctSlots(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	results := make([]int, 50)
	work := make([]func(), len(results))
	for i := range work {
		work[i] = func() { results[i] = i * i }
	}
	require.NoError(t, pool.ExecuteAll(work))
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()
	assert.NoError(t, pool.ExecuteAll(nil))
}

func TestWorkerPool_ExecuteAll_Panic(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var ran atomic.Int64
	err := pool.ExecuteAll([]func(){
		func() { ran.Add(1) },
		func() { panic("boom") },
		func() { ran.Add(1) },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(2), ran.Load())

	// The pool survives a panicking task.
	require.NoError(t, pool.ExecuteAll([]func(){func() { ran.Add(1) }}))
	assert.Equal(t, int64(3), ran.Load())
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	assert.False(t, pool.IsRunning())
}

func TestWorkerPool_ExecuteAfterCloseRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	require.NoError(t, pool.ExecuteAll([]func(){
		func() { counter.Add(1) },
		func() { counter.Add(1) },
	}))
	assert.Equal(t, int64(2), counter.Load())
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// All slow tasks land on worker 0's queue; idle workers must steal.
	work := make([]func(), 16)
	for i := range work {
		if i%4 == 0 {
			work[i] = func() { time.Sleep(20 * time.Millisecond) }
		} else {
			work[i] = func() {}
		}
	}
	start := time.Now()
	require.NoError(t, pool.ExecuteAll(work))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWorkerPool_SingleWorker(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	var order []int
	work := make([]func(), 10)
	for i := range work {
		work[i] = func() { order = append(order, i) }
	}
	require.NoError(t, pool.ExecuteAll(work))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}
