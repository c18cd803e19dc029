package tuxeai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBaseWorker_StartAndStop(t *testing.T) {
	workDone := make(chan bool)
	workFunc := func(ctx context.Context) (bool, error) {
		workDone <- true
		return false, nil
	}

	worker := NewBaseWorker("test-worker", 20*time.Millisecond, zap.NewNop(), workFunc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)

	<-workDone

	// Stop blocks until the loop has returned
	worker.Stop()

	select {
	case <-workDone:
		t.Fatal("work should not have been done after worker was stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBaseWorker_ContextCancellation(t *testing.T) {
	var workCounter int32
	worker := NewPeriodicWorker("test-worker", 20*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		atomic.AddInt32(&workCounter, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	worker.Start(ctx)

	countAfterStop := atomic.LoadInt32(&workCounter)
	assert.Greater(t, countAfterStop, int32(0), "worker should have done some work")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, countAfterStop, atomic.LoadInt32(&workCounter), "work should not be done after context is cancelled")
}

func TestBaseWorker_DrainsWithoutWaiting(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	workFunc := func(ctx context.Context) (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 5 {
			close(done)
		}
		return n < 5, nil
	}

	// the interval is far longer than the test, so only drain mode can reach five calls
	worker := NewBaseWorker("drain", time.Hour, zap.NewNop(), workFunc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not drain pending work")
	}
	worker.Stop()

	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestBaseWorker_ErrorWaitsForInterval(t *testing.T) {
	var calls int32
	worker := NewBaseWorker("failing", time.Hour, zap.NewNop(), func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, errors.New("db down")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	worker.Start(ctx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBaseWorker_StopIsIdempotent(t *testing.T) {
	workDone := make(chan bool)
	worker := NewPeriodicWorker("test-worker", 20*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		workDone <- true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)
	<-workDone

	worker.Stop()
	worker.Stop()

	assert.NotPanics(t, func() {
		worker.Stop()
	})
}

func TestBaseWorker_StopWaitsForWorkToFinish(t *testing.T) {
	workStarted := make(chan bool, 1)
	workFinished := make(chan bool, 1)

	worker := NewPeriodicWorker("test-worker", 20*time.Millisecond, zap.NewNop(), func(ctx context.Context) error {
		workStarted <- true
		time.Sleep(100 * time.Millisecond)
		workFinished <- true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)
	<-workStarted

	stopCalledTime := time.Now()
	worker.Stop()

	assert.GreaterOrEqual(t, time.Since(stopCalledTime), 100*time.Millisecond)
	select {
	case <-workFinished:
	default:
		t.Fatal("work should have been finished")
	}
}
