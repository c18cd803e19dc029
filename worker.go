package tuxeai

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkFunc does one unit of work. more reports that work remains and the
// worker should run again without waiting for its interval.
type WorkFunc func(ctx context.Context) (more bool, err error)

// BaseWorker runs a WorkFunc until stopped. After an iteration that reports
// more work it runs again immediately; otherwise, and after any error, it
// waits for its interval.
type BaseWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	workFunc WorkFunc

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
	stopChan chan struct{}
	started  bool
}

func NewBaseWorker(name string, interval time.Duration, logger *zap.Logger, workFunc WorkFunc) *BaseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		workFunc: workFunc,
		stopChan: make(chan struct{}),
	}
}

// NewPeriodicWorker runs fn once per interval.
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger, fn func(ctx context.Context) error) *BaseWorker {
	return NewBaseWorker(name, interval, logger, func(ctx context.Context) (bool, error) {
		return false, fn(ctx)
	})
}

// Start blocks until ctx is done or Stop is called. The first iteration runs
// immediately.
func (w *BaseWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		w.logger.Warn("Worker already started", zap.String("name", w.name))
		return
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("Worker starting", zap.String("name", w.name), zap.Duration("interval", w.interval))
	defer w.logger.Info("Worker finished", zap.String("name", w.name))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Context cancelled, worker stopping", zap.String("name", w.name))
			return
		case <-w.stopChan:
			w.logger.Info("Stop signal received, worker stopping", zap.String("name", w.name))
			return
		case <-timer.C:
			select {
			case <-w.stopChan:
				return
			default:
			}

			next := w.interval
			if w.execute(ctx) {
				next = 0
			}
			timer.Reset(next)
		}
	}
}

func (w *BaseWorker) execute(ctx context.Context) bool {
	w.wg.Add(1)
	defer w.wg.Done()

	if ctx.Err() != nil {
		return false
	}

	more, err := w.workFunc(ctx)
	if err != nil {
		w.logger.Error("Worker function failed", zap.String("name", w.name), zap.Error(err))
		return false
	}
	return more
}

// Stop waits for the in-flight iteration to finish. It is safe to call more
// than once.
func (w *BaseWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if !w.started {
			return
		}
		close(w.stopChan)
		w.wg.Wait()
	})
}

func (w *BaseWorker) Name() string {
	return w.name
}
