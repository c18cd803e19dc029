package tuxeai

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs a set of workers and shuts them down together.
type Dispatcher struct {
	logger  *zap.Logger
	workers []Worker

	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewDispatcher(logger *zap.Logger, workers ...Worker) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:  logger,
		workers: workers,
		stopped: make(chan struct{}),
	}
}

// Run starts every worker and blocks until ctx is done or Stop is called,
// then waits for all workers to return.
func (d *Dispatcher) Run(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher already running")
		return
	}
	d.running = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info("Dispatcher starting", zap.Int("worker_count", len(d.workers)))
	for _, w := range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		d.logger.Info("Context cancelled, stopping dispatcher")
		d.Stop()
	case <-d.stopped:
	}

	// workers that had not started yet when Stop ran exit on cancel
	cancel()
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop asks every worker to finish its current iteration and return.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		for _, w := range d.workers {
			d.logger.Debug("Stopping worker", zap.String("worker_name", w.Name()))
			w.Stop()
		}
	})
}

func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
