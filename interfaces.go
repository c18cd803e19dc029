// Package tuxeai drives restaurant agents from the event store: it enqueues
// events, claims and dispatches them to agents, and runs the background
// workers that keep the queue healthy.
package tuxeai

import (
	"context"
	"time"
)

// Publisher announces events that reached a terminal status.
type Publisher interface {
	Publish(ctx context.Context, n EventNotification) error
	Close() error
}

type MetricsCollector interface {
	IncrementCounter(name string, tags map[string]string)
	RecordDuration(name string, duration time.Duration, tags map[string]string)
	RecordGauge(name string, value float64, tags map[string]string)
}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	Name() string
}
