package tuxeai

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cotah/tuxeai-app/agent"
)

// MockPublisher is a mock implementation of the Publisher interface.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n EventNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMetricsCollector is a mock implementation of the MetricsCollector interface.
type MockMetricsCollector struct {
	mock.Mock
}

func (m *MockMetricsCollector) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

func (m *MockMetricsCollector) RecordDuration(name string, duration time.Duration, tags map[string]string) {
	m.Called(name, duration, tags)
}

func (m *MockMetricsCollector) RecordGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// agentFunc adapts a function to agent.Agent.
type agentFunc func(ctx context.Context, ev agent.Event) agent.Outcome

func (f agentFunc) ProcessEvent(ctx context.Context, ev agent.Event) agent.Outcome {
	return f(ctx, ev)
}

// stubFactory hands out agents by key, or err when set.
type stubFactory struct {
	agents map[string]agent.Agent
	err    error
}

func (f *stubFactory) Create(_ context.Context, _ int64, key string) (agent.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.agents[key]
	if !ok {
		return nil, agent.ErrAgentNotRegistered
	}
	return a, nil
}
