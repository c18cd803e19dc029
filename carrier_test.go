package tuxeai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/storage"
)

func TestNewCarrier_RequiresStore(t *testing.T) {
	_, err := NewCarrier(nil, &stubFactory{})
	assert.Error(t, err)
}

func TestNewCarrier_Defaults(t *testing.T) {
	c, err := NewCarrier(new(storage.MockStore), &stubFactory{})
	require.NoError(t, err)

	assert.IsType(t, &NopPublisher{}, c.publisher)
	assert.IsType(t, &NopMetricsCollector{}, c.metrics)
	assert.IsType(t, storage.NopTransactor{}, c.transactor)
	assert.NotNil(t, c.logger)
}

func TestCarrier_ClockReachesServices(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	mockStore := new(storage.MockStore)
	c, err := NewCarrier(mockStore, &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			return agent.Succeeded("done", nil)
		}),
	}}, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(1, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, mock.MatchedBy(func(u storage.StatusUpdate) bool {
		return u.At.Equal(fixed)
	})).Return(true, nil).Twice()
	mockStore.On("TouchSubscription", mock.Anything, int64(7), "reviews", fixed).Return(nil).Once()

	_, err = c.EventProcessor().ProcessNext(context.Background())
	require.NoError(t, err)
	mockStore.AssertExpectations(t)

	assert.Equal(t, fixed, c.StuckEventService().now())
	assert.Equal(t, fixed, c.ReminderService().now())
	assert.NotNil(t, c.ReplayService())
}

func TestCarrier_Workers(t *testing.T) {
	c, err := NewCarrier(new(storage.MockStore), &stubFactory{}, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	workers := c.Workers(WorkerSchedule{IdleInterval: time.Second})
	require.Len(t, workers, 3)

	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"event-processor", "stuck-event-sweeper", "reminder-scheduler"}, names)
	assert.Equal(t, time.Second, workers[0].(*BaseWorker).interval)
	assert.Equal(t, defaultStuckCheckInterval, workers[1].(*BaseWorker).interval)
}
