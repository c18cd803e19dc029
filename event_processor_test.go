package tuxeai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/storage"
)

var processedAt = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func newTestProcessor(store storage.Store, agents AgentFactory, publisher Publisher) *EventProcessor {
	return NewEventProcessor(store, agents, publisher, zap.NewNop(), nil,
		WithEventProcessorClock(func() time.Time { return processedAt }),
	)
}

func pendingEvent(id int64, agentKey string) storage.EventRecord {
	return storage.EventRecord{
		ID:           id,
		RestaurantID: 7,
		EventType:    "review.detected",
		AgentKey:     agentKey,
		Payload:      json.RawMessage(`{"reviewId":3}`),
		Status:       storage.EventStatusPending,
	}
}

func claim(id int64) storage.StatusUpdate {
	return storage.StatusUpdate{ID: id, From: storage.EventStatusPending, To: storage.EventStatusProcessing, At: processedAt}
}

func TestEventProcessor_ProcessNext_Completed(t *testing.T) {
	mockStore := new(storage.MockStore)
	mockPublisher := new(MockPublisher)

	var received agent.Event
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(_ context.Context, ev agent.Event) agent.Outcome {
			received = ev
			return agent.Succeeded("Review processed successfully", nil)
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(1, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, claim(1)).Return(true, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, storage.StatusUpdate{
		ID: 1, From: storage.EventStatusProcessing, To: storage.EventStatusCompleted, At: processedAt,
	}).Return(true, nil).Once()
	mockStore.On("TouchSubscription", mock.Anything, int64(7), "reviews", processedAt).Return(nil).Once()
	mockPublisher.On("Publish", mock.Anything, mock.MatchedBy(func(n EventNotification) bool {
		return n.EventID == 1 && n.Status == storage.EventStatusCompleted && n.Message == "Review processed successfully"
	})).Return(nil).Once()

	found, err := newTestProcessor(mockStore, factory, mockPublisher).ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, int64(7), received.RestaurantID)
	assert.Equal(t, "review.detected", received.Type)
	assert.JSONEq(t, `{"reviewId":3}`, string(received.Payload))

	mockStore.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_NoEvents(t *testing.T) {
	mockStore := new(storage.MockStore)
	mockPublisher := new(MockPublisher)

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{}, nil).Once()

	found, err := newTestProcessor(mockStore, &stubFactory{}, mockPublisher).ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	mockStore.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "UpdateEventStatus", mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestEventProcessor_ProcessNext_AgentNotAvailable(t *testing.T) {
	tests := []struct {
		name      string
		factory   *stubFactory
		wantError string
	}{
		{
			name:      "not registered",
			factory:   &stubFactory{},
			wantError: "failed to create agent: reviews: agent not registered",
		},
		{
			name:      "not enabled",
			factory:   &stubFactory{err: agent.ErrAgentNotEnabled},
			wantError: "failed to create agent: reviews: agent not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(storage.MockStore)

			mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(2, "reviews")}, nil).Once()
			mockStore.On("UpdateEventStatus", mock.Anything, claim(2)).Return(true, nil).Once()
			mockStore.On("UpdateEventStatus", mock.Anything, storage.StatusUpdate{
				ID: 2, From: storage.EventStatusProcessing, To: storage.EventStatusFailed, Error: tt.wantError, At: processedAt,
			}).Return(true, nil).Once()

			found, err := newTestProcessor(mockStore, tt.factory, nil).ProcessNext(context.Background())
			require.NoError(t, err)
			assert.True(t, found)

			mockStore.AssertExpectations(t)
			mockStore.AssertNotCalled(t, "TouchSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEventProcessor_ProcessNext_AgentFailureWithoutText(t *testing.T) {
	mockStore := new(storage.MockStore)
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			return agent.Outcome{}
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(3, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, claim(3)).Return(true, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, storage.StatusUpdate{
		ID: 3, From: storage.EventStatusProcessing, To: storage.EventStatusFailed, Error: "agent processing failed", At: processedAt,
	}).Return(true, nil).Once()

	_, err := newTestProcessor(mockStore, factory, nil).ProcessNext(context.Background())
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_AgentPanics(t *testing.T) {
	mockStore := new(storage.MockStore)
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			panic("nil map")
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(4, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, claim(4)).Return(true, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, storage.StatusUpdate{
		ID: 4, From: storage.EventStatusProcessing, To: storage.EventStatusFailed, Error: "agent panicked: nil map", At: processedAt,
	}).Return(true, nil).Once()

	_, err := newTestProcessor(mockStore, factory, nil).ProcessNext(context.Background())
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_ClaimLost(t *testing.T) {
	mockStore := new(storage.MockStore)
	called := false
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			called = true
			return agent.Succeeded("done", nil)
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(5, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, claim(5)).Return(false, nil).Once()

	found, err := newTestProcessor(mockStore, factory, nil).ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, called)
	mockStore.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_OldestFirst(t *testing.T) {
	mockStore := new(storage.MockStore)
	var order []int64
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(_ context.Context, ev agent.Event) agent.Outcome {
			order = append(order, ev.ID)
			return agent.Succeeded("done", nil)
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(10, "reviews")}, nil).Once()
	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(11, "reviews")}, nil).Once()
	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, mock.Anything).Return(true, nil)
	mockStore.On("TouchSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p := newTestProcessor(mockStore, factory, nil)
	for {
		found, err := p.ProcessNext(context.Background())
		require.NoError(t, err)
		if !found {
			break
		}
	}

	assert.Equal(t, []int64{10, 11}, order)
	mockStore.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_PublishFailureIsNotFatal(t *testing.T) {
	mockStore := new(storage.MockStore)
	mockPublisher := new(MockPublisher)
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			return agent.Succeeded("done", nil)
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(6, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, mock.Anything).Return(true, nil).Twice()
	mockStore.On("TouchSubscription", mock.Anything, int64(7), "reviews", processedAt).Return(errors.New("db down")).Once()
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	found, err := newTestProcessor(mockStore, factory, mockPublisher).ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	mockStore.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestEventProcessor_ProcessNext_OutcomeDiscardedAfterSweep(t *testing.T) {
	mockStore := new(storage.MockStore)
	mockPublisher := new(MockPublisher)
	factory := &stubFactory{agents: map[string]agent.Agent{
		"reviews": agentFunc(func(context.Context, agent.Event) agent.Outcome {
			return agent.Succeeded("done", nil)
		}),
	}}

	mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(8, "reviews")}, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, claim(8)).Return(true, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, mock.MatchedBy(func(u storage.StatusUpdate) bool {
		return u.From == storage.EventStatusProcessing
	})).Return(false, nil).Once()

	_, err := newTestProcessor(mockStore, factory, mockPublisher).ProcessNext(context.Background())
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestEventProcessor_ProcessNext_StoreErrors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord(nil), errors.New("db down")).Once()

		found, err := newTestProcessor(mockStore, &stubFactory{}, nil).ProcessNext(context.Background())
		assert.Error(t, err)
		assert.False(t, found)
	})

	t.Run("outcome", func(t *testing.T) {
		mockStore := new(storage.MockStore)
		mockStore.On("ListPendingEvents", mock.Anything, 1).Return([]storage.EventRecord{pendingEvent(9, "reviews")}, nil).Once()
		mockStore.On("UpdateEventStatus", mock.Anything, claim(9)).Return(true, nil).Once()
		mockStore.On("UpdateEventStatus", mock.Anything, mock.Anything).Return(false, errors.New("db down")).Once()

		found, err := newTestProcessor(mockStore, &stubFactory{}, nil).ProcessNext(context.Background())
		assert.ErrorContains(t, err, "failed to record outcome of event 9")
		assert.True(t, found)
	})
}
