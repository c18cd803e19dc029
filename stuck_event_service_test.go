package tuxeai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
)

var sweepTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestStuckEventService(store storage.EventStore) *StuckEventService {
	s := NewStuckEventService(store, zap.NewNop(), nil,
		WithStuckEventServiceBatchSize(10),
		WithStuckEventServiceStuckTimeout(10*time.Minute),
	)
	s.now = func() time.Time { return sweepTime }
	return s
}

func failStuck(id int64) storage.StatusUpdate {
	return storage.StatusUpdate{
		ID:    id,
		From:  storage.EventStatusProcessing,
		To:    storage.EventStatusFailed,
		Error: "processing timed out",
		At:    sweepTime,
	}
}

func TestStuckEventService_RecoverStuckEvents_HappyPath(t *testing.T) {
	mockStore := new(storage.MockStore)
	cutoff := sweepTime.Add(-10 * time.Minute)

	events := []storage.EventRecord{
		{ID: 1, Status: storage.EventStatusProcessing},
		{ID: 2, Status: storage.EventStatusProcessing},
	}
	mockStore.On("FetchStuckEvents", mock.Anything, cutoff, 10).Return(events, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, failStuck(1)).Return(true, nil).Once()
	// event 2 finished between the fetch and the update
	mockStore.On("UpdateEventStatus", mock.Anything, failStuck(2)).Return(false, nil).Once()

	err := newTestStuckEventService(mockStore).RecoverStuckEvents(context.Background())
	assert.NoError(t, err)

	mockStore.AssertExpectations(t)
}

func TestStuckEventService_RecoverStuckEvents_NoEvents(t *testing.T) {
	mockStore := new(storage.MockStore)

	mockStore.On("FetchStuckEvents", mock.Anything, mock.Anything, 10).Return([]storage.EventRecord{}, nil).Once()

	err := newTestStuckEventService(mockStore).RecoverStuckEvents(context.Background())
	assert.NoError(t, err)

	mockStore.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "UpdateEventStatus", mock.Anything, mock.Anything)
}

func TestStuckEventService_RecoverStuckEvents_StoreFetchFails(t *testing.T) {
	mockStore := new(storage.MockStore)

	mockStore.On("FetchStuckEvents", mock.Anything, mock.Anything, 10).Return([]storage.EventRecord(nil), errors.New("db is down")).Once()

	err := newTestStuckEventService(mockStore).RecoverStuckEvents(context.Background())
	assert.EqualError(t, err, "failed to fetch stuck events: db is down")

	mockStore.AssertExpectations(t)
}

func TestStuckEventService_RecoverStuckEvents_UpdateFailsContinues(t *testing.T) {
	mockStore := new(storage.MockStore)

	events := []storage.EventRecord{{ID: 1}, {ID: 2}}
	mockStore.On("FetchStuckEvents", mock.Anything, mock.Anything, 10).Return(events, nil).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, failStuck(1)).Return(false, errors.New("deadlock")).Once()
	mockStore.On("UpdateEventStatus", mock.Anything, failStuck(2)).Return(true, nil).Once()

	err := newTestStuckEventService(mockStore).RecoverStuckEvents(context.Background())
	assert.NoError(t, err)

	mockStore.AssertExpectations(t)
}
