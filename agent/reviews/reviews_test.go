package reviews

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

func newAgent(store *storage.MockStore, completer completion.Completer, config map[string]any) agent.Agent {
	return New(agent.NewBase(agent.Deps{Store: store, Completer: completer},
		agent.Context{RestaurantID: 1, AgentKey: Key, Configuration: config}))
}

func reviewEvent(eventType string) agent.Event {
	return agent.Event{ID: 1, RestaurantID: 1, Type: eventType, Payload: []byte(`{"reviewId": 4}`)}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		rating int
		want   string
	}{
		{5, SentimentPositive},
		{4, SentimentPositive},
		{3, SentimentNeutral},
		{2, SentimentNegative},
		{1, SentimentNegative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sentiment(tt.rating), "rating %d", tt.rating)
	}
}

func TestAgent_Detected_NegativeWithAutoRespond(t *testing.T) {
	mockStore := new(storage.MockStore)
	a := newAgent(mockStore, nil, map[string]any{"autoRespond": true})

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).
		Return(&storage.Review{ID: 4, Rating: 1, Platform: "google"}, nil).Once()
	mockStore.On("UpdateReviewSentiment", mock.Anything, int64(4), SentimentNegative).Return(nil).Once()
	mockStore.On("RecordMetric", mock.Anything, mock.MatchedBy(func(m *storage.Metric) bool {
		return m.Dimensions["message"] == "Negative review detected" && m.Dimensions["platform"] == "google"
	})).Return(nil).Once()
	mockStore.On("CreateEvent", mock.Anything, mock.MatchedBy(func(e *storage.EventRecord) bool {
		return e.EventType == agent.EventReviewGenerateResponse &&
			e.AgentKey == Key &&
			string(e.Payload) == `{"reviewId":4}`
	})).Return(int64(12), nil).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewDetected))
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "Review processed successfully", out.Message)
	assert.Equal(t, SentimentNegative, out.Data["sentiment"])
	mockStore.AssertExpectations(t)
}

func TestAgent_Detected_PositiveNoAutoRespond(t *testing.T) {
	mockStore := new(storage.MockStore)
	a := newAgent(mockStore, nil, nil)

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).
		Return(&storage.Review{ID: 4, Rating: 5}, nil).Once()
	mockStore.On("UpdateReviewSentiment", mock.Anything, int64(4), SentimentPositive).Return(nil).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewDetected))
	assert.True(t, out.Success)
	mockStore.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "RecordMetric", mock.Anything, mock.Anything)
}

func TestAgent_GenerateResponse(t *testing.T) {
	mockStore := new(storage.MockStore)

	var prompt string
	llm := completion.CompleterFunc(func(_ context.Context, msgs []completion.Message) (*completion.Response, error) {
		prompt = msgs[len(msgs)-1].Content
		return &completion.Response{Choices: []completion.Choice{{Message: completion.Message{Content: "Thanks, Bo!"}}}}, nil
	})
	a := newAgent(mockStore, llm, nil)

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).
		Return(&storage.Review{ID: 4, Rating: 5, Platform: "yelp", ReviewText: "Great pasta", AuthorName: "Bo"}, nil).Once()
	mockStore.On("GetRestaurant", mock.Anything, int64(1)).Return(&storage.Restaurant{ID: 1, Name: "Casa Tux"}, nil)
	mockStore.On("SaveReviewResponse", mock.Anything, int64(4), "Thanks, Bo!", "ai").Return(nil).Once()
	mockStore.On("RecordMetric", mock.Anything, mock.Anything).Return(nil).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewGenerateResponse))
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "Thanks, Bo!", out.Data["responseText"])
	assert.Contains(t, prompt, "Rating: 5/5 stars")
	assert.Contains(t, prompt, "Reviewer: Bo")
	mockStore.AssertExpectations(t)
}

func TestAgent_GenerateResponse_Fallback(t *testing.T) {
	mockStore := new(storage.MockStore)
	llm := completion.CompleterFunc(func(context.Context, []completion.Message) (*completion.Response, error) {
		return nil, errors.New("timeout")
	})
	a := newAgent(mockStore, llm, nil)

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).Return(&storage.Review{ID: 4, Rating: 2}, nil).Once()
	mockStore.On("GetRestaurant", mock.Anything, int64(1)).Return(&storage.Restaurant{ID: 1}, nil)
	mockStore.On("SaveReviewResponse", mock.Anything, int64(4), fallbackResponse, "ai").Return(nil).Once()
	mockStore.On("RecordMetric", mock.Anything, mock.Anything).Return(nil).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewGenerateResponse))
	assert.True(t, out.Success, out.Error)
	mockStore.AssertExpectations(t)
}

func TestAgent_GenerateResponse_AlreadyAnswered(t *testing.T) {
	mockStore := new(storage.MockStore)
	a := newAgent(mockStore, completion.Static("x"), nil)

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).
		Return(&storage.Review{ID: 4, Rating: 4, ResponseText: "Thanks!"}, nil).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewGenerateResponse))
	assert.False(t, out.Success)
	assert.Equal(t, "Review already has a response", out.Error)
	mockStore.AssertNotCalled(t, "SaveReviewResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAgent_ReviewNotFound(t *testing.T) {
	mockStore := new(storage.MockStore)
	a := newAgent(mockStore, nil, nil)

	mockStore.On("GetReview", mock.Anything, int64(1), int64(4)).Return(nil, storage.ErrNotFound).Once()

	out := a.ProcessEvent(context.Background(), reviewEvent(agent.EventReviewDetected))
	assert.Equal(t, "Review not found", out.Error)
}
