package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

var fixedNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newTestBase(store storage.Store, completer completion.Completer, config map[string]any) *Base {
	return NewBase(Deps{
		Store:     store,
		Completer: completer,
		Now:       func() time.Time { return fixedNow },
		NewID:     func() string { return "ext-1" },
	}, Context{RestaurantID: 1, AgentKey: "support", Configuration: config})
}

func TestBase_SendMessage(t *testing.T) {
	mockStore := new(storage.MockStore)
	b := newTestBase(mockStore, nil, nil)

	mockStore.On("GetCustomer", mock.Anything, int64(1), int64(9)).
		Return(&storage.Customer{ID: 9, Phone: "+15550100"}, nil).Once()
	mockStore.On("GetOrCreateOpenConversation", mock.Anything, int64(1), int64(9), storage.ChannelWhatsApp).
		Return(&storage.Conversation{ID: 3}, nil).Once()
	mockStore.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m *storage.Message) bool {
		return m.ConversationID == 3 &&
			m.Direction == storage.DirectionOutbound &&
			m.Content == "hello" &&
			m.AgentKey == "support" &&
			m.ExternalID == "ext-1"
	})).Return(int64(11), nil).Once()
	mockStore.On("RecordMetric", mock.Anything, mock.MatchedBy(func(m *storage.Metric) bool {
		return m.MetricType == "agent_activity" && m.Dimensions["message"] == "WhatsApp message sent"
	})).Return(nil).Once()

	require.NoError(t, b.SendMessage(context.Background(), 9, "hello"))
	mockStore.AssertExpectations(t)
}

func TestBase_SendMessage_NoPhone(t *testing.T) {
	mockStore := new(storage.MockStore)
	b := newTestBase(mockStore, nil, nil)

	mockStore.On("GetCustomer", mock.Anything, int64(1), int64(9)).
		Return(&storage.Customer{ID: 9}, nil).Once()

	err := b.SendMessage(context.Background(), 9, "hello")
	assert.ErrorIs(t, err, ErrNoPhone)
	mockStore.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestBase_LogActivity_MetricFailureIgnored(t *testing.T) {
	mockStore := new(storage.MockStore)
	b := newTestBase(mockStore, nil, nil)

	mockStore.On("RecordMetric", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	assert.NotPanics(t, func() {
		b.LogActivity(context.Background(), "Something happened", map[string]any{"k": 1})
	})
	mockStore.AssertExpectations(t)
}

func TestBase_CallLLM_PrependsRestaurant(t *testing.T) {
	mockStore := new(storage.MockStore)
	var got []completion.Message
	completer := completion.CompleterFunc(func(_ context.Context, msgs []completion.Message) (*completion.Response, error) {
		got = msgs
		return &completion.Response{Choices: []completion.Choice{{Message: completion.Message{Content: "ok"}}}}, nil
	})
	b := newTestBase(mockStore, completer, nil)

	mockStore.On("GetRestaurant", mock.Anything, int64(1)).
		Return(&storage.Restaurant{ID: 1, Name: "Casa Tux", Phone: "+15550199"}, nil).Once()

	resp, err := b.CallLLM(context.Background(), []completion.Message{{Role: completion.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())

	require.Len(t, got, 2)
	assert.Equal(t, completion.RoleSystem, got[0].Role)
	assert.Contains(t, got[0].Content, "You are an AI assistant for Casa Tux.")
	assert.Contains(t, got[0].Content, "- Phone: +15550199")
	assert.Contains(t, got[0].Content, "- Address: Not provided")
	assert.Equal(t, "hi", got[1].Content)
}

func TestBase_Enqueue(t *testing.T) {
	mockStore := new(storage.MockStore)
	b := newTestBase(mockStore, nil, nil)

	mockStore.On("CreateEvent", mock.Anything, mock.MatchedBy(func(e *storage.EventRecord) bool {
		return e.RestaurantID == 1 &&
			e.EventType == EventReviewGenerateResponse &&
			e.AgentKey == "reviews" &&
			e.Status == storage.EventStatusPending &&
			string(e.Payload) == `{"reviewId":4}`
	})).Return(int64(21), nil).Once()

	id, err := b.Enqueue(context.Background(), EventReviewGenerateResponse, "reviews", map[string]int64{"reviewId": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(21), id)
}

func TestBase_Config(t *testing.T) {
	b := newTestBase(nil, nil, map[string]any{
		"autoRespond": true,
		"sendDelayMs": float64(250),
		"bad":         "x",
	})

	assert.True(t, b.ConfigBool("autoRespond", false))
	assert.True(t, b.ConfigBool("missing", true))
	assert.Equal(t, 250, b.ConfigInt("sendDelayMs", 1000))
	assert.Equal(t, 1000, b.ConfigInt("bad", 1000))
}
