package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing.
type MockStore struct {
	mock.Mock
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) CreateEvent(ctx context.Context, event *EventRecord) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetEvent(ctx context.Context, id int64) (*EventRecord, error) {
	args := m.Called(ctx, id)
	ev, _ := args.Get(0).(*EventRecord)
	return ev, args.Error(1)
}

func (m *MockStore) ListPendingEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) UpdateEventStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	args := m.Called(ctx, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FetchStuckEvents(ctx context.Context, claimedBefore time.Time, limit int) ([]EventRecord, error) {
	args := m.Called(ctx, claimedBefore, limit)
	return args.Get(0).([]EventRecord), args.Error(1)
}

func (m *MockStore) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*Restaurant)
	return r, args.Error(1)
}

func (m *MockStore) ListMemberships(ctx context.Context, userID int64) ([]Membership, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Membership), args.Error(1)
}

func (m *MockStore) GetStaffMember(ctx context.Context, restaurantID, userID int64) (*StaffMember, error) {
	args := m.Called(ctx, restaurantID, userID)
	s, _ := args.Get(0).(*StaffMember)
	return s, args.Error(1)
}

func (m *MockStore) GetSubscription(ctx context.Context, restaurantID int64, agentKey string) (*Subscription, error) {
	args := m.Called(ctx, restaurantID, agentKey)
	s, _ := args.Get(0).(*Subscription)
	return s, args.Error(1)
}

func (m *MockStore) SetSubscriptionEnabled(ctx context.Context, restaurantID int64, agentKey string, enabled bool) error {
	args := m.Called(ctx, restaurantID, agentKey, enabled)
	return args.Error(0)
}

func (m *MockStore) TouchSubscription(ctx context.Context, restaurantID int64, agentKey string, at time.Time) error {
	args := m.Called(ctx, restaurantID, agentKey, at)
	return args.Error(0)
}

func (m *MockStore) GetCustomer(ctx context.Context, restaurantID, id int64) (*Customer, error) {
	args := m.Called(ctx, restaurantID, id)
	c, _ := args.Get(0).(*Customer)
	return c, args.Error(1)
}

func (m *MockStore) FindCustomerByPhone(ctx context.Context, restaurantID int64, phone string) (*Customer, error) {
	args := m.Called(ctx, restaurantID, phone)
	c, _ := args.Get(0).(*Customer)
	return c, args.Error(1)
}

func (m *MockStore) CreateCustomer(ctx context.Context, customer *Customer) (int64, error) {
	args := m.Called(ctx, customer)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListInactiveCustomers(ctx context.Context, restaurantID int64, cutoff time.Time) ([]Customer, error) {
	args := m.Called(ctx, restaurantID, cutoff)
	return args.Get(0).([]Customer), args.Error(1)
}

func (m *MockStore) GetConversation(ctx context.Context, restaurantID, id int64) (*Conversation, error) {
	args := m.Called(ctx, restaurantID, id)
	c, _ := args.Get(0).(*Conversation)
	return c, args.Error(1)
}

func (m *MockStore) GetOrCreateOpenConversation(ctx context.Context, restaurantID, customerID int64, channel string) (*Conversation, error) {
	args := m.Called(ctx, restaurantID, customerID, channel)
	c, _ := args.Get(0).(*Conversation)
	return c, args.Error(1)
}

func (m *MockStore) CreateMessage(ctx context.Context, msg *Message) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	args := m.Called(ctx, conversationID, limit)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockStore) GetReservation(ctx context.Context, restaurantID, id int64) (*Reservation, error) {
	args := m.Called(ctx, restaurantID, id)
	r, _ := args.Get(0).(*Reservation)
	return r, args.Error(1)
}

func (m *MockStore) CreateReservation(ctx context.Context, r *Reservation) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) MarkConfirmationSent(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) ListDueReminders(ctx context.Context, agentKey string, from, to time.Time, limit int) ([]Reservation, error) {
	args := m.Called(ctx, agentKey, from, to, limit)
	return args.Get(0).([]Reservation), args.Error(1)
}

func (m *MockStore) MarkReminderQueued(ctx context.Context, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetReview(ctx context.Context, restaurantID, id int64) (*Review, error) {
	args := m.Called(ctx, restaurantID, id)
	r, _ := args.Get(0).(*Review)
	return r, args.Error(1)
}

func (m *MockStore) CreateReview(ctx context.Context, r *Review) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpdateReviewSentiment(ctx context.Context, id int64, sentiment string) error {
	args := m.Called(ctx, id, sentiment)
	return args.Error(0)
}

func (m *MockStore) SaveReviewResponse(ctx context.Context, id int64, text, generatedBy string) error {
	args := m.Called(ctx, id, text, generatedBy)
	return args.Error(0)
}

func (m *MockStore) GetCampaign(ctx context.Context, restaurantID, id int64) (*Campaign, error) {
	args := m.Called(ctx, restaurantID, id)
	c, _ := args.Get(0).(*Campaign)
	return c, args.Error(1)
}

func (m *MockStore) LaunchCampaign(ctx context.Context, restaurantID, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, restaurantID, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CompleteCampaign(ctx context.Context, id int64, stats CampaignStats, at time.Time) error {
	args := m.Called(ctx, id, stats, at)
	return args.Error(0)
}

func (m *MockStore) RecordMetric(ctx context.Context, metric *Metric) error {
	args := m.Called(ctx, metric)
	return args.Error(0)
}

func (m *MockStore) EnsureTables(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
