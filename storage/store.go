package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate record")
)

// Transactor runs fn inside a transaction. Store methods called with the ctx
// passed to fn join that transaction.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTransactor runs fn directly, without a transaction.
type NopTransactor struct{}

func (NopTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// EventStore persists agent events.
type EventStore interface {
	// CreateEvent inserts a new event and returns its id.
	CreateEvent(ctx context.Context, event *EventRecord) (int64, error)
	// GetEvent returns ErrNotFound when no event has the id.
	GetEvent(ctx context.Context, id int64) (*EventRecord, error)
	// ListPendingEvents returns pending events oldest first, ties broken by id.
	ListPendingEvents(ctx context.Context, limit int) ([]EventRecord, error)
	// UpdateEventStatus applies the update only while the event is still in
	// update.From. It reports whether a row was changed.
	UpdateEventStatus(ctx context.Context, update StatusUpdate) (bool, error)
	// FetchStuckEvents returns processing events claimed before the given time.
	FetchStuckEvents(ctx context.Context, claimedBefore time.Time, limit int) ([]EventRecord, error)
}

type TenantStore interface {
	GetRestaurant(ctx context.Context, id int64) (*Restaurant, error)
	// ListMemberships returns the user's staff rows joined with their restaurants.
	ListMemberships(ctx context.Context, userID int64) ([]Membership, error)
	GetStaffMember(ctx context.Context, restaurantID, userID int64) (*StaffMember, error)
	GetSubscription(ctx context.Context, restaurantID int64, agentKey string) (*Subscription, error)
	// SetSubscriptionEnabled creates the subscription when it does not exist.
	SetSubscriptionEnabled(ctx context.Context, restaurantID int64, agentKey string, enabled bool) error
	TouchSubscription(ctx context.Context, restaurantID int64, agentKey string, at time.Time) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, restaurantID, id int64) (*Customer, error)
	FindCustomerByPhone(ctx context.Context, restaurantID int64, phone string) (*Customer, error)
	CreateCustomer(ctx context.Context, customer *Customer) (int64, error)
	// ListInactiveCustomers returns customers whose last interaction is at or before cutoff.
	ListInactiveCustomers(ctx context.Context, restaurantID int64, cutoff time.Time) ([]Customer, error)
}

type ConversationStore interface {
	GetConversation(ctx context.Context, restaurantID, id int64) (*Conversation, error)
	// GetOrCreateOpenConversation is safe against concurrent callers: at most
	// one open conversation exists per restaurant, customer and channel.
	GetOrCreateOpenConversation(ctx context.Context, restaurantID, customerID int64, channel string) (*Conversation, error)
	// CreateMessage inserts the message and bumps the conversation's last_message_at.
	CreateMessage(ctx context.Context, msg *Message) (int64, error)
	// ListRecentMessages returns the latest limit messages in chronological order.
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error)
}

type ReservationStore interface {
	GetReservation(ctx context.Context, restaurantID, id int64) (*Reservation, error)
	CreateReservation(ctx context.Context, r *Reservation) (int64, error)
	MarkConfirmationSent(ctx context.Context, id int64, at time.Time) error
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
	// ListDueReminders returns confirmed reservations starting in [from, to)
	// that have neither a reminder sent nor queued and whose restaurant has
	// agentKey enabled.
	ListDueReminders(ctx context.Context, agentKey string, from, to time.Time, limit int) ([]Reservation, error)
	// MarkReminderQueued reports false when another scheduler already queued it.
	MarkReminderQueued(ctx context.Context, id int64, at time.Time) (bool, error)
}

type ReviewStore interface {
	GetReview(ctx context.Context, restaurantID, id int64) (*Review, error)
	CreateReview(ctx context.Context, r *Review) (int64, error)
	UpdateReviewSentiment(ctx context.Context, id int64, sentiment string) error
	SaveReviewResponse(ctx context.Context, id int64, text, generatedBy string) error
}

type CampaignStore interface {
	GetCampaign(ctx context.Context, restaurantID, id int64) (*Campaign, error)
	// LaunchCampaign moves a campaign that is neither running nor completed to
	// running. It reports false when another launch got there first.
	LaunchCampaign(ctx context.Context, restaurantID, id int64, at time.Time) (bool, error)
	CompleteCampaign(ctx context.Context, id int64, stats CampaignStats, at time.Time) error
}

type MetricStore interface {
	RecordMetric(ctx context.Context, m *Metric) error
}

// Store groups every persistence operation used by the agents and the processor.
type Store interface {
	EventStore
	TenantStore
	CustomerStore
	ConversationStore
	ReservationStore
	ReviewStore
	CampaignStore
	MetricStore

	// EnsureTables creates the schema when it does not exist.
	EnsureTables(ctx context.Context) error
}
