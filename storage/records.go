package storage

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusFailed
}

// CanTransitionTo enforces pending -> processing -> completed|failed.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusPending:
		return next == EventStatusProcessing
	case EventStatusProcessing:
		return next.IsTerminal()
	}
	return false
}

type EventRecord struct {
	ID           int64
	RestaurantID int64
	EventType    string
	// AgentKey is empty when the row has no agent.
	AgentKey    string
	Payload     json.RawMessage
	Status      EventStatus
	Error       string
	ProcessedAt *time.Time
	ClaimedAt   *time.Time
	CreatedAt   time.Time
}

// StatusUpdate moves one event from From to To. At is stored as claimed_at
// for processing and as processed_at for terminal statuses.
type StatusUpdate struct {
	ID    int64
	From  EventStatus
	To    EventStatus
	Error string
	At    time.Time
}

type Restaurant struct {
	ID            int64
	OwnerID       int64
	Name          string
	Description   string
	Address       string
	Phone         string
	Email         string
	WebsiteURL    string
	MenuURL       string
	Timezone      string
	BusinessHours json.RawMessage
}

type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

type Permissions struct {
	Agents           []string `json:"agents,omitempty"`
	CanManageBilling bool     `json:"canManageBilling,omitempty"`
	CanManageStaff   bool     `json:"canManageStaff,omitempty"`
	CanViewAnalytics bool     `json:"canViewAnalytics,omitempty"`
}

type StaffMember struct {
	ID           int64
	RestaurantID int64
	UserID       int64
	Role         Role
	Permissions  Permissions
	IsActive     bool
}

type Membership struct {
	Restaurant Restaurant
	Staff      StaffMember
}

type Subscription struct {
	ID            int64
	RestaurantID  int64
	AgentKey      string
	IsEnabled     bool
	Configuration map[string]any
	SubscribedAt  time.Time
	LastActiveAt  *time.Time
}

type Customer struct {
	ID                int64
	RestaurantID      int64
	Name              string
	Phone             string
	Email             string
	Tags              []string
	TotalReservations int
	LastInteractionAt *time.Time
	CreatedAt         time.Time
}

const (
	ChannelWhatsApp = "whatsapp"
	ChannelWeb      = "web"

	ConversationOpen = "open"
)

type Conversation struct {
	ID            int64
	RestaurantID  int64
	CustomerID    int64
	Channel       string
	Status        string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Message struct {
	ID             int64
	ConversationID int64
	Direction      string
	Content        string
	MessageType    string
	AgentKey       string
	ExternalID     string
	Status         string
	CreatedAt      time.Time
}

const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

type Reservation struct {
	ID                 int64
	RestaurantID       int64
	CustomerID         int64
	ReservationDate    time.Time
	PartySize          int
	SpecialRequests    string
	Status             string
	Source             string
	ConfirmationSentAt *time.Time
	ReminderSentAt     *time.Time
	ReminderQueuedAt   *time.Time
	CreatedAt          time.Time
}

type Review struct {
	ID                  int64
	RestaurantID        int64
	Platform            string
	ExternalID          string
	AuthorName          string
	Rating              int
	ReviewText          string
	ReviewDate          time.Time
	ResponseText        string
	ResponseGeneratedBy string
	Sentiment           string
	CreatedAt           time.Time
}

const (
	CampaignDraft     = "draft"
	CampaignRunning   = "running"
	CampaignCompleted = "completed"
)

// Audience selects campaign recipients. Nil fields take the agent's defaults.
type Audience struct {
	InactiveDays    *int     `json:"inactiveDays,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	MinReservations *int     `json:"minReservations,omitempty"`
}

type CampaignStats struct {
	Targeted  int `json:"targeted"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Replied   int `json:"replied"`
}

type Campaign struct {
	ID              int64
	RestaurantID    int64
	Name            string
	MessageTemplate string
	TargetAudience  Audience
	Status          string
	CompletedAt     *time.Time
	Stats           *CampaignStats
	CreatedAt       time.Time
}

type Metric struct {
	RestaurantID int64
	AgentKey     string
	MetricType   string
	MetricValue  string
	Dimensions   map[string]any
	RecordedAt   time.Time
}
