package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

// ErrNoPhone is returned by SendMessage when the customer cannot be reached.
var ErrNoPhone = errors.New("customer phone not found")

const metricAgentActivity = "agent_activity"

// Deps are the collaborators shared by every agent instance.
type Deps struct {
	Store      storage.Store
	Completer  completion.Completer
	Transactor storage.Transactor
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Transactor == nil {
		d.Transactor = storage.NopTransactor{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Base carries the per-invocation context and the capabilities agents share.
type Base struct {
	deps   Deps
	ctx    Context
	logger *zap.Logger
}

func NewBase(deps Deps, c Context) *Base {
	deps = deps.withDefaults()
	return &Base{
		deps: deps,
		ctx:  c,
		logger: deps.Logger.With(
			zap.String("agent_key", c.AgentKey),
			zap.Int64("restaurant_id", c.RestaurantID),
		),
	}
}

func (b *Base) Context() Context { return b.ctx }

func (b *Base) RestaurantID() int64 { return b.ctx.RestaurantID }

func (b *Base) Store() storage.Store { return b.deps.Store }

func (b *Base) Logger() *zap.Logger { return b.logger }

func (b *Base) Now() time.Time { return b.deps.Now() }

func (b *Base) Transactor() storage.Transactor { return b.deps.Transactor }

// InTx runs fn in a transaction; store calls made with the inner ctx join it.
func (b *Base) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.deps.Transactor.Do(ctx, fn)
}

func (b *Base) Restaurant(ctx context.Context) (*storage.Restaurant, error) {
	return b.deps.Store.GetRestaurant(ctx, b.ctx.RestaurantID)
}

// CallLLM prefixes messages with the restaurant's identity and sends them to
// the completion service.
func (b *Base) CallLLM(ctx context.Context, messages []completion.Message) (*completion.Response, error) {
	if b.deps.Completer == nil {
		return nil, errors.New("no completion service configured")
	}
	restaurant, err := b.Restaurant(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	all := make([]completion.Message, 0, len(messages)+1)
	all = append(all, completion.Message{Role: completion.RoleSystem, Content: systemPreamble(restaurant)})
	all = append(all, messages...)
	return b.deps.Completer.Complete(ctx, all)
}

func systemPreamble(r *storage.Restaurant) string {
	if r == nil {
		r = &storage.Restaurant{}
	}
	name := orDefault(r.Name, "a restaurant")
	hours := "{}"
	if len(r.BusinessHours) > 0 {
		hours = string(r.BusinessHours)
	}
	return fmt.Sprintf(`You are an AI assistant for %s.

Restaurant Information:
- Name: %s
- Address: %s
- Phone: %s
- Business Hours: %s
- Description: %s
- Menu URL: %s
- Website: %s

Always respond in a professional, friendly manner representing the restaurant.`,
		name,
		r.Name,
		orDefault(r.Address, "Not provided"),
		orDefault(r.Phone, "Not provided"),
		hours,
		orDefault(r.Description, "Not provided"),
		orDefault(r.MenuURL, "Not provided"),
		orDefault(r.WebsiteURL, "Not provided"),
	)
}

// SendMessage records an outbound WhatsApp message to the customer in their
// open conversation. Delivery to the provider is not performed here.
func (b *Base) SendMessage(ctx context.Context, customerID int64, content string) error {
	customer, err := b.deps.Store.GetCustomer(ctx, b.ctx.RestaurantID, customerID)
	if err != nil {
		return fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}
	if customer.Phone == "" {
		return ErrNoPhone
	}

	conversation, err := b.deps.Store.GetOrCreateOpenConversation(ctx, b.ctx.RestaurantID, customerID, storage.ChannelWhatsApp)
	if err != nil {
		return fmt.Errorf("failed to get conversation: %w", err)
	}

	_, err = b.deps.Store.CreateMessage(ctx, &storage.Message{
		ConversationID: conversation.ID,
		Direction:      storage.DirectionOutbound,
		Content:        content,
		MessageType:    "text",
		AgentKey:       b.ctx.AgentKey,
		ExternalID:     b.deps.NewID(),
	})
	if err != nil {
		return fmt.Errorf("failed to record outbound message: %w", err)
	}

	b.LogActivity(ctx, "WhatsApp message sent", map[string]any{
		"customerId":     customerID,
		"conversationId": conversation.ID,
	})
	return nil
}

// LogActivity logs and records an agent_activity metric. Recording failures
// are logged and otherwise ignored.
func (b *Base) LogActivity(ctx context.Context, message string, dims map[string]any) {
	b.logger.Info(message, zap.Any("dimensions", dims))

	all := make(map[string]any, len(dims)+1)
	all["message"] = message
	for k, v := range dims {
		all[k] = v
	}
	err := b.deps.Store.RecordMetric(ctx, &storage.Metric{
		RestaurantID: b.ctx.RestaurantID,
		AgentKey:     b.ctx.AgentKey,
		MetricType:   metricAgentActivity,
		MetricValue:  "1",
		Dimensions:   all,
		RecordedAt:   b.Now(),
	})
	if err != nil {
		b.logger.Warn("Failed to record agent activity", zap.String("message", message), zap.Error(err))
	}
}

// Enqueue stores a follow-up event for this restaurant.
func (b *Base) Enqueue(ctx context.Context, eventType, agentKey string, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return b.deps.Store.CreateEvent(ctx, &storage.EventRecord{
		RestaurantID: b.ctx.RestaurantID,
		EventType:    eventType,
		AgentKey:     agentKey,
		Payload:      raw,
		Status:       storage.EventStatusPending,
	})
}

func (b *Base) ConfigBool(key string, def bool) bool {
	v, ok := b.ctx.Configuration[key].(bool)
	if !ok {
		return def
	}
	return v
}

func (b *Base) ConfigInt(key string, def int) int {
	switch v := b.ctx.Configuration[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
