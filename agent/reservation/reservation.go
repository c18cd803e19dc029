// Package reservation confirms bookings, sends reminders and turns inbound
// WhatsApp messages into reservations.
package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

const (
	Key = "reservation"

	defaultPartySize = 2
	historyLimit     = 10
	sourceWhatsApp   = "whatsapp"
)

type event interface{ isReservationEvent() }

type created struct {
	ReservationID int64 `json:"reservationId"`
}

type reminder struct {
	ReservationID int64 `json:"reservationId"`
}

type messageReceived struct {
	MessageID      int64 `json:"messageId"`
	ConversationID int64 `json:"conversationId"`
}

func (created) isReservationEvent()         {}
func (reminder) isReservationEvent()        {}
func (messageReceived) isReservationEvent() {}

// decode returns a nil event for types this agent does not handle.
func decode(ev agent.Event) (event, error) {
	var e event
	switch ev.Type {
	case agent.EventReservationCreated:
		e = &created{}
	case agent.EventReservationReminder:
		e = &reminder{}
	case agent.EventMessageReceived:
		e = &messageReceived{}
	default:
		return nil, nil
	}
	if err := ev.Decode(e); err != nil {
		return nil, err
	}
	return e, nil
}

type Agent struct {
	*agent.Base
}

func New(base *agent.Base) agent.Agent {
	return &Agent{Base: base}
}

func (a *Agent) ProcessEvent(ctx context.Context, ev agent.Event) agent.Outcome {
	e, err := decode(ev)
	if err != nil {
		return agent.Failed("%v", err)
	}

	switch e := e.(type) {
	case *created:
		return a.confirm(ctx, e.ReservationID)
	case *reminder:
		return a.remind(ctx, e.ReservationID)
	case *messageReceived:
		return a.handleMessage(ctx, e)
	default:
		return agent.UnknownEventType(ev.Type)
	}
}

func (a *Agent) confirm(ctx context.Context, reservationID int64) agent.Outcome {
	res, customer, out, ok := a.load(ctx, reservationID)
	if !ok {
		return out
	}

	text := confirmationText(res, customer, a.restaurant(ctx))
	sendErr, err := a.sendAndMark(ctx, customer.ID, text, func(ctx context.Context) error {
		return a.Store().MarkConfirmationSent(ctx, reservationID, a.Now())
	})
	if sendErr != nil {
		a.Logger().Warn("Failed to send reservation confirmation",
			zap.Int64("reservation_id", reservationID), zap.Error(sendErr))
		return agent.Failed("Failed to send confirmation")
	}
	if err != nil {
		return agent.Failed("failed to mark reservation %d confirmed: %v", reservationID, err)
	}
	a.LogActivity(ctx, "Reservation confirmed", map[string]any{"reservationId": reservationID})

	return agent.Succeeded("Confirmation sent successfully", map[string]any{"reservationId": reservationID})
}

func (a *Agent) remind(ctx context.Context, reservationID int64) agent.Outcome {
	res, err := a.Store().GetReservation(ctx, a.RestaurantID(), reservationID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return agent.Failed("failed to load reservation %d: %v", reservationID, err)
	}
	if res == nil || res.Status != storage.ReservationConfirmed {
		return agent.Failed("Reservation not valid for reminder")
	}

	customer, out, ok := a.customer(ctx, res.CustomerID)
	if !ok {
		return out
	}

	text := reminderText(res, customer, a.restaurant(ctx))
	sendErr, err := a.sendAndMark(ctx, customer.ID, text, func(ctx context.Context) error {
		return a.Store().MarkReminderSent(ctx, reservationID, a.Now())
	})
	if sendErr != nil {
		a.Logger().Warn("Failed to send reservation reminder",
			zap.Int64("reservation_id", reservationID), zap.Error(sendErr))
		return agent.Failed("Failed to send reminder")
	}
	if err != nil {
		return agent.Failed("failed to mark reminder sent for reservation %d: %v", reservationID, err)
	}
	a.LogActivity(ctx, "Reminder sent", map[string]any{"reservationId": reservationID})

	return agent.Succeeded("Reminder sent successfully", map[string]any{"reservationId": reservationID})
}

// load fetches the reservation and its customer, both scoped to the restaurant.
// sendAndMark records the outbound message and marks the reservation in one
// transaction. sendErr is set when the message itself could not be recorded.
func (a *Agent) sendAndMark(ctx context.Context, customerID int64, text string, mark func(ctx context.Context) error) (sendErr, err error) {
	err = a.InTx(ctx, func(ctx context.Context) error {
		if sendErr = a.SendMessage(ctx, customerID, text); sendErr != nil {
			return sendErr
		}
		return mark(ctx)
	})
	return sendErr, err
}

func (a *Agent) load(ctx context.Context, reservationID int64) (*storage.Reservation, *storage.Customer, agent.Outcome, bool) {
	res, err := a.Store().GetReservation(ctx, a.RestaurantID(), reservationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, agent.Failed("Reservation not found"), false
	}
	if err != nil {
		return nil, nil, agent.Failed("failed to load reservation %d: %v", reservationID, err), false
	}

	customer, out, ok := a.customer(ctx, res.CustomerID)
	if !ok {
		return nil, nil, out, false
	}
	return res, customer, agent.Outcome{}, true
}

func (a *Agent) customer(ctx context.Context, customerID int64) (*storage.Customer, agent.Outcome, bool) {
	customer, err := a.Store().GetCustomer(ctx, a.RestaurantID(), customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, agent.Failed("Customer not found"), false
	}
	if err != nil {
		return nil, agent.Failed("failed to load customer %d: %v", customerID, err), false
	}
	return customer, agent.Outcome{}, true
}

func (a *Agent) restaurant(ctx context.Context) *storage.Restaurant {
	r, err := a.Restaurant(ctx)
	if err != nil {
		a.Logger().Warn("Failed to load restaurant", zap.Error(err))
		return &storage.Restaurant{}
	}
	return r
}

func (a *Agent) handleMessage(ctx context.Context, e *messageReceived) agent.Outcome {
	conversation, err := a.Store().GetConversation(ctx, a.RestaurantID(), e.ConversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return agent.Failed("Conversation not found")
	}
	if err != nil {
		return agent.Failed("failed to load conversation %d: %v", e.ConversationID, err)
	}

	messages, err := a.Store().ListRecentMessages(ctx, conversation.ID, historyLimit)
	if err != nil {
		return agent.Failed("failed to load messages: %v", err)
	}
	if len(messages) == 0 || messages[len(messages)-1].Direction != storage.DirectionInbound {
		return agent.Failed("No inbound message found")
	}
	last := messages[len(messages)-1]

	in := a.parseIntent(ctx, last.Content)
	if !in.IsReservation {
		return agent.Succeeded("Not a reservation request", nil)
	}

	res := &storage.Reservation{
		RestaurantID:    a.RestaurantID(),
		CustomerID:      conversation.CustomerID,
		ReservationDate: in.date(a.Now()),
		PartySize:       in.PartySize,
		SpecialRequests: in.SpecialRequests,
		Status:          storage.ReservationPending,
		Source:          sourceWhatsApp,
	}
	if res.PartySize <= 0 {
		res.PartySize = defaultPartySize
	}

	var reservationID int64
	err = a.InTx(ctx, func(ctx context.Context) error {
		id, err := a.Store().CreateReservation(ctx, res)
		if err != nil {
			return err
		}
		reservationID = id
		_, err = a.Enqueue(ctx, agent.EventReservationCreated, Key, created{ReservationID: id})
		return err
	})
	if err != nil {
		return agent.Failed("failed to create reservation: %v", err)
	}

	a.LogActivity(ctx, "Reservation created from message", map[string]any{
		"reservationId":  reservationID,
		"conversationId": conversation.ID,
	})
	return agent.Succeeded("Reservation created and confirmation triggered", map[string]any{
		"reservationId": reservationID,
	})
}

type intent struct {
	IsReservation   bool   `json:"isReservation"`
	Date            string `json:"date"`
	PartySize       int    `json:"partySize"`
	SpecialRequests string `json:"specialRequests"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// date returns the requested date, or now when it is missing or unparseable.
func (in intent) date(now time.Time) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(in.Date)); err == nil {
			return t
		}
	}
	return now
}

// parseIntent asks the LLM whether the message is a booking request. Any
// failure is treated as "not a reservation".
func (a *Agent) parseIntent(ctx context.Context, message string) intent {
	resp, err := a.CallLLM(ctx, []completion.Message{{
		Role:    completion.RoleUser,
		Content: intentPrompt(message),
	}})
	if err != nil {
		a.Logger().Warn("Failed to parse reservation intent", zap.Error(err))
		return intent{}
	}

	var in intent
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Content())), &in); err != nil {
		a.Logger().Warn("Failed to parse reservation intent", zap.Error(err))
		return intent{}
	}
	return in
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
