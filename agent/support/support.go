// Package support answers customer questions over WhatsApp.
package support

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

const (
	Key = "support"

	historyLimit = 20
	contextTurns = 10
)

const systemPrompt = `You are a helpful customer support assistant for the restaurant.

Your responsibilities:
- Answer questions about menu, business hours, location, and general information
- Be friendly, professional, and concise
- If you don't know something, politely say so and offer to have staff contact them
- Keep responses under 200 words
- Use emojis sparingly and appropriately
- Always end with an offer to help further

DO NOT:
- Make up information you don't have
- Promise things you can't deliver
- Handle reservations (that's handled by another agent)`

const (
	emptyReplyFallback = "I apologize, but I am having trouble processing your request. Please try again or contact us directly."
	errorReplyFallback = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment, or feel free to call us directly."
)

type event interface{ isSupportEvent() }

type messageReceived struct {
	MessageID      int64 `json:"messageId"`
	ConversationID int64 `json:"conversationId"`
}

func (messageReceived) isSupportEvent() {}

func decode(ev agent.Event) (event, error) {
	if ev.Type != agent.EventMessageReceived {
		return nil, nil
	}
	e := &messageReceived{}
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
	case *messageReceived:
		return a.reply(ctx, e.ConversationID)
	default:
		return agent.UnknownEventType(ev.Type)
	}
}

func (a *Agent) reply(ctx context.Context, conversationID int64) agent.Outcome {
	conversation, err := a.Store().GetConversation(ctx, a.RestaurantID(), conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return agent.Failed("Conversation not found")
	}
	if err != nil {
		return agent.Failed("failed to load conversation %d: %v", conversationID, err)
	}

	messages, err := a.Store().ListRecentMessages(ctx, conversation.ID, historyLimit)
	if err != nil {
		return agent.Failed("failed to load messages: %v", err)
	}
	if len(messages) == 0 || messages[len(messages)-1].Direction != storage.DirectionInbound {
		return agent.Failed("No inbound message found")
	}

	answer := a.generate(ctx, history(messages))
	if err := a.SendMessage(ctx, conversation.CustomerID, answer); err != nil {
		a.Logger().Warn("Failed to send support response",
			zap.Int64("conversation_id", conversation.ID), zap.Error(err))
		return agent.Failed("Failed to send support response")
	}

	a.LogActivity(ctx, "Support response sent", map[string]any{
		"conversationId": conversation.ID,
		"messageLength":  len(answer),
	})
	return agent.Succeeded("Support response sent successfully", nil)
}

// history maps the latest turns to user and assistant roles.
func history(messages []storage.Message) []completion.Message {
	if len(messages) > contextTurns {
		messages = messages[len(messages)-contextTurns:]
	}
	out := make([]completion.Message, 0, len(messages))
	for _, m := range messages {
		role := completion.RoleAssistant
		if m.Direction == storage.DirectionInbound {
			role = completion.RoleUser
		}
		out = append(out, completion.Message{Role: role, Content: m.Content})
	}
	return out
}

func (a *Agent) generate(ctx context.Context, turns []completion.Message) string {
	msgs := append([]completion.Message{{Role: completion.RoleSystem, Content: systemPrompt}}, turns...)
	resp, err := a.CallLLM(ctx, msgs)
	if err != nil {
		a.Logger().Warn("Failed to generate support response", zap.Error(err))
		return errorReplyFallback
	}
	if content := strings.TrimSpace(resp.Content()); content != "" {
		return content
	}
	return emptyReplyFallback
}
