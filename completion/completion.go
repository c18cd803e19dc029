// Package completion wraps the chat-completion endpoint used by the agents.
package completion

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

type Message struct {
	Role    string
	Content string
}

type Choice struct {
	Message Message
}

type Response struct {
	Choices []Choice
}

// Content returns the first choice's text, or "" when there is none.
func (r *Response) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Completer sends a conversation to a text-completion service.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []Message) (*Response, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (*Response, error) {
	return f(ctx, messages)
}

// Static returns a Completer that always answers with content.
func Static(content string) Completer {
	return CompleterFunc(func(context.Context, []Message) (*Response, error) {
		return &Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: content}}}}, nil
	})
}
