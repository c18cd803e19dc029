// Package reviews classifies incoming reviews and drafts replies to them.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

const Key = "reviews"

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	generatedByAI = "ai"

	fallbackResponse = "Thank you for your feedback. We appreciate you taking the time to share your experience with us."
)

type event interface{ isReviewEvent() }

type detected struct {
	ReviewID int64 `json:"reviewId"`
}

type generateResponse struct {
	ReviewID int64 `json:"reviewId"`
}

func (detected) isReviewEvent()         {}
func (generateResponse) isReviewEvent() {}

func decode(ev agent.Event) (event, error) {
	var e event
	switch ev.Type {
	case agent.EventReviewDetected:
		e = &detected{}
	case agent.EventReviewGenerateResponse:
		e = &generateResponse{}
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
	case *detected:
		return a.classify(ctx, e.ReviewID)
	case *generateResponse:
		return a.respond(ctx, e.ReviewID)
	default:
		return agent.UnknownEventType(ev.Type)
	}
}

// Sentiment derives a review's sentiment from its star rating.
func Sentiment(rating int) string {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating >= 3:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}

func (a *Agent) review(ctx context.Context, id int64) (*storage.Review, *agent.Outcome) {
	review, err := a.Store().GetReview(ctx, a.RestaurantID(), id)
	if errors.Is(err, storage.ErrNotFound) {
		out := agent.Failed("Review not found")
		return nil, &out
	}
	if err != nil {
		out := agent.Failed("failed to load review %d: %v", id, err)
		return nil, &out
	}
	return review, nil
}

func (a *Agent) classify(ctx context.Context, reviewID int64) agent.Outcome {
	review, failed := a.review(ctx, reviewID)
	if failed != nil {
		return *failed
	}

	sentiment := Sentiment(review.Rating)
	if err := a.Store().UpdateReviewSentiment(ctx, reviewID, sentiment); err != nil {
		return agent.Failed("failed to store sentiment for review %d: %v", reviewID, err)
	}

	if sentiment == SentimentNegative {
		a.LogActivity(ctx, "Negative review detected", map[string]any{
			"reviewId": reviewID,
			"rating":   review.Rating,
			"platform": review.Platform,
		})
	}

	if a.ConfigBool("autoRespond", false) {
		_, err := a.Enqueue(ctx, agent.EventReviewGenerateResponse, Key, generateResponse{ReviewID: reviewID})
		if err != nil {
			return agent.Failed("failed to queue response for review %d: %v", reviewID, err)
		}
	}

	return agent.Succeeded("Review processed successfully", map[string]any{"sentiment": sentiment})
}

func (a *Agent) respond(ctx context.Context, reviewID int64) agent.Outcome {
	review, failed := a.review(ctx, reviewID)
	if failed != nil {
		return *failed
	}
	if review.ResponseText != "" {
		return agent.Failed("Review already has a response")
	}

	text := a.draft(ctx, review)
	if err := a.Store().SaveReviewResponse(ctx, reviewID, text, generatedByAI); err != nil {
		return agent.Failed("failed to save response for review %d: %v", reviewID, err)
	}

	a.LogActivity(ctx, "Review response generated", map[string]any{
		"reviewId": reviewID,
		"platform": review.Platform,
	})
	return agent.Succeeded("Review response generated", map[string]any{"responseText": text})
}

func (a *Agent) draft(ctx context.Context, review *storage.Review) string {
	name := "the restaurant"
	if r, err := a.Restaurant(ctx); err == nil && r.Name != "" {
		name = r.Name
	}

	resp, err := a.CallLLM(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: guidelines(name)},
		{Role: completion.RoleUser, Content: reviewPrompt(review)},
	})
	if err != nil {
		a.Logger().Warn("Failed to generate review response", zap.Int64("review_id", review.ID), zap.Error(err))
		return fallbackResponse
	}
	if content := strings.TrimSpace(resp.Content()); content != "" {
		return content
	}
	return fallbackResponse
}

func guidelines(restaurant string) string {
	return fmt.Sprintf(`You are writing a professional response to a customer review for %s.

Guidelines:
- Be genuine, warm, and professional
- Thank the reviewer for their feedback
- Address specific points they mentioned
- For positive reviews: express gratitude and invite them back
- For negative reviews: apologize sincerely, acknowledge the issue, and offer to make it right
- Keep it under 150 words
- Don't make promises you can't keep
- Sign off with the restaurant name`, restaurant)
}

func reviewPrompt(r *storage.Review) string {
	return fmt.Sprintf(`Review Platform: %s
Rating: %d/5 stars
Review: %q
Reviewer: %s

Generate a professional response:`, r.Platform, r.Rating, r.ReviewText, r.AuthorName)
}
