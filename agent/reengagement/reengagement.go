// Package reengagement runs win-back campaigns against inactive customers.
package reengagement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/completion"
	"github.com/cotah/tuxeai-app/storage"
)

const Key = "reengagement"

const (
	defaultInactiveDays = 30
	defaultSendDelayMs  = 1000
)

const personalizePrompt = `You are helping personalize a re-engagement message for a customer who hasn't visited in a while.

Guidelines:
- Keep the core message and offer intact
- Make it feel personal and genuine
- Reference their past visits if relevant
- Keep the same length and tone
- Don't add information not in the original message`

type event interface{ isCampaignEvent() }

type launched struct {
	CampaignID int64 `json:"campaignId"`
}

func (launched) isCampaignEvent() {}

func decode(ev agent.Event) (event, error) {
	if ev.Type != agent.EventCampaignLaunched {
		return nil, nil
	}
	e := &launched{}
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
	case *launched:
		return a.run(ctx, e.CampaignID)
	default:
		return agent.UnknownEventType(ev.Type)
	}
}

func (a *Agent) run(ctx context.Context, campaignID int64) agent.Outcome {
	campaign, err := a.Store().GetCampaign(ctx, a.RestaurantID(), campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		return agent.Failed("Campaign not found")
	}
	if err != nil {
		return agent.Failed("failed to load campaign %d: %v", campaignID, err)
	}

	targets, err := a.audience(ctx, campaign.TargetAudience)
	if err != nil {
		return agent.Failed("failed to select audience: %v", err)
	}

	if len(targets) == 0 {
		if err := a.Store().CompleteCampaign(ctx, campaignID, storage.CampaignStats{}, a.Now()); err != nil {
			return agent.Failed("failed to complete campaign %d: %v", campaignID, err)
		}
		return agent.Succeeded("No customers match campaign criteria", nil)
	}

	restaurantName := "our restaurant"
	if r, err := a.Restaurant(ctx); err == nil && r.Name != "" {
		restaurantName = r.Name
	}
	delay := time.Duration(a.ConfigInt("sendDelayMs", defaultSendDelayMs)) * time.Millisecond

	sent := 0
	for i := range targets {
		if i > 0 {
			if err := wait(ctx, delay); err != nil {
				return agent.Failed("campaign %d interrupted after %d/%d sends: %v", campaignID, sent, len(targets), err)
			}
		}

		c := &targets[i]
		text := a.personalize(ctx, campaign.MessageTemplate, c, restaurantName)
		if err := a.SendMessage(ctx, c.ID, text); err != nil {
			a.Logger().Warn("Failed to send campaign message",
				zap.Int64("campaign_id", campaignID), zap.Int64("customer_id", c.ID), zap.Error(err))
			continue
		}
		sent++
	}

	stats := storage.CampaignStats{Targeted: len(targets), Sent: sent}
	if err := a.Store().CompleteCampaign(ctx, campaignID, stats, a.Now()); err != nil {
		return agent.Failed("failed to complete campaign %d: %v", campaignID, err)
	}

	a.LogActivity(ctx, "Campaign executed", map[string]any{
		"campaignId": campaignID,
		"targeted":   len(targets),
		"sent":       sent,
	})
	return agent.Succeeded(fmt.Sprintf("Campaign sent to %d/%d customers", sent, len(targets)), map[string]any{
		"targeted": len(targets),
		"sent":     sent,
	})
}

// audience returns inactive customers that carry at least one of the tags
// and have enough past reservations.
func (a *Agent) audience(ctx context.Context, aud storage.Audience) ([]storage.Customer, error) {
	inactiveDays := defaultInactiveDays
	if aud.InactiveDays != nil {
		inactiveDays = *aud.InactiveDays
	}
	minReservations := 0
	if aud.MinReservations != nil {
		minReservations = *aud.MinReservations
	}

	cutoff := a.Now().AddDate(0, 0, -inactiveDays)
	customers, err := a.Store().ListInactiveCustomers(ctx, a.RestaurantID(), cutoff)
	if err != nil {
		return nil, err
	}

	out := customers[:0]
	for _, c := range customers {
		if len(aud.Tags) > 0 && !slices.ContainsFunc(aud.Tags, func(tag string) bool {
			return slices.Contains(c.Tags, tag)
		}) {
			continue
		}
		if c.TotalReservations < minReservations {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Agent) personalize(ctx context.Context, template string, c *storage.Customer, restaurant string) string {
	name, firstName := "there", "there"
	if n := strings.TrimSpace(c.Name); n != "" {
		name = n
		firstName = strings.Fields(n)[0]
	}
	msg := strings.NewReplacer(
		"{name}", name,
		"{restaurant}", restaurant,
		"{firstName}", firstName,
	).Replace(template)

	if !a.ConfigBool("useLLMPersonalization", false) {
		return msg
	}
	return a.enhance(ctx, msg, c)
}

// enhance rewrites msg for the customer, keeping msg on any failure.
func (a *Agent) enhance(ctx context.Context, msg string, c *storage.Customer) string {
	last := "Unknown"
	if c.LastInteractionAt != nil {
		last = c.LastInteractionAt.Format("2006-01-02")
	}
	resp, err := a.CallLLM(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: personalizePrompt},
		{Role: completion.RoleUser, Content: fmt.Sprintf(`Original message: %q

Customer info:
- Name: %s
- Total past reservations: %d
- Last interaction: %s

Personalize this message:`, msg, c.Name, c.TotalReservations, last)},
	})
	if err != nil {
		a.Logger().Warn("Failed to personalize campaign message", zap.Int64("customer_id", c.ID), zap.Error(err))
		return msg
	}
	if content := strings.TrimSpace(resp.Content()); content != "" {
		return content
	}
	return msg
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
