package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	tuxeai "github.com/cotah/tuxeai-app"
	"github.com/cotah/tuxeai-app/agent"
	"github.com/cotah/tuxeai-app/agent/reengagement"
	"github.com/cotah/tuxeai-app/agent/reservation"
	"github.com/cotah/tuxeai-app/agent/reviews"
	"github.com/cotah/tuxeai-app/agent/support"
	"github.com/cotah/tuxeai-app/storage"
)

var errAlreadyLaunched = errors.New("campaign already launched")

var reservationSources = []string{"whatsapp", "web", "phone", "manual"}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().Format(time.RFC3339),
	})
}

type createReservationRequest struct {
	CustomerID      int64     `json:"customerId"`
	ReservationDate time.Time `json:"reservationDate"`
	PartySize       int       `json:"partySize"`
	SpecialRequests string    `json:"specialRequests,omitempty"`
	Source          string    `json:"source,omitempty"`
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID <= 0 || req.ReservationDate.IsZero() {
		writeError(w, http.StatusBadRequest, "customerId and reservationDate are required")
		return
	}
	if req.PartySize < 1 {
		writeError(w, http.StatusBadRequest, "partySize must be at least 1")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	if !slices.Contains(reservationSources, req.Source) {
		writeError(w, http.StatusBadRequest, "source must be one of whatsapp, web, phone, manual")
		return
	}

	if _, err := s.store.GetCustomer(r.Context(), tc.RestaurantID, req.CustomerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.internalError(w, "Failed to load customer", err)
		return
	}

	var reservationID, eventID int64
	err := s.tx.Do(r.Context(), func(ctx context.Context) error {
		var err error
		reservationID, err = s.store.CreateReservation(ctx, &storage.Reservation{
			RestaurantID:    tc.RestaurantID,
			CustomerID:      req.CustomerID,
			ReservationDate: req.ReservationDate.UTC(),
			PartySize:       req.PartySize,
			SpecialRequests: req.SpecialRequests,
			Status:          storage.ReservationPending,
			Source:          req.Source,
		})
		if err != nil {
			return err
		}
		eventID, err = tuxeai.Enqueue(ctx, s.store, tuxeai.Event{
			RestaurantID: tc.RestaurantID,
			EventType:    agent.EventReservationCreated,
			AgentKey:     reservation.Key,
			Payload:      map[string]int64{"reservationId": reservationID},
		})
		return err
	})
	if err != nil {
		s.internalError(w, "Failed to create reservation", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"reservationId": reservationID, "eventId": eventID})
}

type createReviewRequest struct {
	Platform   string    `json:"platform"`
	ExternalID string    `json:"externalId,omitempty"`
	AuthorName string    `json:"authorName,omitempty"`
	Rating     int       `json:"rating"`
	ReviewText string    `json:"reviewText,omitempty"`
	ReviewDate time.Time `json:"reviewDate,omitempty"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Platform) == "" {
		writeError(w, http.StatusBadRequest, "platform is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	if req.ReviewDate.IsZero() {
		req.ReviewDate = s.now()
	}

	var reviewID, eventID int64
	err := s.tx.Do(r.Context(), func(ctx context.Context) error {
		var err error
		reviewID, err = s.store.CreateReview(ctx, &storage.Review{
			RestaurantID: tc.RestaurantID,
			Platform:     req.Platform,
			ExternalID:   req.ExternalID,
			AuthorName:   req.AuthorName,
			Rating:       req.Rating,
			ReviewText:   req.ReviewText,
			ReviewDate:   req.ReviewDate.UTC(),
		})
		if err != nil {
			return err
		}
		eventID, err = tuxeai.Enqueue(ctx, s.store, tuxeai.Event{
			RestaurantID: tc.RestaurantID,
			EventType:    agent.EventReviewDetected,
			AgentKey:     reviews.Key,
			Payload:      map[string]int64{"reviewId": reviewID},
		})
		return err
	})
	if errors.Is(err, storage.ErrDuplicate) {
		writeError(w, http.StatusConflict, "review already imported")
		return
	}
	if err != nil {
		s.internalError(w, "Failed to create review", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"reviewId": reviewID, "eventId": eventID})
}

func (s *Server) handleLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}
	campaignID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}

	campaign, err := s.store.GetCampaign(r.Context(), tc.RestaurantID, campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if err != nil {
		s.internalError(w, "Failed to load campaign", err)
		return
	}
	if campaign.Status == storage.CampaignRunning || campaign.Status == storage.CampaignCompleted {
		writeError(w, http.StatusConflict, "campaign already launched")
		return
	}

	var eventID int64
	err = s.tx.Do(r.Context(), func(ctx context.Context) error {
		launched, err := s.store.LaunchCampaign(ctx, tc.RestaurantID, campaignID, s.now())
		if err != nil {
			return err
		}
		if !launched {
			return errAlreadyLaunched
		}
		eventID, err = tuxeai.Enqueue(ctx, s.store, tuxeai.Event{
			RestaurantID: tc.RestaurantID,
			EventType:    agent.EventCampaignLaunched,
			AgentKey:     reengagement.Key,
			Payload:      map[string]int64{"campaignId": campaignID},
		})
		return err
	})
	if errors.Is(err, errAlreadyLaunched) {
		writeError(w, http.StatusConflict, "campaign already launched")
		return
	}
	if err != nil {
		s.internalError(w, "Failed to launch campaign", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int64{"campaignId": campaignID, "eventId": eventID})
}

type inboundMessageRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
	Channel string `json:"channel,omitempty"`
}

type inboundMessageResponse struct {
	CustomerID     int64   `json:"customerId"`
	ConversationID int64   `json:"conversationId"`
	MessageID      int64   `json:"messageId"`
	EventIDs       []int64 `json:"eventIds"`
}

// handleInboundMessage stores the message and fans it out to every enabled
// agent that reads conversations.
func (s *Server) handleInboundMessage(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req inboundMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "phone and content are required")
		return
	}
	if req.Channel == "" {
		req.Channel = storage.ChannelWhatsApp
	}

	resp := inboundMessageResponse{EventIDs: []int64{}}
	err := s.tx.Do(r.Context(), func(ctx context.Context) error {
		customerID, err := s.customerByPhone(ctx, tc.RestaurantID, req.Phone, req.Name)
		if err != nil {
			return err
		}
		resp.CustomerID = customerID

		conv, err := s.store.GetOrCreateOpenConversation(ctx, tc.RestaurantID, customerID, req.Channel)
		if err != nil {
			return err
		}
		resp.ConversationID = conv.ID

		resp.MessageID, err = s.store.CreateMessage(ctx, &storage.Message{
			ConversationID: conv.ID,
			Direction:      storage.DirectionInbound,
			Content:        req.Content,
			MessageType:    "text",
			Status:         "received",
		})
		if err != nil {
			return err
		}

		for _, key := range []string{reservation.Key, support.Key} {
			sub, err := s.store.GetSubscription(ctx, tc.RestaurantID, key)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !sub.IsEnabled {
				continue
			}
			id, err := tuxeai.Enqueue(ctx, s.store, tuxeai.Event{
				RestaurantID: tc.RestaurantID,
				EventType:    agent.EventMessageReceived,
				AgentKey:     key,
				Payload:      map[string]int64{"messageId": resp.MessageID, "conversationId": conv.ID},
			})
			if err != nil {
				return err
			}
			resp.EventIDs = append(resp.EventIDs, id)
		}
		return nil
	})
	if err != nil {
		s.internalError(w, "Failed to store inbound message", err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) customerByPhone(ctx context.Context, restaurantID int64, phone, name string) (int64, error) {
	c, err := s.store.FindCustomerByPhone(ctx, restaurantID, phone)
	if err == nil {
		return c.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	id, err := s.store.CreateCustomer(ctx, &storage.Customer{
		RestaurantID: restaurantID,
		Name:         name,
		Phone:        phone,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// created concurrently
		c, err := s.store.FindCustomerByPhone(ctx, restaurantID, phone)
		if err != nil {
			return 0, err
		}
		return c.ID, nil
	}
	return id, err
}

type eventView struct {
	ID          int64               `json:"id"`
	EventType   string              `json:"eventType"`
	AgentKey    string              `json:"agentKey,omitempty"`
	Status      storage.EventStatus `json:"status"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	ProcessedAt *time.Time          `json:"processedAt,omitempty"`
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}
	eventID, ok := parseID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	ev, err := s.store.GetEvent(r.Context(), eventID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && ev.RestaurantID != tc.RestaurantID) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		s.internalError(w, "Failed to load event", err)
		return
	}

	writeJSON(w, http.StatusOK, eventView{
		ID:          ev.ID,
		EventType:   ev.EventType,
		AgentKey:    ev.AgentKey,
		Status:      ev.Status,
		Error:       ev.Error,
		CreatedAt:   ev.CreatedAt,
		ProcessedAt: ev.ProcessedAt,
	})
}

type setAgentEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleSetAgentEnabled(w http.ResponseWriter, r *http.Request) {
	userID, tc, ok := s.tenant(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	if !s.knownAgent(key) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	var req setAgentEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	allowed, err := s.tenants.VerifyAgentAccess(r.Context(), userID, tc.RestaurantID, key)
	if err != nil {
		s.internalError(w, "Failed to verify agent access", err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "no access to this agent")
		return
	}

	if err := s.store.SetSubscriptionEnabled(r.Context(), tc.RestaurantID, key, *req.Enabled); err != nil {
		s.internalError(w, "Failed to update subscription", err)
		return
	}
	s.logger.Info("Agent subscription updated",
		zap.Int64("restaurant_id", tc.RestaurantID),
		zap.String("agent_key", key),
		zap.Bool("enabled", *req.Enabled),
		zap.Int64("user_id", userID),
	)

	writeJSON(w, http.StatusOK, map[string]any{"agentKey": key, "enabled": *req.Enabled})
}
