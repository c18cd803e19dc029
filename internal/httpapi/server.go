// Package httpapi exposes the mutations that feed the event store: creating
// reservations and reviews, launching campaigns, accepting inbound messages
// and toggling agents.
package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cotah/tuxeai-app/storage"
	"github.com/cotah/tuxeai-app/tenant"
)

type Server struct {
	store   storage.Store
	tx      storage.Transactor
	tenants *tenant.Resolver
	agents  []string
	logger  *zap.Logger
	now     func() time.Time
	mux     *http.ServeMux
}

// NewServer builds the API. agentKeys are the agents that can be toggled.
func NewServer(store storage.Store, tx storage.Transactor, agentKeys []string, logger *zap.Logger) *Server {
	if tx == nil {
		tx = storage.NopTransactor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		store:   store,
		tx:      tx,
		tenants: tenant.NewResolver(store),
		agents:  agentKeys,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		mux:     http.NewServeMux(),
	}

	srv.mux.HandleFunc("GET /healthz", srv.handleHealth)

	srv.mux.HandleFunc("POST /api/reservations", srv.handleCreateReservation)
	srv.mux.HandleFunc("POST /api/reviews", srv.handleCreateReview)
	srv.mux.HandleFunc("POST /api/campaigns/{id}/launch", srv.handleLaunchCampaign)
	srv.mux.HandleFunc("POST /api/messages/inbound", srv.handleInboundMessage)
	srv.mux.HandleFunc("GET /api/events/{id}", srv.handleGetEvent)
	srv.mux.HandleFunc("PUT /api/agents/{key}/enabled", srv.handleSetAgentEnabled)

	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withMiddleware(s.mux, s.logger).ServeHTTP(w, r)
}

// tenant resolves the caller's restaurant and writes the error response when
// it cannot.
func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (int64, *tenant.Context, bool) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return 0, nil, false
	}

	var restaurantID int64
	if v := r.URL.Query().Get("restaurantId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "restaurantId must be a positive integer")
			return 0, nil, false
		}
		restaurantID = id
	}

	tc, err := s.tenants.Resolve(r.Context(), userID, restaurantID)
	switch {
	case errors.Is(err, tenant.ErrNoRestaurant), errors.Is(err, tenant.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
		return 0, nil, false
	case err != nil:
		s.internalError(w, "Failed to resolve tenant", err)
		return 0, nil, false
	}
	return userID, tc, true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) knownAgent(key string) bool {
	return slices.Contains(s.agents, key)
}
