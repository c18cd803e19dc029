package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cotah/tuxeai-app/storage"
)

var (
	ErrAgentNotRegistered = errors.New("agent not registered")
	ErrAgentNotEnabled    = errors.New("agent not enabled")
)

// Registry maps agent keys to factories. It is built once at startup and
// passed to whoever needs to create agents.
type Registry struct {
	deps Deps

	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:      deps.withDefaults(),
		factories: make(map[string]Factory),
	}
}

// Register binds key to f. A later registration for the same key wins.
func (r *Registry) Register(key string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

func (r *Registry) Resolve(key string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[key]
	return f, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Create returns an agent for the restaurant. It fails with
// ErrAgentNotRegistered or ErrAgentNotEnabled when the agent cannot run.
func (r *Registry) Create(ctx context.Context, restaurantID int64, key string) (Agent, error) {
	f, ok := r.Resolve(key)
	if !ok {
		return nil, ErrAgentNotRegistered
	}

	sub, err := r.deps.Store.GetSubscription(ctx, restaurantID, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAgentNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription for %q: %w", key, err)
	}
	if !sub.IsEnabled {
		return nil, ErrAgentNotEnabled
	}

	config := sub.Configuration
	if config == nil {
		config = map[string]any{}
	}
	base := NewBase(r.deps, Context{
		RestaurantID:  restaurantID,
		AgentKey:      key,
		Configuration: config,
	})
	return f(base), nil
}
