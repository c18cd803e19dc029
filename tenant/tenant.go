// Package tenant resolves which restaurant a user is acting on and what
// they may do there.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cotah/tuxeai-app/storage"
)

var (
	ErrNoRestaurant = errors.New("user does not have access to any restaurant")
	ErrForbidden    = errors.New("user does not have access to this restaurant")
)

// Context is the tenant a request runs under.
type Context struct {
	RestaurantID int64
	Role         storage.Role
	Permissions  storage.Permissions
}

type Store interface {
	ListMemberships(ctx context.Context, userID int64) ([]storage.Membership, error)
	GetStaffMember(ctx context.Context, restaurantID, userID int64) (*storage.StaffMember, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the user's tenant context for restaurantID, or for their
// first restaurant when restaurantID is zero.
func (r *Resolver) Resolve(ctx context.Context, userID, restaurantID int64) (*Context, error) {
	memberships, err := r.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants for user %d: %w", userID, err)
	}
	if len(memberships) == 0 {
		return nil, ErrNoRestaurant
	}

	target := memberships[0]
	if restaurantID != 0 {
		i := slices.IndexFunc(memberships, func(m storage.Membership) bool {
			return m.Restaurant.ID == restaurantID
		})
		if i < 0 {
			return nil, ErrForbidden
		}
		target = memberships[i]
	}

	return &Context{
		RestaurantID: target.Restaurant.ID,
		Role:         target.Staff.Role,
		Permissions:  target.Staff.Permissions,
	}, nil
}

func (r *Resolver) VerifyRestaurantAccess(ctx context.Context, userID, restaurantID int64) (bool, error) {
	staff, err := r.staff(ctx, userID, restaurantID)
	return staff != nil, err
}

func (r *Resolver) VerifyOwnerAccess(ctx context.Context, userID, restaurantID int64) (bool, error) {
	staff, err := r.staff(ctx, userID, restaurantID)
	if staff == nil {
		return false, err
	}
	return staff.Role == storage.RoleOwner, nil
}

func (r *Resolver) VerifyBillingAccess(ctx context.Context, userID, restaurantID int64) (bool, error) {
	staff, err := r.staff(ctx, userID, restaurantID)
	if staff == nil {
		return false, err
	}
	return staff.Role == storage.RoleOwner || staff.Permissions.CanManageBilling, nil
}

// VerifyAgentAccess grants owners and managers every agent. Staff need the
// agent listed in their permissions.
func (r *Resolver) VerifyAgentAccess(ctx context.Context, userID, restaurantID int64, agentKey string) (bool, error) {
	staff, err := r.staff(ctx, userID, restaurantID)
	if staff == nil {
		return false, err
	}
	switch staff.Role {
	case storage.RoleOwner, storage.RoleManager:
		return true, nil
	}
	return slices.Contains(staff.Permissions.Agents, agentKey), nil
}

// staff returns nil and no error when the user is not on the restaurant's staff.
func (r *Resolver) staff(ctx context.Context, userID, restaurantID int64) (*storage.StaffMember, error) {
	staff, err := r.store.GetStaffMember(ctx, restaurantID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load staff member: %w", err)
	}
	return staff, nil
}
