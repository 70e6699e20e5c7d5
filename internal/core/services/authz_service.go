package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// Permissions checked by the write path and the admin API.
const (
	PermTicketsUpdateStatus = "tickets:update:status"
	PermTicketsAssign       = "tickets:assign"
	PermTicketsRebalance    = "tickets:rebalance"
	PermWorkloadRead        = "workload:read"
	PermSLAManage           = "sla:manage"
	PermSLARead             = "sla:read"
	PermTicketsWatch        = "tickets:watch"
)

// rolePermissions grants permissions per role. A user holds the union of their roles.
var rolePermissions = map[domain.Role][]string{
	domain.RoleAdmin: {
		PermTicketsUpdateStatus, PermTicketsAssign, PermTicketsRebalance,
		PermWorkloadRead, PermSLAManage, PermSLARead, PermTicketsWatch,
	},
	domain.RoleAgent: {
		PermTicketsUpdateStatus, PermTicketsAssign, PermWorkloadRead, PermSLARead,
		PermTicketsWatch,
	},
	domain.RoleUser: {},
}

// AuthorizationService implements the business logic for RBAC.
type AuthorizationService struct {
	userRepo ports.UserRepository
}

// Ensure implementation matches the interface.
var _ ports.AuthorizationService = (*AuthorizationService)(nil)

// NewAuthorizationService creates a new service for authorization logic.
func NewAuthorizationService(userRepo ports.UserRepository) ports.AuthorizationService {
	return &AuthorizationService{
		userRepo: userRepo,
	}
}

// Can checks if a user has a specific permission.
func (s *AuthorizationService) Can(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	userPermissions, err := s.GetPermissions(ctx, userID)
	if err != nil {
		// If there's an error fetching permissions (e.g., db down), deny access.
		return false, err
	}

	for _, p := range userPermissions {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// GetPermissions returns all permissions for a user. Disabled users hold none.
func (s *AuthorizationService) GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsDisabled {
		return []string{}, nil
	}

	set := make(map[string]struct{})
	for _, role := range user.Roles {
		for _, p := range rolePermissions[role] {
			set[p] = struct{}{}
		}
	}

	permissions := make([]string, 0, len(set))
	for p := range set {
		permissions = append(permissions, p)
	}
	sort.Strings(permissions)
	return permissions, nil
}
