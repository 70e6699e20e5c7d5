package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/mocks"
	"github.com/lorrc/service-desk-engine/internal/core/services"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationService_GetPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("agent permissions", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(&domain.User{ID: id, Roles: []domain.Role{domain.RoleAgent}}, nil)

		permissions, err := svc.GetPermissions(ctx, id)

		require.NoError(t, err)
		require.Contains(t, permissions, services.PermTicketsAssign)
		require.NotContains(t, permissions, services.PermTicketsRebalance)
	})

	t.Run("roles are merged without duplicates", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(&domain.User{
			ID:    id,
			Roles: []domain.Role{domain.RoleAgent, domain.RoleAdmin},
		}, nil)

		permissions, err := svc.GetPermissions(ctx, id)

		require.NoError(t, err)
		require.Len(t, permissions, 7)
	})

	t.Run("disabled users hold nothing", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(&domain.User{
			ID:         id,
			Roles:      []domain.Role{domain.RoleAdmin},
			IsDisabled: true,
		}, nil)

		permissions, err := svc.GetPermissions(ctx, id)

		require.NoError(t, err)
		require.Empty(t, permissions)
	})
}

func TestAuthorizationService_Can(t *testing.T) {
	ctx := context.Background()

	t.Run("admin may rebalance", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(&domain.User{ID: id, Roles: []domain.Role{domain.RoleAdmin}}, nil)

		allowed, err := svc.Can(ctx, id, services.PermTicketsRebalance)

		require.NoError(t, err)
		require.True(t, allowed)
	})

	t.Run("plain user may not assign", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(&domain.User{ID: id, Roles: []domain.Role{domain.RoleUser}}, nil)

		allowed, err := svc.Can(ctx, id, services.PermTicketsAssign)

		require.NoError(t, err)
		require.False(t, allowed)
	})

	t.Run("lookup failure denies", func(t *testing.T) {
		repo := mocks.NewMockUserRepository()
		svc := services.NewAuthorizationService(repo)
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(nil, errors.New("db down"))

		allowed, err := svc.Can(ctx, id, services.PermTicketsAssign)

		require.Error(t, err)
		require.False(t, allowed)
	})
}
