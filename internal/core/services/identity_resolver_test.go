package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/mocks"
	"github.com/lorrc/service-desk-engine/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIdentityResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	jane := &domain.User{ID: uuid.New(), Username: "jane", FullName: "Jane Doe", Roles: []domain.Role{domain.RoleAgent}}

	t.Run("existing mapping is returned without lookup", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").
			Return(&domain.IdentityMapping{ExternalID: "U1", UserID: jane.ID}, nil)
		users.On("GetByID", ctx, jane.ID).Return(jane, nil)

		user, created, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", lookup)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, jane.ID, user.ID)
		lookup.AssertNotCalled(t, "LookupActor", mock.Anything, mock.Anything)
	})

	t.Run("unique match creates the mapping once", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{
			Mappings: mappings, Users: users, Clock: fixedClock,
		})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").Return(nil, apperrors.ErrNotFound).Once()
		lookup.On("LookupActor", ctx, "U1").
			Return(&domain.ActorInfo{ExternalID: "U1", Username: "jdoe", DisplayName: "Jane Doe"}, nil).Once()
		users.On("FindByFullName", ctx, "Jane Doe").Return([]*domain.User{jane}, nil).Once()
		mappings.On("GetByUserID", ctx, domain.ChannelChat, jane.ID).Return(nil, apperrors.ErrNotFound).Once()
		mappings.On("Create", ctx, mock.MatchedBy(func(m *domain.IdentityMapping) bool {
			return m.ExternalID == "U1" && m.UserID == jane.ID && m.DisplayName == "Jane Doe"
		})).Return(&domain.IdentityMapping{ID: 1, ExternalID: "U1", UserID: jane.ID}, nil).Once()

		user, created, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", lookup)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, jane.ID, user.ID)

		// A second resolution hits the stored mapping.
		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").
			Return(&domain.IdentityMapping{ExternalID: "U1", UserID: jane.ID}, nil)
		users.On("GetByID", ctx, jane.ID).Return(jane, nil)

		again, created, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", lookup)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, jane.ID, again.ID)
		mappings.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("falls back to the username", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").Return(nil, apperrors.ErrNotFound)
		lookup.On("LookupActor", ctx, "U1").Return(&domain.ActorInfo{Username: "jane", RealName: "J. D."}, nil)
		users.On("FindByFullName", ctx, "J. D.").Return([]*domain.User{}, nil)
		users.On("FindByUsername", ctx, "J. D.").Return([]*domain.User{}, nil)
		users.On("FindByUsername", ctx, "jane").Return([]*domain.User{jane}, nil)
		mappings.On("GetByUserID", ctx, domain.ChannelChat, jane.ID).Return(nil, apperrors.ErrNotFound)
		mappings.On("Create", ctx, mock.Anything).Return(&domain.IdentityMapping{}, nil)

		user, created, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", lookup)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, jane.ID, user.ID)
	})

	t.Run("no match explains how to fix it", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U9").Return(nil, apperrors.ErrNotFound)
		lookup.On("LookupActor", ctx, "U9").Return(&domain.ActorInfo{Username: "ghost", DisplayName: "Ghost"}, nil)
		users.On("FindByFullName", ctx, "Ghost").Return([]*domain.User{}, nil)
		users.On("FindByUsername", ctx, mock.Anything).Return([]*domain.User{}, nil)

		user, _, err := resolver.Resolve(ctx, domain.ChannelChat, "U9", lookup)

		assert.Nil(t, user)
		var resolveErr *apperrors.IdentityResolutionError
		require.ErrorAs(t, err, &resolveErr)
		assert.Equal(t, "User not mapped. Please ask an admin to map user @Ghost to a system user.", resolveErr.Reason)
		mappings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("several matches are refused", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		other := &domain.User{ID: uuid.New(), FullName: "Jane Doe"}
		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").Return(nil, apperrors.ErrNotFound)
		lookup.On("LookupActor", ctx, "U1").Return(&domain.ActorInfo{DisplayName: "Jane Doe"}, nil)
		users.On("FindByFullName", ctx, "Jane Doe").Return([]*domain.User{jane, other}, nil)

		_, _, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", lookup)

		assert.ErrorIs(t, err, apperrors.ErrIdentityUnresolved)
		mappings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("user mapped to another account", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		lookup := mocks.NewMockActorDirectoryLookup()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U2").Return(nil, apperrors.ErrNotFound)
		lookup.On("LookupActor", ctx, "U2").Return(&domain.ActorInfo{DisplayName: "Jane Doe"}, nil)
		users.On("FindByFullName", ctx, "Jane Doe").Return([]*domain.User{jane}, nil)
		mappings.On("GetByUserID", ctx, domain.ChannelChat, jane.ID).
			Return(&domain.IdentityMapping{ExternalID: "U1", UserID: jane.ID}, nil)

		_, _, err := resolver.Resolve(ctx, domain.ChannelChat, "U2", lookup)

		assert.ErrorIs(t, err, apperrors.ErrMappingConflict)
	})

	t.Run("lookup unavailable", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").Return(nil, apperrors.ErrNotFound)

		_, _, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", nil)

		assert.ErrorIs(t, err, apperrors.ErrLookupUnavailable)
	})

	t.Run("repository failure is not masked", func(t *testing.T) {
		mappings := mocks.NewMockIdentityMappingRepository()
		users := mocks.NewMockUserRepository()
		resolver := services.NewIdentityResolver(services.IdentityResolverDeps{Mappings: mappings, Users: users})
		boom := errors.New("db down")

		mappings.On("GetByExternalID", ctx, domain.ChannelChat, "U1").Return(nil, boom)

		_, _, err := resolver.Resolve(ctx, domain.ChannelChat, "U1", nil)

		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, apperrors.ErrIdentityUnresolved)
	})
}
