package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// IdentityResolver maps external actors to internal users, creating a mapping
// when exactly one user matches the actor's profile.
type IdentityResolver struct {
	mappings ports.IdentityMappingRepository
	users    ports.UserRepository
	matcher  ports.UserMatcher
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.IdentityResolver = (*IdentityResolver)(nil)

// IdentityResolverDeps bundles the collaborators of the resolver.
type IdentityResolverDeps struct {
	Mappings ports.IdentityMappingRepository
	Users    ports.UserRepository
	// Matcher defaults to NameMatcher.
	Matcher ports.UserMatcher
	Clock   func() time.Time
	Logger  *slog.Logger
}

func NewIdentityResolver(deps IdentityResolverDeps) ports.IdentityResolver {
	matcher := deps.Matcher
	if matcher == nil {
		matcher = NewNameMatcher(deps.Users)
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		mappings: deps.Mappings,
		users:    deps.Users,
		matcher:  matcher,
		now:      clock,
		logger:   logger.With("component", "identity_resolver"),
	}
}

// Resolve returns the internal user behind externalID. The boolean is true
// only when this call created the mapping.
func (r *IdentityResolver) Resolve(
	ctx context.Context,
	channel domain.Channel,
	externalID string,
	lookup ports.ActorDirectoryLookup,
) (*domain.User, bool, error) {
	// 1. Existing mapping wins.
	existing, err := r.mappings.GetByExternalID(ctx, channel, externalID)
	if err == nil {
		user, err := r.users.GetByID(ctx, existing.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("load mapped user: %w", err)
		}
		return user, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup mapping: %w", err)
	}

	// 2. Ask the external directory who this is.
	if lookup == nil {
		lookup = DisabledActorLookup{}
	}
	info, err := lookup.LookupActor(ctx, externalID)
	if err != nil {
		return nil, false, apperrors.NewIdentityResolutionError(externalID,
			"Could not fetch user information from the directory", err)
	}
	name := info.PreferredName()
	if name == "" {
		name = info.Username
	}

	// 3. Find a unique internal candidate.
	candidates, err := r.matcher.Match(ctx, *info)
	if err != nil {
		return nil, false, fmt.Errorf("match user: %w", err)
	}
	switch len(candidates) {
	case 0:
		return nil, false, apperrors.NewIdentityResolutionError(externalID,
			fmt.Sprintf("User not mapped. Please ask an admin to map user @%s to a system user.", name), nil)
	case 1:
	default:
		return nil, false, apperrors.NewIdentityResolutionError(externalID,
			fmt.Sprintf("Several system users match @%s. Please ask an admin to map the user manually.", name), nil)
	}
	candidate := candidates[0]

	// 4. Never attach a user that is already mapped to someone else.
	held, err := r.mappings.GetByUserID(ctx, channel, candidate.ID)
	switch {
	case err == nil && held.ExternalID != externalID:
		return nil, false, apperrors.NewIdentityResolutionError(externalID,
			fmt.Sprintf("User %s is already mapped to a different account.", candidate.DisplayName()),
			apperrors.ErrMappingConflict)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return nil, false, fmt.Errorf("lookup user mapping: %w", err)
	}

	// 5. Persist. A concurrent resolver may have won the race on either key.
	_, err = r.mappings.Create(ctx, &domain.IdentityMapping{
		Channel:     channel,
		ExternalID:  externalID,
		UserID:      candidate.ID,
		DisplayName: name,
		CreatedAt:   r.now(),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMappingConflict) {
			return r.resolveAfterConflict(ctx, channel, externalID, candidate)
		}
		return nil, false, fmt.Errorf("create mapping: %w", err)
	}

	r.logger.InfoContext(ctx, "identity mapped",
		"channel", channel,
		"external_id", externalID,
		"user_id", candidate.ID,
		"display_name", name,
	)
	return candidate, true, nil
}

// resolveAfterConflict settles a lost insert race: if the winner mapped the same
// user the result is still valid, otherwise the candidate is taken.
func (r *IdentityResolver) resolveAfterConflict(
	ctx context.Context,
	channel domain.Channel,
	externalID string,
	candidate *domain.User,
) (*domain.User, bool, error) {
	existing, err := r.mappings.GetByExternalID(ctx, channel, externalID)
	if err == nil && existing.UserID == candidate.ID {
		return candidate, false, nil
	}
	return nil, false, apperrors.NewIdentityResolutionError(externalID,
		fmt.Sprintf("User %s is already mapped to a different account.", candidate.DisplayName()),
		apperrors.ErrMappingConflict)
}

type matchAttempt struct {
	find  func(context.Context, string) ([]*domain.User, error)
	value string
}

// NameMatcher matches the actor's preferred name against full names, then
// usernames, case-insensitively. The actor's own handle is tried last.
type NameMatcher struct {
	users ports.UserRepository
}

var _ ports.UserMatcher = (*NameMatcher)(nil)

func NewNameMatcher(users ports.UserRepository) *NameMatcher {
	return &NameMatcher{users: users}
}

func (m *NameMatcher) Match(ctx context.Context, actor domain.ActorInfo) ([]*domain.User, error) {
	name := strings.TrimSpace(actor.PreferredName())
	handle := strings.TrimSpace(actor.Username)

	attempts := []matchAttempt{
		{m.users.FindByFullName, name},
		{m.users.FindByUsername, name},
	}
	if handle != "" && !strings.EqualFold(handle, name) {
		attempts = append(attempts, matchAttempt{m.users.FindByUsername, handle})
	}

	for _, a := range attempts {
		if a.value == "" {
			continue
		}
		found, err := a.find(ctx, a.value)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// DisabledActorLookup is used when no external directory is reachable.
type DisabledActorLookup struct{}

var _ ports.ActorDirectoryLookup = DisabledActorLookup{}

func (DisabledActorLookup) LookupActor(context.Context, string) (*domain.ActorInfo, error) {
	return nil, apperrors.ErrLookupUnavailable
}
