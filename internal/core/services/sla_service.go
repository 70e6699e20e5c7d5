package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// SLAService computes ticket deadlines and runs the breach and escalation sweeps.
type SLAService struct {
	tickets       ports.TicketRepository
	policies      ports.SLAPolicyRepository
	users         ports.UserRepository
	notifications ports.NotificationService
	updater       ticketUpdater
	now           func() time.Time
	logger        *slog.Logger
}

var _ ports.SLAService = (*SLAService)(nil)

// SLADeps bundles the collaborators of the SLA engine.
type SLADeps struct {
	Tickets        ports.TicketRepository
	Policies       ports.SLAPolicyRepository
	Users          ports.UserRepository
	Notifications  ports.NotificationService
	UpdateAttempts int
	Clock          func() time.Time
	Logger         *slog.Logger
}

func NewSLAService(deps SLADeps) ports.SLAService {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SLAService{
		tickets:       deps.Tickets,
		policies:      deps.Policies,
		users:         deps.Users,
		notifications: deps.Notifications,
		updater:       newTicketUpdater(deps.Tickets, deps.UpdateAttempts),
		now:           clock,
		logger:        logger.With("component", "sla"),
	}
}

// ApplyPolicy stamps the deadlines of the active policy for the ticket's
// priority. A priority without a policy leaves the ticket untouched.
func (s *SLAService) ApplyPolicy(ctx context.Context, ticket *domain.Ticket) error {
	policies, err := s.policies.ListActiveByPriority(ctx, ticket.Priority)
	if err != nil {
		return fmt.Errorf("lookup sla policy: %w", err)
	}
	if len(policies) == 0 {
		s.logger.InfoContext(ctx, "no active sla policy for priority", "priority", ticket.Priority)
		return nil
	}
	if len(policies) > 1 {
		s.logger.WarnContext(ctx, "several active sla policies for one priority, using the most recently updated",
			"priority", ticket.Priority,
			"policy_id", policies[0].ID,
			"count", len(policies),
		)
	}

	ticket.ApplySLA(policies[0], s.now())
	return nil
}

// ScanBreaches flags every open ticket whose resolution deadline has passed.
// It returns the number of tickets flagged by this run.
func (s *SLAService) ScanBreaches(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.tickets.ListBreachCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list breach candidates: %w", err)
	}

	flagged := 0
	for _, candidate := range candidates {
		ticket, changed, err := s.updater.update(ctx, candidate.ID, func(t *domain.Ticket) (bool, error) {
			if !t.IsBreachable(now) {
				return false, nil
			}
			return t.MarkBreached(now), nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to flag sla breach", "ticket_id", candidate.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}

		flagged++
		s.logger.WarnContext(ctx, "sla breached",
			"ticket_id", ticket.ID,
			"number", ticket.Number,
			"resolution_due_at", ticket.ResolutionDueAt,
		)
		s.notifications.SLABreached(ctx, ticket)
	}
	return flagged, nil
}

// ScanEscalations escalates tickets that waited past their policy's escalation
// delay. A ticket without a reachable target is retried on the next scan.
func (s *SLAService) ScanEscalations(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.tickets.ListEscalationCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list escalation candidates: %w", err)
	}

	escalated := 0
	for _, candidate := range candidates {
		due, ok := candidate.Policy.EscalationDue(candidate.Ticket.CreatedAt)
		if !ok || !due.Before(now) {
			continue
		}

		target, err := s.escalationTarget(ctx, candidate.Policy)
		if err != nil {
			s.logger.WarnContext(ctx, "no escalation target, will retry",
				"ticket_id", candidate.Ticket.ID, "policy_id", candidate.Policy.ID, "error", err)
			continue
		}

		ticket, changed, err := s.updater.update(ctx, candidate.Ticket.ID, func(t *domain.Ticket) (bool, error) {
			if !t.IsEscalatable() {
				return false, nil
			}
			return t.Escalate(target.ID, now), nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to escalate ticket", "ticket_id", candidate.Ticket.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}

		escalated++
		s.logger.InfoContext(ctx, "ticket escalated",
			"ticket_id", ticket.ID,
			"number", ticket.Number,
			"escalated_to", target.ID,
		)
		s.notifications.TicketEscalated(ctx, ticket, target)
	}
	return escalated, nil
}

// escalationTarget prefers the policy's user and falls back to any active admin.
func (s *SLAService) escalationTarget(ctx context.Context, policy *domain.SLAPolicy) (*domain.User, error) {
	if policy.EscalationToUserID != nil {
		user, err := s.users.GetByID(ctx, *policy.EscalationToUserID)
		switch {
		case err == nil && !user.IsDisabled:
			return user, nil
		case err != nil && !isNotFound(err):
			return nil, err
		}
	}

	admin, err := s.users.FirstActiveAdmin(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrNoEscalationTarget
		}
		return nil, err
	}
	return admin, nil
}

// MarkResponseMet records the first response on a ticket. Later calls are no-ops.
func (s *SLAService) MarkResponseMet(ctx context.Context, ticketID int64) error {
	_, _, err := s.updater.update(ctx, ticketID, func(t *domain.Ticket) (bool, error) {
		return t.MarkResponseMet(s.now()), nil
	})
	return err
}

func (s *SLAService) ListPolicies(ctx context.Context) ([]*domain.SLAPolicy, error) {
	return s.policies.ListActive(ctx)
}

// CreatePolicy validates and stores a new policy. A second active policy for
// the same priority takes precedence over the older one.
func (s *SLAService) CreatePolicy(ctx context.Context, params domain.SLAPolicyParams) (*domain.SLAPolicy, error) {
	if params.EscalationToUserID != nil {
		if _, err := s.users.GetByID(ctx, *params.EscalationToUserID); err != nil {
			if isNotFound(err) {
				return nil, apperrors.ErrUserNotFound
			}
			return nil, err
		}
	}

	policy, err := domain.NewSLAPolicy(params, s.now())
	if err != nil {
		return nil, err
	}
	return s.policies.Create(ctx, policy)
}

func (s *SLAService) GetStats(ctx context.Context) (*domain.SLAStats, error) {
	return s.tickets.GetSLAStats(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrUserNotFound) ||
		errors.Is(err, apperrors.ErrTicketNotFound) ||
		errors.Is(err, apperrors.ErrPolicyNotFound)
}
