package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

const (
	DefaultAutoAssignBatch = 10
	DefaultRebalanceSlack  = 2
)

// Balancer spreads tickets across agents. The round-robin cursor lives only in
// memory and starts from zero after a restart.
type Balancer struct {
	tickets   ports.TicketRepository
	users     ports.UserRepository
	ticketSvc ports.TicketService
	batch     int
	slack     int
	logger    *slog.Logger

	mu     sync.Mutex
	cursor int
}

var _ ports.AssignmentService = (*Balancer)(nil)

// BalancerDeps bundles the collaborators of the balancer.
type BalancerDeps struct {
	Tickets   ports.TicketRepository
	Users     ports.UserRepository
	TicketSvc ports.TicketService
	// Batch bounds one auto-assign pass; Slack is how far above the average
	// an agent may be before a rebalance moves its tickets.
	Batch  int
	Slack  int
	Logger *slog.Logger
}

func NewBalancer(deps BalancerDeps) ports.AssignmentService {
	batch := deps.Batch
	if batch <= 0 {
		batch = DefaultAutoAssignBatch
	}
	slack := deps.Slack
	if slack <= 0 {
		slack = DefaultRebalanceSlack
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Balancer{
		tickets:   deps.Tickets,
		users:     deps.Users,
		ticketSvc: deps.TicketSvc,
		batch:     batch,
		slack:     slack,
		logger:    logger.With("component", "balancer"),
	}
}

// AvailableAgents returns a workload snapshot of every active agent, least busy
// first. Agents with equal load keep their creation order.
func (b *Balancer) AvailableAgents(ctx context.Context) ([]domain.AgentWorkload, error) {
	agents, err := b.users.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	counts, err := b.tickets.CountActiveByAssignee(ctx)
	if err != nil {
		return nil, fmt.Errorf("count workloads: %w", err)
	}
	return domain.BuildWorkloads(agents, counts), nil
}

// Assign gives an unassigned ticket to an agent chosen by policy. An already
// assigned ticket is returned unchanged.
func (b *Balancer) Assign(ctx context.Context, ticketID int64, policy ports.AssignmentPolicy) (*domain.Ticket, error) {
	// 1. Skip tickets that already have an owner.
	ticket, err := b.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsAssigned() {
		return ticket, nil
	}

	// 2. Pick the agent.
	var agent *domain.User
	switch policy {
	case ports.PolicyRoundRobin:
		agent, err = b.nextRoundRobin(ctx)
	case ports.PolicyLeastBusy, "":
		agent, err = b.leastBusy(ctx)
	default:
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest,
			fmt.Sprintf("unknown assignment policy %q", policy))
	}
	if err != nil {
		return nil, err
	}

	// 3. Assign through the regular write path so notifications and the
	// response marker behave like a manual assignment.
	assigned, err := b.ticketSvc.AssignTicket(ctx, ports.AssignTicketParams{
		TicketID:     ticketID,
		AssigneeID:   agent.ID,
		IfUnassigned: true,
	})
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "ticket auto-assigned",
		"ticket_id", ticketID,
		"agent_id", agent.ID,
		"policy", policy,
	)
	return assigned, nil
}

func (b *Balancer) leastBusy(ctx context.Context) (*domain.User, error) {
	workloads, err := b.AvailableAgents(ctx)
	if err != nil {
		return nil, err
	}
	if len(workloads) == 0 {
		return nil, apperrors.ErrNoAgents
	}
	return workloads[0].Agent, nil
}

// nextRoundRobin advances the cursor before picking, so over [A,B,C] a fresh
// balancer hands out B, C, A.
func (b *Balancer) nextRoundRobin(ctx context.Context) (*domain.User, error) {
	agents, err := b.users.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, apperrors.ErrNoAgents
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = (b.cursor + 1) % len(agents)
	return agents[b.cursor], nil
}

// ProcessUnassigned auto-assigns the oldest unassigned open tickets with the
// least-busy policy. Failures are isolated per ticket.
func (b *Balancer) ProcessUnassigned(ctx context.Context) (int, error) {
	tickets, err := b.tickets.ListUnassignedOpen(ctx, b.batch)
	if err != nil {
		return 0, fmt.Errorf("list unassigned tickets: %w", err)
	}

	assigned := 0
	for _, ticket := range tickets {
		result, err := b.Assign(ctx, ticket.ID, ports.PolicyLeastBusy)
		if err != nil {
			if errors.Is(err, apperrors.ErrNoAgents) {
				b.logger.WarnContext(ctx, "no agents available for auto-assignment")
				return assigned, nil
			}
			b.logger.ErrorContext(ctx, "auto-assignment failed", "ticket_id", ticket.ID, "error", err)
			continue
		}
		if result.IsAssigned() {
			assigned++
		}
	}
	return assigned, nil
}

// Rebalance moves the newest open tickets of overloaded agents to agents below
// the average until nobody exceeds average+slack or no agent can take more.
// It returns the number of tickets moved.
func (b *Balancer) Rebalance(ctx context.Context) (int, error) {
	workloads, err := b.AvailableAgents(ctx)
	if err != nil {
		return 0, err
	}
	if len(workloads) < 2 {
		return 0, nil
	}

	total := 0
	for _, w := range workloads {
		total += w.Total()
	}
	n := len(workloads)
	average := (total + n - 1) / n
	threshold := average + b.slack

	moved := 0
	// workloads is sorted ascending, so walk from the busiest agent down.
	for i := n - 1; i >= 0; i-- {
		over := &workloads[i]
		excess := over.Total() - threshold
		if excess <= 0 {
			break
		}

		candidates, err := b.tickets.ListOpenByAssigneeNewestFirst(ctx, over.Agent.ID, excess)
		if err != nil {
			return moved, fmt.Errorf("list tickets of %s: %w", over.Agent.ID, err)
		}

		for _, ticket := range candidates {
			if over.Total() <= threshold {
				break
			}
			target := underloaded(workloads, average, i)
			if target == nil {
				b.logger.InfoContext(ctx, "rebalance stopped, no agent below average", "moved", moved)
				return moved, nil
			}

			if _, err := b.ticketSvc.AssignTicket(ctx, ports.AssignTicketParams{
				TicketID:   ticket.ID,
				AssigneeID: target.Agent.ID,
			}); err != nil {
				b.logger.ErrorContext(ctx, "failed to move ticket",
					"ticket_id", ticket.ID, "from", over.Agent.ID, "to", target.Agent.ID, "error", err)
				continue
			}

			over.Open--
			target.Open++
			moved++
		}
	}

	b.logger.InfoContext(ctx, "rebalance finished",
		"moved", moved,
		"average", average,
		"threshold", threshold,
	)
	return moved, nil
}

// underloaded returns the first agent other than skip whose load is below average.
func underloaded(workloads []domain.AgentWorkload, average, skip int) *domain.AgentWorkload {
	for j := range workloads {
		if j == skip {
			continue
		}
		if workloads[j].Total() < average {
			return &workloads[j]
		}
	}
	return nil
}
