package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/mocks"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type balancerFixture struct {
	tickets   *mocks.MockTicketRepository
	users     *mocks.MockUserRepository
	ticketSvc *mocks.MockTicketService
	svc       ports.AssignmentService
}

func newBalancerFixture() *balancerFixture {
	f := &balancerFixture{
		tickets:   mocks.NewMockTicketRepository(),
		users:     mocks.NewMockUserRepository(),
		ticketSvc: mocks.NewMockTicketService(),
	}
	f.svc = services.NewBalancer(services.BalancerDeps{
		Tickets:   f.tickets,
		Users:     f.users,
		TicketSvc: f.ticketSvc,
	})
	return f
}

func namedAgents(names ...string) []*domain.User {
	agents := make([]*domain.User, 0, len(names))
	for _, n := range names {
		agents = append(agents, &domain.User{ID: uuid.New(), Username: n, Roles: []domain.Role{domain.RoleAgent}})
	}
	return agents
}

func assignedTo(agent *domain.User) func(ports.AssignTicketParams) bool {
	return func(p ports.AssignTicketParams) bool { return p.AssigneeID == agent.ID }
}

func TestBalancer_Assign_RoundRobin(t *testing.T) {
	ctx := context.Background()
	f := newBalancerFixture()
	agents := namedAgents("a", "b", "c")

	f.users.On("ListAgents", ctx).Return(agents, nil)
	for id := int64(1); id <= 3; id++ {
		f.tickets.On("GetByID", ctx, id).Return(&domain.Ticket{ID: id, Status: domain.StatusOpen}, nil)
	}

	var got []string
	f.ticketSvc.On("AssignTicket", ctx, mock.AnythingOfType("ports.AssignTicketParams")).
		Run(func(args mock.Arguments) {
			p := args.Get(1).(ports.AssignTicketParams)
			assert.True(t, p.IfUnassigned)
			for _, a := range agents {
				if a.ID == p.AssigneeID {
					got = append(got, a.Username)
				}
			}
		}).
		Return(&domain.Ticket{ID: 1}, nil)

	for id := int64(1); id <= 3; id++ {
		_, err := f.svc.Assign(ctx, id, ports.PolicyRoundRobin)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b", "c", "a"}, got)
}

func TestBalancer_Assign_LeastBusy(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the agent with the fewest active tickets", func(t *testing.T) {
		f := newBalancerFixture()
		agents := namedAgents("a", "b", "c")
		f.users.On("ListAgents", ctx).Return(agents, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{
			agents[0].ID: {Open: 3},
			agents[1].ID: {Open: 1, InProgress: 1},
			agents[2].ID: {Open: 1},
		}, nil)
		f.tickets.On("GetByID", ctx, int64(7)).Return(&domain.Ticket{ID: 7, Status: domain.StatusOpen}, nil)
		f.ticketSvc.On("AssignTicket", ctx, mock.MatchedBy(assignedTo(agents[2]))).
			Return(&domain.Ticket{ID: 7, AssigneeID: &agents[2].ID}, nil)

		ticket, err := f.svc.Assign(ctx, 7, ports.PolicyLeastBusy)

		require.NoError(t, err)
		assert.True(t, ticket.IsAssignedTo(agents[2].ID))
	})

	t.Run("ties go to the earliest agent", func(t *testing.T) {
		f := newBalancerFixture()
		agents := namedAgents("a", "b")
		f.users.On("ListAgents", ctx).Return(agents, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{}, nil)
		f.tickets.On("GetByID", ctx, int64(7)).Return(&domain.Ticket{ID: 7, Status: domain.StatusOpen}, nil)
		f.ticketSvc.On("AssignTicket", ctx, mock.MatchedBy(assignedTo(agents[0]))).
			Return(&domain.Ticket{ID: 7, AssigneeID: &agents[0].ID}, nil)

		_, err := f.svc.Assign(ctx, 7, "")

		require.NoError(t, err)
		f.ticketSvc.AssertExpectations(t)
	})

	t.Run("already assigned ticket is returned unchanged", func(t *testing.T) {
		f := newBalancerFixture()
		owner := uuid.New()
		f.tickets.On("GetByID", ctx, int64(7)).Return(&domain.Ticket{ID: 7, AssigneeID: &owner}, nil)

		ticket, err := f.svc.Assign(ctx, 7, ports.PolicyLeastBusy)

		require.NoError(t, err)
		assert.True(t, ticket.IsAssignedTo(owner))
		f.ticketSvc.AssertNotCalled(t, "AssignTicket", mock.Anything, mock.Anything)
	})

	t.Run("unknown policy", func(t *testing.T) {
		f := newBalancerFixture()
		f.tickets.On("GetByID", ctx, int64(7)).Return(&domain.Ticket{ID: 7}, nil)

		_, err := f.svc.Assign(ctx, 7, "random")

		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})

	t.Run("no agents", func(t *testing.T) {
		f := newBalancerFixture()
		f.users.On("ListAgents", ctx).Return([]*domain.User{}, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{}, nil)
		f.tickets.On("GetByID", ctx, int64(7)).Return(&domain.Ticket{ID: 7}, nil)

		_, err := f.svc.Assign(ctx, 7, ports.PolicyLeastBusy)

		assert.ErrorIs(t, err, apperrors.ErrNoAgents)
	})
}

func TestBalancer_ProcessUnassigned(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns the batch", func(t *testing.T) {
		f := newBalancerFixture()
		agents := namedAgents("a")
		f.tickets.On("ListUnassignedOpen", ctx, services.DefaultAutoAssignBatch).Return([]*domain.Ticket{{ID: 1}, {ID: 2}}, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(&domain.Ticket{ID: 1}, nil)
		f.tickets.On("GetByID", ctx, int64(2)).Return(&domain.Ticket{ID: 2}, nil)
		f.users.On("ListAgents", ctx).Return(agents, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{}, nil)
		f.ticketSvc.On("AssignTicket", ctx, mock.Anything).Return(&domain.Ticket{AssigneeID: &agents[0].ID}, nil)

		n, err := f.svc.ProcessUnassigned(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("stops when nobody can take tickets", func(t *testing.T) {
		f := newBalancerFixture()
		f.tickets.On("ListUnassignedOpen", ctx, services.DefaultAutoAssignBatch).Return([]*domain.Ticket{{ID: 1}, {ID: 2}}, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(&domain.Ticket{ID: 1}, nil)
		f.users.On("ListAgents", ctx).Return([]*domain.User{}, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{}, nil)

		n, err := f.svc.ProcessUnassigned(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, n)
		f.tickets.AssertNotCalled(t, "GetByID", ctx, int64(2))
	})
}

func TestBalancer_Rebalance(t *testing.T) {
	ctx := context.Background()

	t.Run("moves newest tickets from the overloaded agent", func(t *testing.T) {
		f := newBalancerFixture()
		agents := namedAgents("a", "b", "c")
		busy, b, c := agents[0], agents[1], agents[2]

		f.users.On("ListAgents", ctx).Return(agents, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{
			busy.ID: {Open: 10},
			b.ID:    {Open: 1},
			c.ID:    {Open: 1},
		}, nil)
		// total 12 over 3 agents: average 4, threshold 6, so 4 tickets move.
		f.tickets.On("ListOpenByAssigneeNewestFirst", ctx, busy.ID, 4).
			Return([]*domain.Ticket{{ID: 10}, {ID: 9}, {ID: 8}, {ID: 7}}, nil)
		f.ticketSvc.On("AssignTicket", ctx, mock.MatchedBy(assignedTo(b))).Return(&domain.Ticket{}, nil)
		f.ticketSvc.On("AssignTicket", ctx, mock.MatchedBy(assignedTo(c))).Return(&domain.Ticket{}, nil)

		moved, err := f.svc.Rebalance(ctx)

		require.NoError(t, err)
		assert.Equal(t, 4, moved)

		toB, toC := 0, 0
		for _, call := range f.ticketSvc.Calls {
			p := call.Arguments.Get(1).(ports.AssignTicketParams)
			assert.False(t, p.IfUnassigned)
			switch p.AssigneeID {
			case b.ID:
				toB++
			case c.ID:
				toC++
			}
		}
		assert.Equal(t, 3, toB)
		assert.Equal(t, 1, toC)
	})

	t.Run("balanced team is left alone", func(t *testing.T) {
		f := newBalancerFixture()
		agents := namedAgents("a", "b")
		f.users.On("ListAgents", ctx).Return(agents, nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{
			agents[0].ID: {Open: 4},
			agents[1].ID: {Open: 3},
		}, nil)

		moved, err := f.svc.Rebalance(ctx)

		require.NoError(t, err)
		assert.Zero(t, moved)
		f.tickets.AssertNotCalled(t, "ListOpenByAssigneeNewestFirst", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("single agent", func(t *testing.T) {
		f := newBalancerFixture()
		f.users.On("ListAgents", ctx).Return(namedAgents("a"), nil)
		f.tickets.On("CountActiveByAssignee", ctx).Return(map[uuid.UUID]domain.WorkloadCounts{}, nil)

		moved, err := f.svc.Rebalance(ctx)

		require.NoError(t, err)
		assert.Zero(t, moved)
	})
}
