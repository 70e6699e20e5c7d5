package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

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

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type ticketServiceFixture struct {
	tickets       *mocks.MockTicketRepository
	users         *mocks.MockUserRepository
	authz         *mocks.MockAuthorizationService
	sla           *mocks.MockSLAService
	attachments   *mocks.MockAttachmentService
	notifications *mocks.MockNotificationService
	svc           ports.TicketService
}

func newTicketServiceFixture() *ticketServiceFixture {
	f := &ticketServiceFixture{
		tickets:       mocks.NewMockTicketRepository(),
		users:         mocks.NewMockUserRepository(),
		authz:         mocks.NewMockAuthorizationService(),
		sla:           mocks.NewMockSLAService(),
		attachments:   mocks.NewMockAttachmentService(),
		notifications: mocks.NewMockNotificationService(),
	}
	f.svc = services.NewTicketService(services.TicketDeps{
		Tickets:       f.tickets,
		Users:         f.users,
		Authz:         f.authz,
		SLA:           f.sla,
		Attachments:   f.attachments,
		Notifications: f.notifications,
		Clock:         fixedClock,
	})
	return f
}

func agentUser() *domain.User {
	return &domain.User{ID: uuid.New(), Username: "agent", FullName: "Ada Agent", Roles: []domain.Role{domain.RoleAgent}}
}

func openTicket(id int64) *domain.Ticket {
	due := fixedNow.Add(time.Hour)
	return &domain.Ticket{
		ID:            id,
		Number:        domain.FormatTicketNumber(id),
		Title:         "Printer on fire",
		Status:        domain.StatusOpen,
		Priority:      domain.PriorityHigh,
		CreatorID:     uuid.New(),
		CreatedAt:     fixedNow.Add(-time.Hour),
		ResponseDueAt: &due,
		Version:       1,
	}
}

func TestTicketService_CreateTicket(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New()

	t.Run("success", func(t *testing.T) {
		f := newTicketServiceFixture()
		created := &domain.Ticket{ID: 1, Number: "TKT-000001", Title: "Test Ticket", Status: domain.StatusOpen, CreatorID: creatorID}

		f.sla.On("ApplyPolicy", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil)
		f.tickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(created, nil)
		f.notifications.On("TicketCreated", ctx, created, []ports.AttachmentUpload(nil)).Return()

		ticket, err := f.svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:     "Test Ticket",
			Priority:  domain.PriorityMedium,
			CreatorID: creatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, "TKT-000001", ticket.Number)
		f.sla.AssertExpectations(t)
		f.tickets.AssertExpectations(t)
		f.notifications.AssertExpectations(t)
	})

	t.Run("sla failure does not block creation", func(t *testing.T) {
		f := newTicketServiceFixture()
		created := &domain.Ticket{ID: 2, CreatorID: creatorID}

		f.sla.On("ApplyPolicy", ctx, mock.Anything).Return(errors.New("db down"))
		f.tickets.On("Create", ctx, mock.Anything).Return(created, nil)
		f.notifications.On("TicketCreated", ctx, created, mock.Anything).Return()

		ticket, err := f.svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:     "Test Ticket",
			Priority:  domain.PriorityLow,
			CreatorID: creatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(2), ticket.ID)
	})

	t.Run("stores attachments against the new ticket", func(t *testing.T) {
		f := newTicketServiceFixture()
		created := &domain.Ticket{ID: 3, CreatorID: creatorID}
		files := []ports.AttachmentUpload{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}}

		f.sla.On("ApplyPolicy", ctx, mock.Anything).Return(nil)
		f.tickets.On("Create", ctx, mock.Anything).Return(created, nil)
		f.attachments.On("StoreAttachment", ctx, ports.StoreAttachmentParams{
			TicketID: 3, UploaderID: creatorID, Name: "a.png", MimeType: "image/png", Data: []byte{1},
		}).Return(&domain.Attachment{ID: 1}, nil)
		f.notifications.On("TicketCreated", ctx, created, files).Return()

		_, err := f.svc.CreateTicket(ctx, ports.CreateTicketParams{
			Title:       "With screenshot",
			Priority:    domain.PriorityLow,
			CreatorID:   creatorID,
			Attachments: files,
		})

		require.NoError(t, err)
		f.attachments.AssertExpectations(t)
	})

	t.Run("validation error for empty title", func(t *testing.T) {
		f := newTicketServiceFixture()

		ticket, err := f.svc.CreateTicket(ctx, ports.CreateTicketParams{
			Priority:  domain.PriorityLow,
			CreatorID: creatorID,
		})

		assert.Nil(t, ticket)
		assert.ErrorIs(t, err, apperrors.ErrTitleRequired)
		f.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestTicketService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("success", func(t *testing.T) {
		f := newTicketServiceFixture()
		f.authz.On("Can", ctx, actorID, services.PermTicketsUpdateStatus).Return(true, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(openTicket(1), nil)
		f.tickets.On("Update", ctx, mock.MatchedBy(func(t *domain.Ticket) bool {
			return t.Status == domain.StatusResolved && t.ResolvedAt != nil
		})).Return(func(_ context.Context, t *domain.Ticket) *domain.Ticket { return t }, nil)
		f.notifications.On("StatusChanged", ctx, mock.Anything).Return()

		ticket, err := f.svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			TicketID: 1, Status: domain.StatusResolved, ActorID: actorID,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusResolved, ticket.Status)
		f.notifications.AssertExpectations(t)
	})

	t.Run("forbidden without permission", func(t *testing.T) {
		f := newTicketServiceFixture()
		f.authz.On("Can", ctx, actorID, services.PermTicketsUpdateStatus).Return(false, nil)

		_, err := f.svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			TicketID: 1, Status: domain.StatusResolved, ActorID: actorID,
		})

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		f.tickets.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("invalid status transition", func(t *testing.T) {
		f := newTicketServiceFixture()
		closed := openTicket(1)
		closed.Status = domain.StatusClosed
		f.authz.On("Can", ctx, actorID, services.PermTicketsUpdateStatus).Return(true, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(closed, nil)

		_, err := f.svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			TicketID: 1, Status: domain.StatusInProgress, ActorID: actorID,
		})

		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		f.tickets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("version conflict is retried against the fresh row", func(t *testing.T) {
		f := newTicketServiceFixture()
		f.authz.On("Can", ctx, actorID, services.PermTicketsUpdateStatus).Return(true, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(openTicket(1), nil).Twice()
		f.tickets.On("Update", ctx, mock.Anything).Return(nil, apperrors.ErrVersionConflict).Once()
		f.tickets.On("Update", ctx, mock.Anything).Return(openTicket(1), nil).Once()
		f.notifications.On("StatusChanged", ctx, mock.Anything).Return()

		_, err := f.svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			TicketID: 1, Status: domain.StatusInProgress, ActorID: actorID,
		})

		require.NoError(t, err)
		f.tickets.AssertNumberOfCalls(t, "Update", 2)
	})
}

func TestTicketService_AssignTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("first assignment counts as response", func(t *testing.T) {
		f := newTicketServiceFixture()
		agent := agentUser()
		f.users.On("GetByID", ctx, agent.ID).Return(agent, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(openTicket(1), nil)
		f.tickets.On("Update", ctx, mock.MatchedBy(func(t *domain.Ticket) bool {
			return t.IsAssignedTo(agent.ID) && t.ResponseMetAt != nil && t.ResponseMetAt.Equal(fixedNow)
		})).Return(func(_ context.Context, t *domain.Ticket) *domain.Ticket { return t }, nil)
		f.notifications.On("TicketAssigned", ctx, mock.Anything, agent).Return()

		ticket, err := f.svc.AssignTicket(ctx, ports.AssignTicketParams{TicketID: 1, AssigneeID: agent.ID})

		require.NoError(t, err)
		assert.True(t, ticket.IsAssignedTo(agent.ID))
		f.authz.AssertNotCalled(t, "Can", mock.Anything, mock.Anything, mock.Anything)
		f.notifications.AssertExpectations(t)
	})

	t.Run("checks permission for a human actor", func(t *testing.T) {
		f := newTicketServiceFixture()
		actorID := uuid.New()
		f.authz.On("Can", ctx, actorID, services.PermTicketsAssign).Return(false, nil)

		_, err := f.svc.AssignTicket(ctx, ports.AssignTicketParams{TicketID: 1, AssigneeID: uuid.New(), ActorID: actorID})

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("rejects a user without an agent role", func(t *testing.T) {
		f := newTicketServiceFixture()
		customer := &domain.User{ID: uuid.New(), Roles: []domain.Role{domain.RoleUser}}
		f.users.On("GetByID", ctx, customer.ID).Return(customer, nil)

		_, err := f.svc.AssignTicket(ctx, ports.AssignTicketParams{TicketID: 1, AssigneeID: customer.ID})

		assert.ErrorIs(t, err, apperrors.ErrNotAnAgent)
		f.tickets.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("same assignee is a no-op", func(t *testing.T) {
		f := newTicketServiceFixture()
		agent := agentUser()
		current := openTicket(1)
		current.AssigneeID = &agent.ID
		f.users.On("GetByID", ctx, agent.ID).Return(agent, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(current, nil)

		ticket, err := f.svc.AssignTicket(ctx, ports.AssignTicketParams{TicketID: 1, AssigneeID: agent.ID})

		require.NoError(t, err)
		assert.Same(t, current, ticket)
		f.tickets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.notifications.AssertNotCalled(t, "TicketAssigned", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("IfUnassigned leaves an assigned ticket alone", func(t *testing.T) {
		f := newTicketServiceFixture()
		agent := agentUser()
		other := uuid.New()
		current := openTicket(1)
		current.AssigneeID = &other
		f.users.On("GetByID", ctx, agent.ID).Return(agent, nil)
		f.tickets.On("GetByID", ctx, int64(1)).Return(current, nil)

		ticket, err := f.svc.AssignTicket(ctx, ports.AssignTicketParams{
			TicketID: 1, AssigneeID: agent.ID, IfUnassigned: true,
		})

		require.NoError(t, err)
		assert.True(t, ticket.IsAssignedTo(other))
		f.tickets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestTicketService_ArchiveClosed(t *testing.T) {
	ctx := context.Background()
	f := newTicketServiceFixture()
	cutoff := fixedNow.Add(-services.DefaultArchiveAfter)

	closedAt := cutoff.Add(-time.Minute)
	old := openTicket(1)
	old.Status = domain.StatusClosed
	old.ClosedAt = &closedAt

	f.tickets.On("ListArchivable", ctx, cutoff).Return([]*domain.Ticket{old}, nil)
	f.tickets.On("GetByID", ctx, int64(1)).Return(old, nil)
	f.tickets.On("Update", ctx, mock.MatchedBy(func(t *domain.Ticket) bool {
		return t.Status == domain.StatusArchived
	})).Return(func(_ context.Context, t *domain.Ticket) *domain.Ticket { return t }, nil)
	f.notifications.On("TicketArchived", ctx, mock.Anything).Return()

	n, err := f.svc.ArchiveClosed(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.StatusClosed, old.Status)
	f.notifications.AssertExpectations(t)
}
