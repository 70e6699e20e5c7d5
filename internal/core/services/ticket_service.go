package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// DefaultArchiveAfter is how long a closed ticket stays visible before the sweep archives it.
const DefaultArchiveAfter = 10 * time.Hour

// TicketService implements business logic for ticket management
type TicketService struct {
	ticketRepo    ports.TicketRepository
	userRepo      ports.UserRepository
	authzSvc      ports.AuthorizationService
	slaSvc        ports.SLAService
	attachmentSvc ports.AttachmentService
	notifications ports.NotificationService
	updater       ticketUpdater
	archiveAfter  time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

var _ ports.TicketService = (*TicketService)(nil)

// TicketDeps bundles the collaborators of the ticket service.
type TicketDeps struct {
	Tickets        ports.TicketRepository
	Users          ports.UserRepository
	Authz          ports.AuthorizationService
	SLA            ports.SLAService
	Attachments    ports.AttachmentService
	Notifications  ports.NotificationService
	UpdateAttempts int
	ArchiveAfter   time.Duration
	Clock          func() time.Time
	Logger         *slog.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(deps TicketDeps) ports.TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	archiveAfter := deps.ArchiveAfter
	if archiveAfter <= 0 {
		archiveAfter = DefaultArchiveAfter
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketService{
		ticketRepo:    deps.Tickets,
		userRepo:      deps.Users,
		authzSvc:      deps.Authz,
		slaSvc:        deps.SLA,
		attachmentSvc: deps.Attachments,
		notifications: deps.Notifications,
		updater:       newTicketUpdater(deps.Tickets, deps.UpdateAttempts),
		archiveAfter:  archiveAfter,
		now:           clock,
		logger:        logger.With("component", "tickets"),
	}
}

// CreateTicket handles the use case for submitting a new ticket
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	// 1. Create domain entity with validation
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:        params.Title,
		Description:  params.Description,
		Priority:     params.Priority,
		Category:     params.Category,
		Source:       params.Source,
		CreatorID:    params.CreatorID,
		ContactEmail: params.ContactEmail,
		ExternalRef:  params.ExternalRef,
	}, s.now())
	if err != nil {
		return nil, err
	}

	// 2. Stamp SLA deadlines. A lookup failure must not block the ticket.
	if err := s.slaSvc.ApplyPolicy(ctx, ticket); err != nil {
		s.logger.ErrorContext(ctx, "failed to apply sla policy", "priority", ticket.Priority, "error", err)
	}

	// 3. Persist the ticket
	created, err := s.ticketRepo.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	// 4. Store attachments that came with the ticket
	for _, file := range params.Attachments {
		_, err := s.attachmentSvc.StoreAttachment(ctx, ports.StoreAttachmentParams{
			TicketID:   created.ID,
			UploaderID: created.CreatorID,
			Name:       file.Name,
			MimeType:   file.MimeType,
			Data:       file.Data,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to store ticket attachment",
				"ticket_id", created.ID, "file", file.Name, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "ticket created",
		"ticket_id", created.ID,
		"number", created.Number,
		"source", created.Source,
		"priority", created.Priority,
	)

	// 5. Announce the ticket (async)
	s.notifications.TicketCreated(ctx, created, params.Attachments)
	return created, nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, ticketID)
}

// UpdateStatus changes a ticket's status with business rule enforcement
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	// 1. Authorization Check
	if err := s.authorize(ctx, params.ActorID, PermTicketsUpdateStatus); err != nil {
		return nil, err
	}

	// 2. Apply status change (domain validates the transition) and persist
	ticket, _, err := s.updater.update(ctx, params.TicketID, func(t *domain.Ticket) (bool, error) {
		if err := t.UpdateStatus(params.Status, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Notify (async)
	s.notifications.StatusChanged(ctx, ticket)
	return ticket, nil
}

// AssignTicket assigns a ticket to an agent. The first assignment also counts
// as the response to the ticket.
func (s *TicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	// 1. Authorization Check, skipped for system actions
	if params.ActorID != uuid.Nil {
		if err := s.authorize(ctx, params.ActorID, PermTicketsAssign); err != nil {
			return nil, err
		}
	}

	// 2. The assignee must be able to work tickets
	assignee, err := s.userRepo.GetByID(ctx, params.AssigneeID)
	if err != nil {
		return nil, err
	}
	if !assignee.IsAvailableAgent() {
		return nil, apperrors.ErrNotAnAgent
	}

	// 3. Apply assignment (domain validates business rules) and persist
	ticket, changed, err := s.updater.update(ctx, params.TicketID, func(t *domain.Ticket) (bool, error) {
		if params.IfUnassigned && t.IsAssigned() {
			return false, nil
		}
		if t.IsAssignedTo(assignee.ID) {
			return false, nil
		}
		now := s.now()
		if err := t.Assign(assignee.ID, now); err != nil {
			return false, err
		}
		t.MarkResponseMet(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return ticket, nil
	}

	// 4. Notify (async)
	s.notifications.TicketAssigned(ctx, ticket, assignee)
	return ticket, nil
}

// ArchiveClosed archives tickets that have been closed for longer than the
// configured retention. It returns the number archived.
func (s *TicketService) ArchiveClosed(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.archiveAfter)
	tickets, err := s.ticketRepo.ListArchivable(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, candidate := range tickets {
		ticket, changed, err := s.updater.update(ctx, candidate.ID, func(t *domain.Ticket) (bool, error) {
			if t.Status != domain.StatusClosed || t.ClosedAt == nil || !t.ClosedAt.Before(cutoff) {
				return false, nil
			}
			return true, t.Archive(s.now())
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to archive ticket", "ticket_id", candidate.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		archived++
		s.notifications.TicketArchived(ctx, ticket)
	}

	if archived > 0 {
		s.logger.InfoContext(ctx, "archived closed tickets", "count", archived)
	}
	return archived, nil
}

func (s *TicketService) authorize(ctx context.Context, actorID uuid.UUID, permission string) error {
	allowed, err := s.authzSvc.Can(ctx, actorID, permission)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.ErrForbidden
	}
	return nil
}
