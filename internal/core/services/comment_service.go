package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// CommentService implements the business logic for comments.
type CommentService struct {
	commentRepo   ports.CommentRepository
	ticketRepo    ports.TicketRepository
	slaSvc        ports.SLAService
	notifications ports.NotificationService
	now           func() time.Time
	logger        *slog.Logger
}

// Ensure implementation matches the interface.
var _ ports.CommentService = (*CommentService)(nil)

// CommentDeps bundles the collaborators of the comment service.
type CommentDeps struct {
	Comments      ports.CommentRepository
	Tickets       ports.TicketRepository
	SLA           ports.SLAService
	Notifications ports.NotificationService
	Clock         func() time.Time
	Logger        *slog.Logger
}

// NewCommentService creates a new service for comment logic.
func NewCommentService(deps CommentDeps) ports.CommentService {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		commentRepo:   deps.Comments,
		ticketRepo:    deps.Tickets,
		slaSvc:        deps.SLA,
		notifications: deps.Notifications,
		now:           clock,
		logger:        logger.With("component", "comments"),
	}
}

// CreateComment adds a new comment to a ticket. A public reply from anyone
// other than the creator counts as the first response.
func (s *CommentService) CreateComment(ctx context.Context, params ports.CreateCommentParams) (*domain.Comment, error) {
	// 1. The ticket must exist.
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}

	// 2. Create the domain entity.
	comment, err := domain.NewComment(domain.CommentParams{
		TicketID:    params.TicketID,
		AuthorID:    params.AuthorID,
		Body:        params.Body,
		IsInternal:  params.IsInternal,
		ExternalRef: params.ExternalRef,
	}, s.now())
	if err != nil {
		return nil, err
	}

	// 3. Persist the comment. A reused ExternalRef surfaces as ErrDuplicateEvent.
	created, err := s.commentRepo.Create(ctx, comment)
	if err != nil {
		return nil, err
	}

	// 4. Record the first response.
	if !created.IsInternal && created.AuthorID != ticket.CreatorID && ticket.ResponseMetAt == nil {
		if err := s.slaSvc.MarkResponseMet(ctx, ticket.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark response met", "ticket_id", ticket.ID, "error", err)
		}
	}

	// 5. Notify (async)
	s.notifications.CommentAdded(ctx, ticket, created, params.Origin)
	return created, nil
}
