package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// Correlator keeps the link between tickets and their external conversations
// and remembers which inbound events were already applied.
type Correlator struct {
	tickets ports.TicketRepository
	events  ports.ProcessedEventStore
	logger  *slog.Logger
}

var _ ports.ConversationCorrelator = (*Correlator)(nil)

func NewCorrelator(tickets ports.TicketRepository, events ports.ProcessedEventStore, logger *slog.Logger) ports.ConversationCorrelator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		tickets: tickets,
		events:  events,
		logger:  logger.With("component", "correlator"),
	}
}

// LinkTicketToConversation attaches a handle to a ticket. The first link wins:
// a ticket that already carries a chat thread is left untouched and false is returned.
func (c *Correlator) LinkTicketToConversation(ctx context.Context, ticketID int64, handle domain.ConversationHandle) (bool, error) {
	switch handle.Channel {
	case domain.ChannelChat:
		if handle.Ref == "" {
			return false, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "thread handle is empty")
		}
		linked, err := c.tickets.LinkChatThread(ctx, ticketID, handle.Ref)
		if err != nil {
			return false, fmt.Errorf("link chat thread: %w", err)
		}
		if !linked {
			c.logger.DebugContext(ctx, "ticket already linked to a thread",
				"ticket_id", ticketID, "thread_ref", handle.Ref)
		}
		return linked, nil

	case domain.ChannelEmail:
		// The email handle is derived from the ticket number, so there is
		// nothing to persist.
		return false, nil
	}
	return false, apperrors.NewBadRequestError(apperrors.ErrBadRequest, fmt.Sprintf("unknown channel %q", handle.Channel))
}

// FindTicketByHandle routes an inbound reply to its ticket. It returns
// apperrors.ErrTicketNotFound when the handle belongs to no ticket.
func (c *Correlator) FindTicketByHandle(ctx context.Context, handle domain.ConversationHandle) (*domain.Ticket, error) {
	switch handle.Channel {
	case domain.ChannelChat:
		if handle.Ref == "" {
			return nil, apperrors.ErrTicketNotFound
		}
		return c.tickets.GetByChatThread(ctx, handle.Ref)

	case domain.ChannelEmail:
		number, ok := domain.ParseReferenceTag(handle.Ref)
		if !ok {
			return nil, apperrors.ErrTicketNotFound
		}
		return c.tickets.GetByNumber(ctx, number)
	}
	return nil, apperrors.ErrTicketNotFound
}

// IsDuplicate reports whether eventID was already applied on channel. It
// never records anything: an event only counts as processed once
// MarkProcessed runs after its work succeeded.
func (c *Correlator) IsDuplicate(ctx context.Context, channel domain.Channel, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	seen, err := c.events.Seen(ctx, channel, eventID)
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return seen, nil
}

// MarkProcessed records eventID after its ticket or comment was written. A
// failure is only logged; the external_ref constraints still reject a replay.
func (c *Correlator) MarkProcessed(ctx context.Context, channel domain.Channel, eventID string) {
	if eventID == "" {
		return
	}
	if err := c.events.Record(ctx, channel, eventID); err != nil {
		c.logger.WarnContext(ctx, "failed to record processed event",
			"channel", channel, "event_id", eventID, "error", err)
	}
}
