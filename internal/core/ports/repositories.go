package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
)

// TicketRepository persists the ticket aggregate.
type TicketRepository interface {
	// Create assigns the ticket number from a sequence. A ticket whose
	// ExternalRef already exists yields apperrors.ErrDuplicateEvent.
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	GetByChatThread(ctx context.Context, threadRef string) (*domain.Ticket, error)
	// Update saves every mutable field and bumps the version. With optimistic
	// locking enabled a stale version yields apperrors.ErrVersionConflict.
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	// LinkChatThread sets the thread handle only when none is set yet.
	LinkChatThread(ctx context.Context, ticketID int64, threadRef string) (bool, error)

	ListUnassignedOpen(ctx context.Context, limit int) ([]*domain.Ticket, error)
	ListOpenByAssigneeNewestFirst(ctx context.Context, assigneeID uuid.UUID, limit int) ([]*domain.Ticket, error)
	ListBreachCandidates(ctx context.Context, now time.Time) ([]*domain.Ticket, error)
	ListEscalationCandidates(ctx context.Context, now time.Time) ([]domain.EscalationCandidate, error)
	ListArchivable(ctx context.Context, closedBefore time.Time) ([]*domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]domain.WorkloadCounts, error)
	GetSLAStats(ctx context.Context) (*domain.SLAStats, error)
}

// UserRepository is the identity backing store.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByFullName and FindByUsername match case-insensitively.
	FindByFullName(ctx context.Context, fullName string) ([]*domain.User, error)
	FindByUsername(ctx context.Context, username string) ([]*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	// ListAgents returns non-disabled AGENT or ADMIN users ordered by creation time, then id.
	ListAgents(ctx context.Context) ([]*domain.User, error)
	// FirstActiveAdmin returns the oldest non-disabled ADMIN.
	FirstActiveAdmin(ctx context.Context) (*domain.User, error)
}

// IdentityMappingRepository stores external actor mappings.
type IdentityMappingRepository interface {
	GetByExternalID(ctx context.Context, channel domain.Channel, externalID string) (*domain.IdentityMapping, error)
	GetByUserID(ctx context.Context, channel domain.Channel, userID uuid.UUID) (*domain.IdentityMapping, error)
	// Create rejects a mapping that collides on either side with apperrors.ErrMappingConflict.
	Create(ctx context.Context, mapping *domain.IdentityMapping) (*domain.IdentityMapping, error)
}

// SLAPolicyRepository stores SLA policies.
type SLAPolicyRepository interface {
	// ListActiveByPriority orders by updated_at desc, then id desc.
	ListActiveByPriority(ctx context.Context, priority domain.TicketPriority) ([]*domain.SLAPolicy, error)
	GetByID(ctx context.Context, id int64) (*domain.SLAPolicy, error)
	ListActive(ctx context.Context) ([]*domain.SLAPolicy, error)
	Create(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error)
}

// CommentRepository stores ticket comments.
type CommentRepository interface {
	// Create yields apperrors.ErrDuplicateEvent when ExternalRef was already used.
	Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Comment, error)
}

// AttachmentRepository stores attachment records.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) (*domain.Attachment, error)
	ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Attachment, error)
}

// ProcessedEventStore remembers inbound units of work that were already applied.
type ProcessedEventStore interface {
	// Seen reports whether an id was already recorded on a channel.
	Seen(ctx context.Context, channel domain.Channel, eventID string) (bool, error)
	// Record marks an id as applied. Recording an id twice is not an error.
	Record(ctx context.Context, channel domain.Channel, eventID string) error
}
