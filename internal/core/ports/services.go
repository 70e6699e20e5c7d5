package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
)

// AuthorizationService defines the port for checking user permissions.
type AuthorizationService interface {
	Can(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
	GetPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// AuthService authenticates operators of the admin API.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
}

// AttachmentUpload is a file that arrives together with a new ticket or message.
type AttachmentUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// CreateTicketParams defines the required input for creating a new ticket.
type CreateTicketParams struct {
	Title        string
	Description  string
	Priority     domain.TicketPriority
	Category     domain.TicketCategory
	Source       domain.TicketSource
	CreatorID    uuid.UUID
	ContactEmail *string
	// ExternalRef makes creation idempotent for inbound items.
	ExternalRef *string
	Attachments []AttachmentUpload
}

// UpdateStatusParams defines the input for changing a ticket's status.
type UpdateStatusParams struct {
	TicketID int64
	Status   domain.TicketStatus
	ActorID  uuid.UUID
}

// AssignTicketParams defines the input for assigning a ticket.
// A zero ActorID marks a system action that skips permission checks.
type AssignTicketParams struct {
	TicketID   int64
	AssigneeID uuid.UUID
	ActorID    uuid.UUID
	// IfUnassigned leaves a ticket that gained an assignee meanwhile untouched.
	IfUnassigned bool
}

// CreateCommentParams defines the input for creating a comment.
type CreateCommentParams struct {
	TicketID    int64
	AuthorID    uuid.UUID
	Body        string
	IsInternal  bool
	ExternalRef *string
	// Origin is the channel the comment arrived on; it is not echoed back there.
	Origin domain.Channel
}

// StoreAttachmentParams defines the input for persisting an attachment.
type StoreAttachmentParams struct {
	TicketID   int64
	UploaderID uuid.UUID
	Name       string
	MimeType   string
	Data       []byte
}

// TicketService defines the write path for the ticket aggregate.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Ticket, error)
	AssignTicket(ctx context.Context, params AssignTicketParams) (*domain.Ticket, error)
	// ArchiveClosed moves tickets closed before the cutoff to ARCHIVED.
	ArchiveClosed(ctx context.Context) (int, error)
}

// CommentService defines the port for comment-related business logic.
type CommentService interface {
	CreateComment(ctx context.Context, params CreateCommentParams) (*domain.Comment, error)
}

// AttachmentService validates and stores ticket attachments.
type AttachmentService interface {
	StoreAttachment(ctx context.Context, params StoreAttachmentParams) (*domain.Attachment, error)
}

// IdentityResolver maps external actors to internal users.
type IdentityResolver interface {
	// Resolve returns the user and whether a new mapping was created by this call.
	Resolve(ctx context.Context, channel domain.Channel, externalID string, lookup ActorDirectoryLookup) (*domain.User, bool, error)
}

// ConversationCorrelator links tickets to external conversations and
// suppresses duplicate inbound events.
type ConversationCorrelator interface {
	LinkTicketToConversation(ctx context.Context, ticketID int64, handle domain.ConversationHandle) (bool, error)
	FindTicketByHandle(ctx context.Context, handle domain.ConversationHandle) (*domain.Ticket, error)
	IsDuplicate(ctx context.Context, channel domain.Channel, eventID string) (bool, error)
	// MarkProcessed records an event id once its work has been applied.
	MarkProcessed(ctx context.Context, channel domain.Channel, eventID string)
}

// SLAService computes deadlines and runs the breach and escalation scans.
type SLAService interface {
	ApplyPolicy(ctx context.Context, ticket *domain.Ticket) error
	ScanBreaches(ctx context.Context) (int, error)
	ScanEscalations(ctx context.Context) (int, error)
	MarkResponseMet(ctx context.Context, ticketID int64) error
	ListPolicies(ctx context.Context) ([]*domain.SLAPolicy, error)
	CreatePolicy(ctx context.Context, params domain.SLAPolicyParams) (*domain.SLAPolicy, error)
	GetStats(ctx context.Context) (*domain.SLAStats, error)
}

// AssignmentPolicy selects how an agent is chosen.
type AssignmentPolicy string

const (
	PolicyLeastBusy  AssignmentPolicy = "least-busy"
	PolicyRoundRobin AssignmentPolicy = "round-robin"
)

func (p AssignmentPolicy) IsValid() bool {
	return p == PolicyLeastBusy || p == PolicyRoundRobin
}

// AssignmentService balances tickets across agents.
type AssignmentService interface {
	AvailableAgents(ctx context.Context) ([]domain.AgentWorkload, error)
	Assign(ctx context.Context, ticketID int64, policy AssignmentPolicy) (*domain.Ticket, error)
	ProcessUnassigned(ctx context.Context) (int, error)
	Rebalance(ctx context.Context) (int, error)
}

// NotificationService fans ticket changes out to chat, email and live clients.
// Every method is fire-and-forget: failures are logged, never returned.
type NotificationService interface {
	TicketCreated(ctx context.Context, ticket *domain.Ticket, files []AttachmentUpload)
	StatusChanged(ctx context.Context, ticket *domain.Ticket)
	TicketAssigned(ctx context.Context, ticket *domain.Ticket, assignee *domain.User)
	CommentAdded(ctx context.Context, ticket *domain.Ticket, comment *domain.Comment, origin domain.Channel)
	AttachmentAdded(ctx context.Context, attachment *domain.Attachment)
	SLABreached(ctx context.Context, ticket *domain.Ticket)
	TicketEscalated(ctx context.Context, ticket *domain.Ticket, target *domain.User)
	TicketArchived(ctx context.Context, ticket *domain.Ticket)
	ReplyInThread(ctx context.Context, threadRef, text string)
	ScheduleConfirmation(ticket *domain.Ticket, delay time.Duration)
	Shutdown()
}

// ChatIngestService applies inbound chat messages to tickets.
type ChatIngestService interface {
	HandleMessage(ctx context.Context, msg domain.InboundChatMessage) error
}

// EmailIngestService applies inbound email messages to tickets.
type EmailIngestService interface {
	HandleEmail(ctx context.Context, email domain.InboundEmail) error
}

// --- Outbound collaborators ---

// NotificationKind selects what a Notifier renders.
type NotificationKind string

const (
	NotifyTicketCreated   NotificationKind = "ticket_created"
	NotifyStatusChanged   NotificationKind = "status_changed"
	NotifyTicketAssigned  NotificationKind = "ticket_assigned"
	NotifyCommentAdded    NotificationKind = "comment_added"
	NotifySLABreached     NotificationKind = "sla_breached"
	NotifyTicketEscalated NotificationKind = "ticket_escalated"
	NotifyThreadReply     NotificationKind = "thread_reply"
	NotifyConfirmation    NotificationKind = "confirmation"
)

// NotificationFile is a file to attach to an outbound message.
type NotificationFile struct {
	Name string
	Data []byte
}

// Notification carries everything a Notifier needs to render one message.
type Notification struct {
	Kind      NotificationKind
	Ticket    *domain.Ticket
	Comment   *domain.Comment
	Author    *domain.User
	Assignee  *domain.User
	ThreadRef string
	Recipient string
	Text      string
	Files     []NotificationFile
}

// Notifier sends a rendered message on one channel. For a ticket creation on
// a threaded channel the returned handle anchors the new conversation.
type Notifier interface {
	Send(ctx context.Context, n Notification) (string, error)
}

// EventBroadcaster defines the port for broadcasting real-time events.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// BlobStore persists attachment bytes.
type BlobStore interface {
	Store(ctx context.Context, data []byte, name string, ticketID int64) (string, error)
	Read(ctx context.Context, handle string) ([]byte, error)
}

// ActorDirectoryLookup fetches profile data for an external actor.
type ActorDirectoryLookup interface {
	LookupActor(ctx context.Context, externalID string) (*domain.ActorInfo, error)
}

// FileFetcher downloads a file shared on a channel.
type FileFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// UserMatcher finds internal users that plausibly are the given external actor.
type UserMatcher interface {
	Match(ctx context.Context, actor domain.ActorInfo) ([]*domain.User, error)
}
