package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// assignCommandPattern matches "assign <@U123>" and "assign to <@U123|name>".
// The submatch is the mentioned actor, so a leading bot mention is ignored.
var assignCommandPattern = regexp.MustCompile(`(?i)\bassign\s+(?:to\s+)?<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// assignTriggerPattern catches a message that opens with an assign command,
// optionally after a bot mention, whether or not it names a valid user.
var assignTriggerPattern = regexp.MustCompile(`(?i)^\s*(?:<@[A-Z0-9]+(?:\|[^>]*)?>\s*)?assign\s+(?:to\s+)?\S`)

// Replies posted in a thread after an assign command.
const (
	replyNoTicket   = "Could not find ticket for this thread"
	replyNoMention  = "Please mention a user: assign @username"
	replyNotAgent   = "%s is not an agent and cannot be assigned tickets"
	replyAssigned   = "Ticket %s assigned to %s"
	replyAssignFail = "Failed to assign ticket: %v"
)

// ChatIngestService turns thread replies on the chat channel into comments,
// attachments and assignments.
type ChatIngestService struct {
	correlator    ports.ConversationCorrelator
	resolver      ports.IdentityResolver
	lookup        ports.ActorDirectoryLookup
	tickets       ports.TicketService
	comments      ports.CommentService
	attachments   ports.AttachmentService
	fetcher       ports.FileFetcher
	notifications ports.NotificationService
	maxFileSize   int64
	logger        *slog.Logger
}

var _ ports.ChatIngestService = (*ChatIngestService)(nil)

// ChatIngestDeps bundles the collaborators of the chat ingest path.
// Lookup defaults to DisabledActorLookup; a nil Fetcher skips file downloads.
type ChatIngestDeps struct {
	Correlator    ports.ConversationCorrelator
	Resolver      ports.IdentityResolver
	Lookup        ports.ActorDirectoryLookup
	Tickets       ports.TicketService
	Comments      ports.CommentService
	Attachments   ports.AttachmentService
	Fetcher       ports.FileFetcher
	Notifications ports.NotificationService
	MaxFileSize   int64
	Logger        *slog.Logger
}

func NewChatIngestService(deps ChatIngestDeps) ports.ChatIngestService {
	lookup := deps.Lookup
	if lookup == nil {
		lookup = DisabledActorLookup{}
	}
	maxSize := deps.MaxFileSize
	if maxSize <= 0 {
		maxSize = domain.DefaultMaxAttachmentSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatIngestService{
		correlator:    deps.Correlator,
		resolver:      deps.Resolver,
		lookup:        lookup,
		tickets:       deps.Tickets,
		comments:      deps.Comments,
		attachments:   deps.Attachments,
		fetcher:       deps.Fetcher,
		notifications: deps.Notifications,
		maxFileSize:   maxSize,
		logger:        logger.With("component", "chat_ingest"),
	}
}

// HandleMessage applies one chat message. Only human replies inside a ticket
// thread are considered; each message id is applied at most once. The id is
// recorded after the work is done, so a crash in between leads to a retry
// that the comment's external_ref turns into a no-op.
func (s *ChatIngestService) HandleMessage(ctx context.Context, msg domain.InboundChatMessage) error {
	// 1. Loop prevention and top-level chatter.
	if msg.IsFromBot() || !msg.IsThreadReply() {
		return nil
	}

	// 2. Duplicate suppression. A failing store degrades to at-least-once.
	duplicate, err := s.correlator.IsDuplicate(ctx, domain.ChannelChat, msg.EventID)
	if err != nil {
		s.logger.WarnContext(ctx, "dedupe check failed, processing anyway",
			"event_id", msg.EventID, "error", err)
	}
	if duplicate {
		s.logger.DebugContext(ctx, "duplicate chat message ignored", "event_id", msg.EventID)
		return nil
	}

	// 3. Command or comment.
	if isAssignCommand(msg.Text) {
		reply := s.handleAssign(ctx, msg)
		s.notifications.ReplyInThread(ctx, msg.ThreadRef, reply)
		s.correlator.MarkProcessed(ctx, domain.ChannelChat, msg.EventID)
		return nil
	}

	if err := s.handleReply(ctx, msg); err != nil {
		return err
	}
	s.correlator.MarkProcessed(ctx, domain.ChannelChat, msg.EventID)
	return nil
}

func isAssignCommand(text string) bool {
	return assignCommandPattern.MatchString(text) || assignTriggerPattern.MatchString(text)
}

// handleAssign runs an "assign to @user" command and returns the reply text.
func (s *ChatIngestService) handleAssign(ctx context.Context, msg domain.InboundChatMessage) string {
	ticket, err := s.correlator.FindTicketByHandle(ctx, domain.ChatThread(msg.ThreadRef))
	if err != nil {
		if !isNotFound(err) {
			s.logger.ErrorContext(ctx, "thread lookup failed", "thread_ref", msg.ThreadRef, "error", err)
		}
		return replyNoTicket
	}

	m := assignCommandPattern.FindStringSubmatch(msg.Text)
	if m == nil {
		return replyNoMention
	}
	mentioned := m[1]

	user, _, err := s.resolver.Resolve(ctx, domain.ChannelChat, mentioned, s.lookup)
	if err != nil {
		var resolveErr *apperrors.IdentityResolutionError
		if errors.As(err, &resolveErr) {
			s.logger.InfoContext(ctx, "assign mention unresolved",
				"ticket_id", ticket.ID, "mention", mentioned, "reason", resolveErr.Reason)
			return resolveErr.Reason
		}
		s.logger.ErrorContext(ctx, "assign mention lookup failed", "mention", mentioned, "error", err)
		return fmt.Sprintf(replyAssignFail, err)
	}

	if !user.IsAgentCapable() {
		return fmt.Sprintf(replyNotAgent, user.DisplayName())
	}

	assigned, err := s.tickets.AssignTicket(ctx, ports.AssignTicketParams{
		TicketID:   ticket.ID,
		AssigneeID: user.ID,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotAnAgent) {
			return fmt.Sprintf(replyNotAgent, user.DisplayName())
		}
		s.logger.ErrorContext(ctx, "assign command failed", "ticket_id", ticket.ID, "error", err)
		return fmt.Sprintf(replyAssignFail, err)
	}

	s.logger.InfoContext(ctx, "ticket assigned from chat",
		"ticket_id", assigned.ID,
		"number", assigned.Number,
		"assignee_id", user.ID,
	)
	return fmt.Sprintf(replyAssigned, assigned.Number, user.DisplayName())
}

// handleReply records a thread reply as a public comment and stores its images.
func (s *ChatIngestService) handleReply(ctx context.Context, msg domain.InboundChatMessage) error {
	ticket, err := s.correlator.FindTicketByHandle(ctx, domain.ChatThread(msg.ThreadRef))
	if err != nil {
		if isNotFound(err) {
			s.logger.WarnContext(ctx, "no ticket for chat thread, dropping reply", "thread_ref", msg.ThreadRef)
			return nil
		}
		return fmt.Errorf("find ticket for thread: %w", err)
	}

	authorID := s.resolveAuthor(ctx, msg.UserID, ticket)

	if text := strings.TrimSpace(msg.Text); text != "" {
		eventID := msg.EventID
		_, err := s.comments.CreateComment(ctx, ports.CreateCommentParams{
			TicketID:    ticket.ID,
			AuthorID:    authorID,
			Body:        text,
			ExternalRef: &eventID,
			Origin:      domain.ChannelChat,
		})
		switch {
		case errors.Is(err, apperrors.ErrDuplicateEvent):
			s.logger.DebugContext(ctx, "chat reply already recorded", "event_id", msg.EventID)
			return nil
		case err != nil:
			return fmt.Errorf("create comment: %w", err)
		}
		s.logger.InfoContext(ctx, "comment created from chat",
			"ticket_id", ticket.ID, "author_id", authorID)
	}

	for _, file := range msg.Files {
		if !domain.IsImage(file.MimeType) {
			continue
		}
		if err := s.storeFile(ctx, ticket.ID, authorID, file); err != nil {
			s.logger.ErrorContext(ctx, "failed to store chat attachment",
				"ticket_id", ticket.ID, "file", file.Name, "error", err)
		}
	}
	return nil
}

// resolveAuthor maps the sender, falling back to the assignee, then the creator.
func (s *ChatIngestService) resolveAuthor(ctx context.Context, externalID string, ticket *domain.Ticket) uuid.UUID {
	if externalID != "" {
		user, _, err := s.resolver.Resolve(ctx, domain.ChannelChat, externalID, s.lookup)
		if err == nil {
			return user.ID
		}
		s.logger.WarnContext(ctx, "could not map chat sender, using fallback author",
			"external_id", externalID, "error", err)
	}
	if ticket.AssigneeID != nil {
		return *ticket.AssigneeID
	}
	return ticket.CreatorID
}

func (s *ChatIngestService) storeFile(ctx context.Context, ticketID int64, uploaderID uuid.UUID, file domain.ChatFile) error {
	if file.Size > s.maxFileSize {
		s.logger.WarnContext(ctx, "skipping oversized chat attachment",
			"file", file.Name, "size", file.Size, "limit", s.maxFileSize)
		return nil
	}
	if s.fetcher == nil || file.DownloadURL == "" {
		return fmt.Errorf("no download available for %s", file.Name)
	}

	data, err := s.fetcher.Fetch(ctx, file.DownloadURL, s.maxFileSize)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	_, err = s.attachments.StoreAttachment(ctx, ports.StoreAttachmentParams{
		TicketID:   ticketID,
		UploaderID: uploaderID,
		Name:       domain.SanitizeFileName(file.Name),
		MimeType:   file.MimeType,
		Data:       data,
	})
	return err
}
