package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// DefaultConfirmationDelay keeps the confirmation email clear of the poll
// cycle that created the ticket.
const DefaultConfirmationDelay = 30 * time.Second

// EmailIngestService turns mailbox messages into tickets and comments.
type EmailIngestService struct {
	correlator        ports.ConversationCorrelator
	users             ports.UserRepository
	tickets           ports.TicketService
	comments          ports.CommentService
	attachments       ports.AttachmentService
	notifications     ports.NotificationService
	confirmationDelay time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

var _ ports.EmailIngestService = (*EmailIngestService)(nil)

type EmailIngestDeps struct {
	Correlator        ports.ConversationCorrelator
	Users             ports.UserRepository
	Tickets           ports.TicketService
	Comments          ports.CommentService
	Attachments       ports.AttachmentService
	Notifications     ports.NotificationService
	ConfirmationDelay time.Duration
	Clock             func() time.Time
	Logger            *slog.Logger
}

func NewEmailIngestService(deps EmailIngestDeps) ports.EmailIngestService {
	delay := deps.ConfirmationDelay
	if delay <= 0 {
		delay = DefaultConfirmationDelay
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailIngestService{
		correlator:        deps.Correlator,
		users:             deps.Users,
		tickets:           deps.Tickets,
		comments:          deps.Comments,
		attachments:       deps.Attachments,
		notifications:     deps.Notifications,
		confirmationDelay: delay,
		now:               clock,
		logger:            logger.With("component", "email_ingest"),
	}
}

// HandleEmail routes one message: a subject carrying a reference tag becomes a
// comment on that ticket, anything else opens a new ticket. A returned error
// means the message should stay unread so the next poll retries it. The key is
// recorded only after the work succeeded; until then the external_ref on the
// ticket or comment is what rejects a second copy.
func (s *EmailIngestService) HandleEmail(ctx context.Context, email domain.InboundEmail) error {
	key := email.DedupeKey()

	duplicate, err := s.correlator.IsDuplicate(ctx, domain.ChannelEmail, key)
	if err != nil {
		s.logger.WarnContext(ctx, "dedupe check failed, processing anyway", "key", key, "error", err)
	}
	if duplicate {
		s.logger.DebugContext(ctx, "duplicate email ignored", "key", key)
		return nil
	}

	if _, ok := domain.ParseReferenceTag(email.Subject); ok {
		err = s.handleReply(ctx, email, key)
	} else {
		err = s.handleNewTicket(ctx, email, key)
	}
	if err != nil {
		return err
	}
	s.correlator.MarkProcessed(ctx, domain.ChannelEmail, key)
	return nil
}

func (s *EmailIngestService) handleNewTicket(ctx context.Context, email domain.InboundEmail, key string) error {
	// 1. Resolve or create the sender.
	sender, err := s.findOrCreateSender(ctx, email.From, email.FromName)
	if err != nil {
		return err
	}

	// 2. Create the ticket; the ticket service stores attachments and
	// announces it on chat.
	contact := sender.Email
	ticket, err := s.tickets.CreateTicket(ctx, ports.CreateTicketParams{
		Title:        domain.EmailTicketTitle(email.Subject),
		Description:  domain.CleanEmailBody(emailContent(email)),
		Priority:     domain.PriorityMedium,
		Category:     domain.CategoryOther,
		Source:       domain.SourceEmail,
		CreatorID:    sender.ID,
		ContactEmail: &contact,
		ExternalRef:  &key,
		Attachments:  uploads(email.Attachments),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEvent) {
			s.logger.InfoContext(ctx, "email already turned into a ticket", "key", key)
			return nil
		}
		return fmt.Errorf("create ticket from email: %w", err)
	}

	s.logger.InfoContext(ctx, "ticket created from email",
		"ticket_id", ticket.ID,
		"number", ticket.Number,
		"from", sender.Email,
	)

	// 3. Confirm to the sender once the mailbox has settled.
	s.notifications.ScheduleConfirmation(ticket, s.confirmationDelay)
	return nil
}

func (s *EmailIngestService) handleReply(ctx context.Context, email domain.InboundEmail, key string) error {
	// 1. The tag decides the ticket; nothing else does.
	ticket, err := s.correlator.FindTicketByHandle(ctx, domain.EmailSubject(email.Subject))
	if err != nil {
		if isNotFound(err) {
			s.logger.WarnContext(ctx, "reply references unknown ticket, dropping",
				"subject", email.Subject, "from", email.From)
			return nil
		}
		return fmt.Errorf("find ticket for reply: %w", err)
	}

	// 2. Resolve or create the sender.
	sender, err := s.findOrCreateSender(ctx, email.From, email.FromName)
	if err != nil {
		return err
	}

	// 3. Record the comment.
	_, err = s.comments.CreateComment(ctx, ports.CreateCommentParams{
		TicketID:    ticket.ID,
		AuthorID:    sender.ID,
		Body:        domain.CleanEmailBody(emailContent(email)),
		ExternalRef: &key,
		Origin:      domain.ChannelEmail,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateEvent) {
			s.logger.InfoContext(ctx, "email reply already recorded", "key", key)
			return nil
		}
		return fmt.Errorf("create comment from email: %w", err)
	}

	// 4. Store attachments. One bad file does not fail the reply.
	for _, att := range email.Attachments {
		_, err := s.attachments.StoreAttachment(ctx, ports.StoreAttachmentParams{
			TicketID:   ticket.ID,
			UploaderID: sender.ID,
			Name:       domain.SanitizeFileName(att.Name),
			MimeType:   att.MimeType,
			Data:       att.Data,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to store email attachment",
				"ticket_id", ticket.ID, "file", att.Name, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "comment added from email",
		"ticket_id", ticket.ID,
		"number", ticket.Number,
		"from", sender.Email,
	)
	return nil
}

// findOrCreateSender returns the user behind address, creating a USER with an
// unusable password and a unique username when none exists.
func (s *EmailIngestService) findOrCreateSender(ctx context.Context, address, displayName string) (*domain.User, error) {
	email, err := domain.NormalizeEmail(address)
	if err != nil {
		return nil, fmt.Errorf("sender %q: %w", address, err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("lookup sender: %w", err)
	}

	user, err = domain.NewInboundUser(email, displayName, s.now())
	if err != nil {
		return nil, err
	}
	user.Username, err = uniqueUsername(ctx, s.users, user.Username)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		// Another message from the same sender may have created it first.
		if errors.Is(err, apperrors.ErrConflict) {
			return s.users.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create sender: %w", err)
	}

	s.logger.InfoContext(ctx, "created user for email sender",
		"user_id", created.ID,
		"username", created.Username,
		"email", created.Email,
	)
	return created, nil
}

// uniqueUsername returns base, or base1, base2, ... for the first free name.
func uniqueUsername(ctx context.Context, users ports.UserRepository, base string) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		exists, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(counter)
	}
}

// emailContent prefers the plain-text part.
func emailContent(email domain.InboundEmail) string {
	if strings.TrimSpace(email.TextBody) != "" {
		return email.TextBody
	}
	return email.HTMLBody
}

func uploads(attachments []domain.InboundAttachment) []ports.AttachmentUpload {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]ports.AttachmentUpload, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, ports.AttachmentUpload{
			Name:     domain.SanitizeFileName(a.Name),
			MimeType: a.MimeType,
			Data:     a.Data,
		})
	}
	return out
}
