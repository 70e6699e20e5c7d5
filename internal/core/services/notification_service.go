package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

const defaultSendTimeout = 30 * time.Second

// NotificationService fans ticket changes out to the chat channel, email and
// live clients. Sends run in the background and never fail the caller.
type NotificationService struct {
	chat        ports.Notifier
	mail        ports.Notifier
	broadcaster ports.EventBroadcaster
	users       ports.UserRepository
	correlator  ports.ConversationCorrelator
	sendTimeout time.Duration
	logger      *slog.Logger

	// mu orders wg.Add against Shutdown; stopped is set under it.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	stop    chan struct{}
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NotificationDeps bundles the collaborators of the notification service.
// Chat, Mail and Broadcaster are optional; a nil collaborator is skipped.
type NotificationDeps struct {
	Chat        ports.Notifier
	Mail        ports.Notifier
	Broadcaster ports.EventBroadcaster
	Users       ports.UserRepository
	Correlator  ports.ConversationCorrelator
	SendTimeout time.Duration
	Logger      *slog.Logger
}

func NewNotificationService(deps NotificationDeps) ports.NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &NotificationService{
		chat:        deps.Chat,
		mail:        deps.Mail,
		broadcaster: deps.Broadcaster,
		users:       deps.Users,
		correlator:  deps.Correlator,
		sendTimeout: timeout,
		logger:      logger.With("component", "notifications"),
		stop:        make(chan struct{}),
	}
}

// TicketCreated posts the ticket to chat, links the new thread and uploads
// image attachments into it.
func (s *NotificationService) TicketCreated(ctx context.Context, ticket *domain.Ticket, files []ports.AttachmentUpload) {
	s.broadcast(domain.EventTicketCreated, ticket.ID, domain.NewTicketSnapshot(ticket))
	if s.chat == nil {
		return
	}

	snapshot := ticket.Clone()
	images := imageFiles(files)
	s.goSend(ctx, "ticket_created", func(ctx context.Context) {
		handle, err := s.chat.Send(ctx, ports.Notification{
			Kind:   ports.NotifyTicketCreated,
			Ticket: snapshot,
			Author: s.loadUser(ctx, snapshot.CreatorID),
			Files:  images,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to post ticket to chat",
				"ticket_id", snapshot.ID, "error", err)
			return
		}
		if handle == "" || s.correlator == nil {
			return
		}
		if _, err := s.correlator.LinkTicketToConversation(ctx, snapshot.ID, domain.ChatThread(handle)); err != nil {
			s.logger.ErrorContext(ctx, "failed to link chat thread",
				"ticket_id", snapshot.ID, "thread_ref", handle, "error", err)
		}
	})
}

func (s *NotificationService) StatusChanged(ctx context.Context, ticket *domain.Ticket) {
	s.broadcast(domain.EventStatusUpdated, ticket.ID, domain.NewTicketSnapshot(ticket))
	s.sendToThread(ctx, ports.Notification{Kind: ports.NotifyStatusChanged, Ticket: ticket.Clone()})
	s.sendToContact(ctx, ports.Notification{Kind: ports.NotifyStatusChanged, Ticket: ticket.Clone()})
}

func (s *NotificationService) TicketAssigned(ctx context.Context, ticket *domain.Ticket, assignee *domain.User) {
	s.broadcast(domain.EventTicketAssigned, ticket.ID, domain.NewTicketSnapshot(ticket))
	s.sendToThread(ctx, ports.Notification{
		Kind:     ports.NotifyTicketAssigned,
		Ticket:   ticket.Clone(),
		Assignee: assignee,
	})
}

// CommentAdded publishes the comment everywhere except the channel it came
// from. Internal comments stay on the live feed.
func (s *NotificationService) CommentAdded(ctx context.Context, ticket *domain.Ticket, comment *domain.Comment, origin domain.Channel) {
	s.broadcast(domain.EventCommentAdded, ticket.ID, domain.NewCommentSnapshot(comment))
	if comment.IsInternal {
		return
	}

	author := s.loadUser(ctx, comment.AuthorID)
	if origin != domain.ChannelChat {
		s.sendToThread(ctx, ports.Notification{
			Kind:    ports.NotifyCommentAdded,
			Ticket:  ticket.Clone(),
			Comment: comment,
			Author:  author,
		})
	}
	if origin != domain.ChannelEmail && comment.AuthorID != ticket.CreatorID {
		s.sendToContact(ctx, ports.Notification{
			Kind:    ports.NotifyCommentAdded,
			Ticket:  ticket.Clone(),
			Comment: comment,
			Author:  author,
		})
	}
}

func (s *NotificationService) AttachmentAdded(_ context.Context, attachment *domain.Attachment) {
	s.broadcast(domain.EventAttachmentAdded, attachment.TicketID, domain.NewAttachmentSnapshot(attachment))
}

func (s *NotificationService) SLABreached(ctx context.Context, ticket *domain.Ticket) {
	s.broadcast(domain.EventSLABreached, ticket.ID, domain.NewTicketSnapshot(ticket))
	s.sendToThread(ctx, ports.Notification{Kind: ports.NotifySLABreached, Ticket: ticket.Clone()})
}

// TicketEscalated tells the thread and mails the escalation target directly.
func (s *NotificationService) TicketEscalated(ctx context.Context, ticket *domain.Ticket, target *domain.User) {
	s.broadcast(domain.EventTicketEscalated, ticket.ID, domain.NewTicketSnapshot(ticket))
	s.sendToThread(ctx, ports.Notification{
		Kind:     ports.NotifyTicketEscalated,
		Ticket:   ticket.Clone(),
		Assignee: target,
	})

	if s.mail == nil || target == nil || target.Email == "" {
		return
	}
	n := ports.Notification{
		Kind:      ports.NotifyTicketEscalated,
		Ticket:    ticket.Clone(),
		Assignee:  target,
		Recipient: target.Email,
	}
	s.goSend(ctx, "ticket_escalated", func(ctx context.Context) {
		if _, err := s.mail.Send(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to mail escalation target",
				"ticket_id", n.Ticket.ID, "recipient", n.Recipient, "error", err)
		}
	})
}

func (s *NotificationService) TicketArchived(_ context.Context, ticket *domain.Ticket) {
	s.broadcast(domain.EventTicketArchived, ticket.ID, domain.NewTicketSnapshot(ticket))
}

// ReplyInThread answers a chat command in its thread.
func (s *NotificationService) ReplyInThread(ctx context.Context, threadRef, text string) {
	if s.chat == nil || threadRef == "" {
		return
	}
	s.goSend(ctx, "thread_reply", func(ctx context.Context) {
		_, err := s.chat.Send(ctx, ports.Notification{
			Kind:      ports.NotifyThreadReply,
			ThreadRef: threadRef,
			Text:      text,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to reply in thread",
				"thread_ref", threadRef, "error", err)
		}
	})
}

// ScheduleConfirmation mails the ticket's contact after delay. The delay keeps
// the send away from the mailbox poll that created the ticket. Pending
// confirmations are dropped on shutdown.
func (s *NotificationService) ScheduleConfirmation(ticket *domain.Ticket, delay time.Duration) {
	if s.mail == nil || ticket.ContactEmail == nil || *ticket.ContactEmail == "" {
		return
	}
	n := ports.Notification{
		Kind:      ports.NotifyConfirmation,
		Ticket:    ticket.Clone(),
		Recipient: *ticket.ContactEmail,
	}

	if !s.track() {
		s.logger.Warn("confirmation dropped, shutting down", "ticket_id", n.Ticket.ID)
		return
	}
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stop:
			s.logger.Warn("confirmation dropped on shutdown", "ticket_id", n.Ticket.ID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()
		if _, err := s.mail.Send(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to send confirmation email",
				"ticket_id", n.Ticket.ID, "recipient", n.Recipient, "error", err)
			return
		}
		s.logger.InfoContext(ctx, "confirmation email sent",
			"ticket_id", n.Ticket.ID, "recipient", n.Recipient)
	}()
}

// Shutdown cancels pending confirmations and waits for in-flight sends.
func (s *NotificationService) Shutdown() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// track registers one background send. It returns false once Shutdown has begun.
func (s *NotificationService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// sendToThread posts n into the ticket's chat thread, if it has one.
func (s *NotificationService) sendToThread(ctx context.Context, n ports.Notification) {
	if s.chat == nil || n.Ticket.ChatThreadRef == nil {
		return
	}
	n.ThreadRef = *n.Ticket.ChatThreadRef
	s.goSend(ctx, string(n.Kind), func(ctx context.Context) {
		if _, err := s.chat.Send(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to send chat notification",
				"kind", n.Kind, "ticket_id", n.Ticket.ID, "error", err)
		}
	})
}

// sendToContact mails the external contact of an email ticket.
func (s *NotificationService) sendToContact(ctx context.Context, n ports.Notification) {
	if s.mail == nil || n.Ticket.Source != domain.SourceEmail || n.Ticket.ContactEmail == nil {
		return
	}
	n.Recipient = *n.Ticket.ContactEmail
	s.goSend(ctx, string(n.Kind), func(ctx context.Context) {
		if _, err := s.mail.Send(ctx, n); err != nil {
			s.logger.ErrorContext(ctx, "failed to send email notification",
				"kind", n.Kind, "ticket_id", n.Ticket.ID, "recipient", n.Recipient, "error", err)
		}
	})
}

// goSend runs fn detached from the caller's cancellation, since the request
// that triggered it may already be done.
func (s *NotificationService) goSend(ctx context.Context, what string, fn func(ctx context.Context)) {
	if !s.track() {
		s.logger.DebugContext(ctx, "notification skipped, shutting down", "kind", what)
		return
	}
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification panicked", "kind", what, "panic", r)
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sendTimeout)
		defer cancel()
		fn(sendCtx)
	}()
}

func (s *NotificationService) broadcast(eventType domain.EventType, ticketID int64, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	event := domain.Event{
		Type:     eventType,
		Payload:  payload,
		TicketID: ticketID,
	}
	if err := s.broadcaster.Broadcast(event); err != nil {
		s.logger.Warn("failed to broadcast event",
			"type", eventType, "ticket_id", ticketID, "error", err)
	}
}

func (s *NotificationService) loadUser(ctx context.Context, id uuid.UUID) *domain.User {
	if s.users == nil || id == uuid.Nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "notification author not found", "user_id", id, "error", err)
		return nil
	}
	return user
}

func imageFiles(files []ports.AttachmentUpload) []ports.NotificationFile {
	var images []ports.NotificationFile
	for _, f := range files {
		if !domain.IsImage(f.MimeType) {
			continue
		}
		images = append(images, ports.NotificationFile{Name: f.Name, Data: f.Data})
	}
	return images
}
