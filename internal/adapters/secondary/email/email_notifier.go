package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// sendFunc matches smtp.SendMail; tests swap it out.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails ticket updates to external contacts and escalation targets.
// Every subject carries the ticket's reference tag so replies thread back.
type SMTPNotifier struct {
	addr   string
	auth   smtp.Auth
	from   *mail.Address
	send   sendFunc
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates a notifier for cfg. Auth is only used when a user is set.
func NewSMTPNotifier(cfg config.SMTPConfig, logger *slog.Logger) (ports.Notifier, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_FROM: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:   auth,
		from:   from,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger.With("component", "email_notifier"),
	}, nil
}

// Send renders and delivers n to n.Recipient. Email has no thread handle, so
// the returned string is always empty.
func (s *SMTPNotifier) Send(ctx context.Context, n ports.Notification) (string, error) {
	if n.Ticket == nil {
		return "", errors.New("email notification needs a ticket")
	}
	to, err := mail.ParseAddress(sanitizeHeader(n.Recipient))
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", n.Recipient, err)
	}

	subject, ok := subjectFor(n)
	if !ok {
		return "", fmt.Errorf("no email template for %s", n.Kind)
	}

	msg, err := s.compose(to, subject, n)
	if err != nil {
		return "", err
	}

	// net/smtp has no context support; honour cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.send(s.addr, s.auth, s.from.Address, []string{to.Address}, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent",
		"kind", n.Kind,
		"ticket_id", n.Ticket.ID,
		"to", to.Address,
	)
	return "", nil
}

func (s *SMTPNotifier) compose(to *mail.Address, subject string, n ports.Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{s.from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var text, html bytes.Buffer
	data := newTemplateData(n)
	if err := textTemplate.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var buf bytes.Buffer
	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/plain", text.Bytes()); err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/html", html.Bytes()); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(iw *mail.InlineWriter, contentType string, body []byte) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return w.Close()
}

// subjectFor builds "[Ticket #000123] ..." for the kinds mail supports.
func subjectFor(n ports.Notification) (string, bool) {
	tag := domain.ReferenceTag(n.Ticket.Number)
	title := sanitizeHeader(n.Ticket.Title)
	switch n.Kind {
	case ports.NotifyConfirmation:
		return fmt.Sprintf("%s Ticket Received: %s", tag, title), true
	case ports.NotifyCommentAdded:
		return fmt.Sprintf("Re: %s %s", tag, title), true
	case ports.NotifyStatusChanged:
		return fmt.Sprintf("%s Status updated: %s", tag, title), true
	case ports.NotifyTicketEscalated:
		return fmt.Sprintf("%s Escalated to you: %s", tag, title), true
	}
	return "", false
}

// sanitizeHeader drops CR and LF so values cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
