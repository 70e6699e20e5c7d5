package mailbox

import (
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
)

// maxPartSize bounds how much of one MIME part is read into memory.
var maxPartSize int64 = 25 << 20

var errPartTooLarge = errors.New("message part too large")

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6])>`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
)

// ParseMessage decodes a raw RFC 5322 message into the fields ingest reads.
func ParseMessage(r io.Reader, uid uint32, key string) (domain.InboundEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return domain.InboundEmail{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	email := domain.InboundEmail{UID: uid, Key: key}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
		email.FromName = from[0].Name
	}
	if email.From == "" {
		return domain.InboundEmail{}, errors.New("message has no sender")
	}
	email.Subject, _ = mr.Header.Subject()
	email.MessageID, _ = mr.Header.MessageID()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return domain.InboundEmail{}, fmt.Errorf("read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := readPart(part.Body)
			if err != nil {
				return domain.InboundEmail{}, err
			}
			switch {
			case contentType == "text/plain" && email.TextBody == "":
				email.TextBody = string(body)
			case contentType == "text/html" && htmlBody == "":
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, err := readPart(part.Body)
			if errors.Is(err, errPartTooLarge) {
				// The file is dropped; the rest of the message still makes a ticket.
				_, _ = io.Copy(io.Discard, part.Body)
				email.SkippedAttachments = append(email.SkippedAttachments, name)
				continue
			}
			if err != nil {
				return domain.InboundEmail{}, err
			}
			if name == "" || len(data) == 0 {
				continue
			}
			email.Attachments = append(email.Attachments, domain.InboundAttachment{
				Name:     name,
				MimeType: contentType,
				Data:     data,
			})
		}
	}

	if htmlBody != "" {
		email.HTMLBody = HTMLToText(htmlBody)
	}
	return email, nil
}

// HTMLToText strips markup, keeping line breaks at block boundaries.
func HTMLToText(s string) string {
	s = blockBreaks.ReplaceAllString(s, "$0\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(s, "\n\n"))
}

func readPart(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("read part body: %w", err)
	}
	if int64(len(data)) > maxPartSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", errPartTooLarge, maxPartSize)
	}
	return data, nil
}
