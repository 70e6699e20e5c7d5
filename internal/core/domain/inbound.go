package domain

import (
	"regexp"
	"strings"
)

// ChatFile is a file shared alongside a chat message.
type ChatFile struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	DownloadURL string
}

// InboundChatMessage holds the fields of a chat message event that ticket logic reads.
type InboundChatMessage struct {
	ChannelID string
	// EventID is the channel-scoped message id (the message timestamp).
	EventID   string
	ThreadRef string
	UserID    string
	BotID     string
	SubType   string
	Text      string
	Files     []ChatFile
}

// IsThreadReply reports whether the message answers an existing thread.
func (m InboundChatMessage) IsThreadReply() bool {
	return m.ThreadRef != "" && m.ThreadRef != m.EventID
}

// IsFromBot reports whether the message was generated by an integration.
func (m InboundChatMessage) IsFromBot() bool {
	return m.BotID != "" || m.SubType == "bot_message"
}

// IsFromUser reports whether userID posted the message. File uploads made by
// our own bot arrive under its user id and may carry no bot id.
func (m InboundChatMessage) IsFromUser(userID string) bool {
	return userID != "" && m.UserID == userID
}

// InboundAttachment is a file part of an inbound email.
type InboundAttachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// InboundEmail holds a parsed mailbox message.
type InboundEmail struct {
	// UID is the mailbox UID; Key combines it with UIDVALIDITY for deduplication.
	UID       uint32
	Key       string
	MessageID string
	From      string
	FromName  string
	Subject   string
	TextBody  string
	HTMLBody  string

	Attachments []InboundAttachment
	// SkippedAttachments names files dropped for exceeding the part size cap.
	SkippedAttachments []string
}

// DedupeKey prefers the Message-ID header and falls back to the mailbox key.
func (e InboundEmail) DedupeKey() string {
	if id := strings.Trim(strings.TrimSpace(e.MessageID), "<>"); id != "" {
		return id
	}
	return e.Key
}

// --- Email body cleanup ---

const (
	MaxEmailBodyLength = 5000
	truncatedMarker    = "\n\n[Content truncated...]"
	emptyBodyText      = "No content provided"
	DefaultSubject     = "No Subject"
)

var (
	signatureSeparators = []*regexp.Regexp{
		regexp.MustCompile(`\n--\s*\n`),
		regexp.MustCompile(`\n---\s*\n`),
	}
	replyHeaderPattern = regexp.MustCompile(`(?im)On .* wrote:\s*$`)
)

// CleanEmailBody strips signatures, quoted lines and reply headers, then
// bounds the result to MaxEmailBodyLength.
func CleanEmailBody(content string) string {
	cleaned := strings.ReplaceAll(content, "\r\n", "\n")

	for _, sep := range signatureSeparators {
		cleaned = sep.Split(cleaned, 2)[0]
	}

	lines := strings.Split(cleaned, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	cleaned = strings.Join(kept, "\n")

	cleaned = replyHeaderPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > MaxEmailBodyLength {
		cleaned = truncateUTF8(cleaned, MaxEmailBodyLength) + truncatedMarker
	}
	if cleaned == "" {
		return emptyBodyText
	}
	return cleaned
}

// EmailTicketTitle turns a subject into a ticket title.
func EmailTicketTitle(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return truncateUTF8(subject, MaxTitleLength)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
