package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

const maxDescriptionPreview = 300

// Notifier posts ticket activity to one channel. A new ticket opens a thread;
// everything after that is posted into it.
type Notifier struct {
	client    *slack.Client
	channelID string
	logger    *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(client *slack.Client, channelID string, logger *slog.Logger) ports.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		client:    client,
		channelID: channelID,
		logger:    logger.With("component", "slack_notifier"),
	}
}

// Send renders n and posts it. For NotifyTicketCreated the returned string is
// the timestamp of the new top-level message, which is the thread handle.
func (n *Notifier) Send(ctx context.Context, note ports.Notification) (string, error) {
	if note.Kind != ports.NotifyTicketCreated && note.ThreadRef == "" {
		return "", errors.New("slack notification needs a thread")
	}

	text, blocks := render(note)
	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if note.ThreadRef != "" {
		opts = append(opts, slack.MsgOptionTS(note.ThreadRef))
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("post %s message: %w", note.Kind, err)
	}

	if note.Kind != ports.NotifyTicketCreated {
		return ts, nil
	}

	for _, f := range note.Files {
		if err := n.upload(ctx, ts, f); err != nil {
			n.logger.ErrorContext(ctx, "failed to upload attachment to thread",
				"ticket_id", note.Ticket.ID, "file", f.Name, "error", err)
		}
	}
	return ts, nil
}

func (n *Notifier) upload(ctx context.Context, threadTS string, f ports.NotificationFile) error {
	_, err := n.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:          bytes.NewReader(f.Data),
		FileSize:        len(f.Data),
		Filename:        f.Name,
		Title:           f.Name,
		InitialComment:  "Attached: " + f.Name,
		Channel:         n.channelID,
		ThreadTimestamp: threadTS,
	})
	return err
}

// render returns the fallback text and the blocks for a notification.
func render(note ports.Notification) (string, []slack.Block) {
	t := note.Ticket
	switch note.Kind {
	case ports.NotifyTicketCreated:
		text := fmt.Sprintf("%s (%s)", t.Title, t.Number)
		return text, []slack.Block{
			slack.NewHeaderBlock(plain(t.Title)),
			slack.NewSectionBlock(nil, []*slack.TextBlockObject{
				markdown("*Ticket:*\n" + t.Number),
				markdown(fmt.Sprintf("*Priority:*\n%s %s", priorityEmoji(t.Priority), t.Priority)),
				markdown(fmt.Sprintf("*Status:*\n%s %s", statusEmoji(t.Status), t.Status)),
				markdown("*Category:*\n" + string(t.Category)),
				markdown("*Created By:*\n" + userName(note.Author, "System")),
				markdown("*Source:*\n" + string(t.Source)),
			}, nil),
			slack.NewSectionBlock(markdown("*Description:*\n"+preview(t.Description)), nil, nil),
			slack.NewContextBlock("", markdown("_Reply in this thread to comment on the ticket_")),
		}

	case ports.NotifyStatusChanged:
		return fmt.Sprintf("%s Status of %s changed to %s", statusEmoji(t.Status), t.Number, t.Status), nil

	case ports.NotifyTicketAssigned:
		return fmt.Sprintf(":bust_in_silhouette: %s assigned to %s", t.Number, userName(note.Assignee, "an agent")), nil

	case ports.NotifyCommentAdded:
		return fmt.Sprintf(":speech_balloon: *New comment on %s*\n\n%s\n\n_By %s_",
			t.Number, note.Comment.Body, userName(note.Author, "System")), nil

	case ports.NotifySLABreached:
		return fmt.Sprintf(":rotating_light: SLA breached on %s (%s priority)", t.Number, t.Priority), nil

	case ports.NotifyTicketEscalated:
		return fmt.Sprintf(":arrow_double_up: %s escalated to %s", t.Number, userName(note.Assignee, "an administrator")), nil

	default:
		return note.Text, nil
	}
}

func plain(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, truncate(s, 150), true, false)
}

func markdown(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func userName(u *domain.User, fallback string) string {
	if u == nil {
		return fallback
	}
	return u.DisplayName()
}

func preview(s string) string {
	if s == "" {
		return "_No description_"
	}
	return truncate(s, maxDescriptionPreview)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func priorityEmoji(p domain.TicketPriority) string {
	switch p {
	case domain.PriorityUrgent:
		return ":red_circle:"
	case domain.PriorityHigh:
		return ":large_orange_circle:"
	case domain.PriorityMedium:
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

func statusEmoji(s domain.TicketStatus) string {
	switch s {
	case domain.StatusOpen, domain.StatusReopened:
		return ":new:"
	case domain.StatusInProgress:
		return ":hammer_and_wrench:"
	case domain.StatusOnHold, domain.StatusPending:
		return ":double_vertical_bar:"
	case domain.StatusResolved:
		return ":white_check_mark:"
	default:
		return ":lock:"
	}
}
