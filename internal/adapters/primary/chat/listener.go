package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/infrastructure/logging"
)

// Listener receives workspace events over Socket Mode and hands message events
// for the support channel to the ingest service, one at a time, in arrival order.
type Listener struct {
	run       func(ctx context.Context) error
	whoami    func(ctx context.Context) (string, error)
	selfID    string
	events    <-chan socketmode.Event
	ack       func(req socketmode.Request)
	channelID string
	ingest    ports.ChatIngestService
	logger    *slog.Logger
}

func NewListener(client *slack.Client, channelID string, ingest ports.ChatIngestService, logger *slog.Logger) *Listener {
	sm := socketmode.New(client)
	l := &Listener{
		run:       sm.RunContext,
		events:    sm.Events,
		ack:       func(req socketmode.Request) { sm.Ack(req) },
		channelID: channelID,
		ingest:    ingest,
		logger:    logger.With("component", "chat_listener"),
	}
	l.whoami = func(ctx context.Context) (string, error) {
		resp, err := client.AuthTestContext(ctx)
		if err != nil {
			return "", err
		}
		return resp.UserID, nil
	}
	return l
}

// Run blocks until ctx is cancelled or the connection fails permanently.
func (l *Listener) Run(ctx context.Context) error {
	if l.whoami != nil {
		id, err := l.whoami(ctx)
		if err != nil {
			l.logger.Warn("unable to look up bot user, relying on bot_id only", "error", err)
		} else {
			l.selfID = id
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- l.run(ctx) }()

	l.logger.Info("chat listener started", "channel_id", l.channelID, "bot_user_id", l.selfID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case evt, ok := <-l.events:
			if !ok {
				return nil
			}
			l.handleEvent(ctx, evt)
		}
	}
}

func (l *Listener) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		l.logger.Debug("connecting to chat workspace")
	case socketmode.EventTypeConnected:
		l.logger.Info("connected to chat workspace")
	case socketmode.EventTypeConnectionError:
		l.logger.Warn("chat connection error, retrying", "data", evt.Data)
	case socketmode.EventTypeInvalidAuth:
		l.logger.Error("chat credentials rejected")
	case socketmode.EventTypeEventsAPI:
		// Slack redelivers anything not acknowledged within three seconds.
		if evt.Request != nil {
			l.ack(*evt.Request)
		}
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		l.handleCallback(ctx, apiEvent.InnerEvent)
	}
}

func (l *Listener) handleCallback(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	var msg *slackevents.MessageEvent
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		msg = ev
	case slackevents.MessageEvent:
		msg = &ev
	default:
		return
	}
	if msg.Channel != l.channelID {
		return
	}

	inbound := ToInboundMessage(msg)
	if inbound.IsFromUser(l.selfID) {
		return
	}
	ctx = logging.WithInboundEvent(ctx, string(domain.ChannelChat), inbound.EventID)
	if err := l.ingest.HandleMessage(ctx, inbound); err != nil {
		l.logger.ErrorContext(ctx, "failed to apply chat message",
			"thread_ref", inbound.ThreadRef, "error", err)
	}
}

// ToInboundMessage keeps the fields ticket logic reads from a message event.
func ToInboundMessage(ev *slackevents.MessageEvent) domain.InboundChatMessage {
	msg := domain.InboundChatMessage{
		ChannelID: ev.Channel,
		EventID:   ev.TimeStamp,
		ThreadRef: ev.ThreadTimeStamp,
		UserID:    ev.User,
		BotID:     ev.BotID,
		SubType:   ev.SubType,
		Text:      ev.Text,
	}
	if ev.Message == nil {
		return msg
	}
	if msg.BotID == "" {
		msg.BotID = ev.Message.BotID
	}
	for _, f := range ev.Message.Files {
		url := f.URLPrivateDownload
		if url == "" {
			url = f.URLPrivate
		}
		msg.Files = append(msg.Files, domain.ChatFile{
			ID:          f.ID,
			Name:        f.Name,
			MimeType:    f.Mimetype,
			Size:        int64(f.Size),
			DownloadURL: url,
		})
	}
	return msg
}
