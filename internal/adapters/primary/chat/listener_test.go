package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/mocks"
)

const threadReplyJSON = `{
	"type": "message",
	"channel": "C123",
	"user": "U42",
	"text": "printer works again",
	"ts": "1700000100.000200",
	"thread_ts": "1700000000.000100",
	"files": [{
		"id": "F1",
		"name": "proof.png",
		"mimetype": "image/png",
		"size": 2048,
		"url_private": "https://files.example.com/F1",
		"url_private_download": "https://files.example.com/F1/download"
	}]
}`

func decodeMessage(t *testing.T, raw string) *slackevents.MessageEvent {
	t.Helper()
	var ev slackevents.MessageEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return &ev
}

type testListener struct {
	*Listener
	events chan socketmode.Event
	mu     sync.Mutex
	acked  []string
}

func newTestListener(ingest *mocks.MockChatIngestService) *testListener {
	tl := &testListener{events: make(chan socketmode.Event, 4)}
	tl.Listener = &Listener{
		run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		events: tl.events,
		ack: func(req socketmode.Request) {
			tl.mu.Lock()
			tl.acked = append(tl.acked, req.EnvelopeID)
			tl.mu.Unlock()
		},
		channelID: "C123",
		ingest:    ingest,
		logger:    slog.Default(),
	}
	return tl
}

func eventsAPI(envelope string, data interface{}) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "message",
				Data: data,
			},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func TestToInboundMessage(t *testing.T) {
	msg := ToInboundMessage(decodeMessage(t, threadReplyJSON))

	assert.Equal(t, "C123", msg.ChannelID)
	assert.Equal(t, "1700000100.000200", msg.EventID)
	assert.Equal(t, "1700000000.000100", msg.ThreadRef)
	assert.Equal(t, "U42", msg.UserID)
	assert.Equal(t, "printer works again", msg.Text)
	assert.True(t, msg.IsThreadReply())
	assert.False(t, msg.IsFromBot())
	require.Len(t, msg.Files, 1)
	assert.Equal(t, domain.ChatFile{
		ID:          "F1",
		Name:        "proof.png",
		MimeType:    "image/png",
		Size:        2048,
		DownloadURL: "https://files.example.com/F1/download",
	}, msg.Files[0])
}

func TestToInboundMessage_BotMessage(t *testing.T) {
	msg := ToInboundMessage(decodeMessage(t, `{
		"type": "message", "channel": "C123", "subtype": "bot_message",
		"bot_id": "B1", "text": "New ticket", "ts": "1.1", "thread_ts": "1.0"
	}`))
	assert.True(t, msg.IsFromBot())
}

func TestListener_DispatchesSupportChannelMessages(t *testing.T) {
	ingest := mocks.NewMockChatIngestService()
	handled := make(chan domain.InboundChatMessage, 1)
	ingest.On("HandleMessage", mock.Anything, mock.AnythingOfType("domain.InboundChatMessage")).
		Run(func(args mock.Arguments) { handled <- args.Get(1).(domain.InboundChatMessage) }).
		Return(nil)

	tl := newTestListener(ingest)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	other := decodeMessage(t, `{"type":"message","channel":"C999","user":"U1","text":"hi","ts":"2.0","thread_ts":"1.0"}`)
	tl.events <- eventsAPI("env-1", other)
	tl.events <- eventsAPI("env-2", decodeMessage(t, threadReplyJSON))

	select {
	case msg := <-handled:
		assert.Equal(t, "1700000100.000200", msg.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dispatched")
	}

	cancel()
	require.NoError(t, <-done)

	tl.mu.Lock()
	defer tl.mu.Unlock()
	assert.Equal(t, []string{"env-1", "env-2"}, tl.acked)
	ingest.AssertNumberOfCalls(t, "HandleMessage", 1)
}

func TestListener_IngestErrorDoesNotStopLoop(t *testing.T) {
	ingest := mocks.NewMockChatIngestService()
	calls := make(chan struct{}, 2)
	ingest.On("HandleMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls <- struct{}{} }).
		Return(errors.New("database unavailable"))

	tl := newTestListener(ingest)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tl.Run(ctx) }()

	tl.events <- eventsAPI("a", decodeMessage(t, threadReplyJSON))
	tl.events <- eventsAPI("b", decodeMessage(t, threadReplyJSON))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected call %d", i+1)
		}
	}
}

func TestListener_RunReturnsConnectionError(t *testing.T) {
	tl := newTestListener(mocks.NewMockChatIngestService())
	tl.run = func(context.Context) error { return errors.New("invalid_auth") }

	err := tl.Run(context.Background())
	assert.EqualError(t, err, "invalid_auth")
}

func TestListener_SkipsOwnUploads(t *testing.T) {
	ingest := mocks.NewMockChatIngestService()
	handled := make(chan domain.InboundChatMessage, 2)
	ingest.On("HandleMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { handled <- args.Get(1).(domain.InboundChatMessage) }).
		Return(nil)

	tl := newTestListener(ingest)
	tl.whoami = func(context.Context) (string, error) { return "UBOT", nil }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	own := decodeMessage(t, `{
		"type": "message", "channel": "C123", "subtype": "file_share", "user": "UBOT",
		"text": "Screenshot from the web form", "ts": "3.0", "thread_ts": "1.0"
	}`)
	tl.events <- eventsAPI("env-1", own)
	tl.events <- eventsAPI("env-2", decodeMessage(t, threadReplyJSON))

	select {
	case msg := <-handled:
		assert.Equal(t, "U42", msg.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dispatched")
	}

	cancel()
	require.NoError(t, <-done)
	ingest.AssertNumberOfCalls(t, "HandleMessage", 1)
}

func TestListener_UnknownBotUserStillRuns(t *testing.T) {
	ingest := mocks.NewMockChatIngestService()
	handled := make(chan struct{}, 1)
	ingest.On("HandleMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { handled <- struct{}{} }).
		Return(nil)

	tl := newTestListener(ingest)
	tl.whoami = func(context.Context) (string, error) { return "", errors.New("not_authed") }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tl.Run(ctx) }()

	tl.events <- eventsAPI("env-1", decodeMessage(t, threadReplyJSON))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dispatched")
	}
}
