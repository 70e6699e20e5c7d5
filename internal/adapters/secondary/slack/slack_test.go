package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// fakeSlack records Web API calls and answers with canned JSON.
type fakeSlack struct {
	mu    sync.Mutex
	posts []map[string]string
	srv   *httptest.Server
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()
	f := &fakeSlack{}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		post := map[string]string{}
		for k := range r.PostForm {
			post[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.posts = append(f.posts, post)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.000100"})
	})
	mux.HandleFunc("/users.info", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("user") != "U42" {
			writeJSON(w, map[string]any{"ok": false, "error": "user_not_found"})
			return
		}
		writeJSON(w, map[string]any{
			"ok": true,
			"user": map[string]any{
				"id":        "U42",
				"name":      "jdoe",
				"real_name": "John Doe",
				"profile": map[string]any{
					"real_name":    "John Doe",
					"display_name": "johnny",
					"email":        "john@example.com",
				},
			},
		})
	})
	mux.HandleFunc("/files/screen.png", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("0123456789"))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlack) client() *slack.Client {
	return NewClient(config.SlackConfig{BotToken: "xoxb-test", AppToken: "xapp-test"},
		slack.OptionAPIURL(f.srv.URL+"/"))
}

func (f *fakeSlack) lastPost(t *testing.T) map[string]string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts)
	return f.posts[len(f.posts)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testTicket() *domain.Ticket {
	thread := "1699999999.000001"
	return &domain.Ticket{
		ID:            7,
		Number:        "TKT-000007",
		Title:         "Printer on fire",
		Description:   "Smoke everywhere",
		Status:        domain.StatusOpen,
		Priority:      domain.PriorityUrgent,
		Category:      domain.CategoryPrinter,
		Source:        domain.SourcePortal,
		CreatorID:     uuid.New(),
		ChatThreadRef: &thread,
	}
}

func TestNotifier_TicketCreatedReturnsThreadHandle(t *testing.T) {
	fake := newFakeSlack(t)
	notifier := NewNotifier(fake.client(), "C123", nil)

	ts, err := notifier.Send(context.Background(), ports.Notification{
		Kind:   ports.NotifyTicketCreated,
		Ticket: testTicket(),
		Author: &domain.User{FullName: "Ada Lovelace"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", ts)

	post := fake.lastPost(t)
	assert.Equal(t, "C123", post["channel"])
	assert.Equal(t, "Printer on fire (TKT-000007)", post["text"])
	assert.Empty(t, post["thread_ts"])
	assert.Contains(t, post["blocks"], "Ada Lovelace")
	assert.Contains(t, post["blocks"], "URGENT")
}

func TestNotifier_ThreadedKinds(t *testing.T) {
	ticket := testTicket()
	comment := &domain.Comment{Body: "Have you tried water?"}

	tests := []struct {
		name string
		note ports.Notification
		want string
	}{
		{"status", ports.Notification{Kind: ports.NotifyStatusChanged, Ticket: ticket}, "changed to OPEN"},
		{"assigned", ports.Notification{Kind: ports.NotifyTicketAssigned, Ticket: ticket,
			Assignee: &domain.User{FullName: "Grace Hopper"}}, "assigned to Grace Hopper"},
		{"comment", ports.Notification{Kind: ports.NotifyCommentAdded, Ticket: ticket, Comment: comment}, "Have you tried water?"},
		{"breach", ports.Notification{Kind: ports.NotifySLABreached, Ticket: ticket}, "SLA breached on TKT-000007"},
		{"escalated", ports.Notification{Kind: ports.NotifyTicketEscalated, Ticket: ticket}, "escalated to an administrator"},
		{"reply", ports.Notification{Kind: ports.NotifyThreadReply, Text: "Ticket TKT-000007 assigned to Grace"}, "assigned to Grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSlack(t)
			notifier := NewNotifier(fake.client(), "C123", nil)

			tt.note.ThreadRef = *ticket.ChatThreadRef
			_, err := notifier.Send(context.Background(), tt.note)
			require.NoError(t, err)

			post := fake.lastPost(t)
			assert.Equal(t, *ticket.ChatThreadRef, post["thread_ts"])
			assert.Contains(t, post["text"], tt.want)
		})
	}
}

func TestNotifier_RequiresThreadForFollowUps(t *testing.T) {
	fake := newFakeSlack(t)
	notifier := NewNotifier(fake.client(), "C123", nil)

	_, err := notifier.Send(context.Background(), ports.Notification{
		Kind:   ports.NotifyStatusChanged,
		Ticket: testTicket(),
	})
	assert.Error(t, err)
}

func TestDirectory_LookupActor(t *testing.T) {
	fake := newFakeSlack(t)
	dir := NewDirectory(fake.client())

	info, err := dir.LookupActor(context.Background(), "U42")
	require.NoError(t, err)
	assert.Equal(t, domain.ActorInfo{
		ExternalID:  "U42",
		Username:    "jdoe",
		RealName:    "John Doe",
		DisplayName: "johnny",
		Email:       "john@example.com",
	}, *info)

	_, err = dir.LookupActor(context.Background(), "U404")
	assert.Error(t, err)
}

func TestFetcher_Fetch(t *testing.T) {
	fake := newFakeSlack(t)
	fetcher := NewFetcher(fake.client())
	url := fake.srv.URL + "/files/screen.png"

	data, err := fetcher.Fetch(context.Background(), url, 1024)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	_, err = fetcher.Fetch(context.Background(), url, 4)
	assert.ErrorIs(t, err, errTooLarge)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("é", 20)
	got := truncate(long, 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
