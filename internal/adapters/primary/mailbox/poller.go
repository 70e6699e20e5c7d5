package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/infrastructure/logging"
)

// mailClient is the part of the IMAP client a poll cycle uses.
type mailClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// CycleResult summarises one poll cycle.
type CycleResult struct {
	Skipped   bool
	Fetched   int
	Processed int
	Failed    int
}

// Poller reads unseen messages from one mailbox and feeds them to ingest.
// At most one cycle runs at a time.
type Poller struct {
	cfg     config.IMAPConfig
	ingest  ports.EmailIngestService
	dial    func() (mailClient, error)
	logger  *slog.Logger
	running atomic.Bool
}

func NewPoller(cfg config.IMAPConfig, ingest ports.EmailIngestService, logger *slog.Logger) *Poller {
	p := &Poller{
		cfg:    cfg,
		ingest: ingest,
		logger: logger.With("component", "mailbox_poller"),
	}
	p.dial = p.dialIMAP
	return p
}

func (p *Poller) dialIMAP() (mailClient, error) {
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	dialer := &net.Dialer{Timeout: p.cfg.Timeout}

	var (
		c   *client.Client
		err error
	)
	if p.cfg.TLS {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.Timeout = p.cfg.Timeout
	return c, nil
}

// Poll runs one cycle. A call made while another cycle is in flight returns
// immediately with Skipped set.
func (p *Poller) Poll(ctx context.Context) (CycleResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.DebugContext(ctx, "poll already in progress, skipping tick")
		return CycleResult{Skipped: true}, nil
	}
	defer p.running.Store(false)

	return p.cycle(ctx)
}

func (p *Poller) cycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	// 1. Connect and open the mailbox.
	c, err := p.dial()
	if err != nil {
		return res, err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			p.logger.DebugContext(ctx, "imap logout failed", "error", err)
		}
	}()

	if err := c.Login(p.cfg.User, p.cfg.Password); err != nil {
		return res, fmt.Errorf("imap login: %w", err)
	}
	status, err := c.Select(p.cfg.Mailbox, false)
	if err != nil {
		return res, fmt.Errorf("select %s: %w", p.cfg.Mailbox, err)
	}

	// 2. Find unseen messages.
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return res, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return res, nil
	}

	// 3. Fetch everything first; the connection cannot store flags mid-fetch.
	raw, err := p.fetch(c, uids)
	if err != nil {
		return res, err
	}
	res.Fetched = len(raw)

	// 4. Handle in UID order, marking each message seen only after success.
	for _, m := range raw {
		if ctx.Err() != nil {
			break
		}
		key := fmt.Sprintf("%d:%d", status.UidValidity, m.uid)
		if p.handle(ctx, c, m, key) {
			res.Processed++
		} else {
			res.Failed++
		}
	}

	if res.Fetched > 0 {
		p.logger.InfoContext(ctx, "mailbox poll finished",
			"fetched", res.Fetched, "processed", res.Processed, "failed", res.Failed)
	}
	return res, nil
}

type rawMessage struct {
	uid  uint32
	body []byte
}

func (p *Poller) fetch(c mailClient, uids []uint32) ([]rawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, items, messages) }()

	var out []rawMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			p.logger.Warn("server returned no body", "uid", msg.Uid)
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			p.logger.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		out = append(out, rawMessage{uid: msg.Uid, body: data})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].uid < out[j].uid })
	return out, nil
}

// handle parses and ingests one message and reports whether it was marked seen.
func (p *Poller) handle(ctx context.Context, c mailClient, m rawMessage, key string) bool {
	ctx = logging.WithInboundEvent(ctx, string(domain.ChannelEmail), key)

	email, err := ParseMessage(bytes.NewReader(m.body), m.uid, key)
	if err != nil {
		// An unparseable message would fail every cycle; it is flagged seen and left for a human.
		p.logger.WarnContext(ctx, "skipping unparseable message", "uid", m.uid, "error", err)
		return p.markSeen(ctx, c, m.uid)
	}

	if len(email.SkippedAttachments) > 0 {
		p.logger.WarnContext(ctx, "dropped oversized attachments",
			"uid", m.uid, "files", email.SkippedAttachments, "limit_bytes", maxPartSize)
	}

	if err := p.ingest.HandleEmail(ctx, email); err != nil {
		p.logger.ErrorContext(ctx, "failed to apply email, leaving unseen for retry",
			"uid", m.uid, "from", email.From, "error", err)
		return false
	}
	return p.markSeen(ctx, c, m.uid)
}

func (p *Poller) markSeen(ctx context.Context, c mailClient, uid uint32) bool {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		p.logger.ErrorContext(ctx, "failed to mark message seen", "uid", uid, "error", err)
		return false
	}
	return true
}

// Interval is how often the scheduler should call Poll.
func (p *Poller) Interval() time.Duration {
	return p.cfg.PollInterval
}
