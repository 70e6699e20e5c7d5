package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

var errTooLarge = errors.New("file exceeds size limit")

// Fetcher downloads private files with the bot token.
type Fetcher struct {
	client *slack.Client
}

var _ ports.FileFetcher = (*Fetcher)(nil)

func NewFetcher(client *slack.Client) ports.FileFetcher {
	return &Fetcher{client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	w := &limitedBuffer{max: maxBytes}
	if err := f.client.GetFileContext(ctx, url, w); err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	return w.buf.Bytes(), nil
}

// limitedBuffer fails the copy once more than max bytes were written.
type limitedBuffer struct {
	buf bytes.Buffer
	max int64
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.max > 0 && int64(b.buf.Len()+len(p)) > b.max {
		return 0, errTooLarge
	}
	return b.buf.Write(p)
}
