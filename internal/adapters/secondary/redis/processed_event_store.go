package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lorrc/service-desk-engine/internal/config"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

const defaultDedupeTTL = 7 * 24 * time.Hour

// NewClient connects to Redis. An unreachable server is logged, not fatal:
// go-redis reconnects on the next command.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", "addr", cfg.Addr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", cfg.Addr)
	}
	return client
}

// ProcessedEventStore records applied inbound event ids as expiring keys. The
// TTL bounds the window in which re-delivery is suppressed.
type ProcessedEventStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

var _ ports.ProcessedEventStore = (*ProcessedEventStore)(nil)

func NewProcessedEventStore(client goredis.Cmdable, ttl time.Duration) ports.ProcessedEventStore {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &ProcessedEventStore{client: client, ttl: ttl}
}

func (s *ProcessedEventStore) Seen(ctx context.Context, channel domain.Channel, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("empty event id")
	}
	n, err := s.client.Exists(ctx, dedupeKey(channel, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ProcessedEventStore) Record(ctx context.Context, channel domain.Channel, eventID string) error {
	if eventID == "" {
		return errors.New("empty event id")
	}
	return s.client.Set(ctx, dedupeKey(channel, eventID), 1, s.ttl).Err()
}

func dedupeKey(channel domain.Channel, eventID string) string {
	return "dedupe:" + string(channel) + ":" + eventID
}
