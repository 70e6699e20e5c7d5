package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// ProcessedEventStore remembers applied inbound events in the processed_events
// table. It backs deduplication when no Redis is configured.
type ProcessedEventStore struct {
	pool *pgxpool.Pool
}

var _ ports.ProcessedEventStore = (*ProcessedEventStore)(nil)

func NewProcessedEventStore(pool *pgxpool.Pool) ports.ProcessedEventStore {
	return &ProcessedEventStore{pool: pool}
}

func (s *ProcessedEventStore) Seen(ctx context.Context, channel domain.Channel, eventID string) (bool, error) {
	var seen bool
	err := GetDBTX(ctx, s.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE channel = $1 AND event_id = $2)`,
		string(channel), eventID).Scan(&seen)
	return seen, err
}

// Record inserts the event id; an id that is already present is left alone.
func (s *ProcessedEventStore) Record(ctx context.Context, channel domain.Channel, eventID string) error {
	_, err := GetDBTX(ctx, s.pool).Exec(ctx, `
INSERT INTO processed_events (channel, event_id)
VALUES ($1, $2)
ON CONFLICT (channel, event_id) DO NOTHING`, string(channel), eventID)
	return err
}
