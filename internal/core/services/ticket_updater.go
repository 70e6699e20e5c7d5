package services

import (
	"context"
	"errors"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// DefaultUpdateAttempts bounds the retries of a conflicting ticket update.
const DefaultUpdateAttempts = 3

// ticketMutation changes a freshly loaded ticket. It returns false when there
// is nothing to save.
type ticketMutation func(t *domain.Ticket) (bool, error)

// ticketUpdater is the single per-ticket write path: load, mutate, save.
// When the repository reports a version conflict the whole cycle is repeated
// against the newer row.
type ticketUpdater struct {
	repo     ports.TicketRepository
	attempts int
}

func newTicketUpdater(repo ports.TicketRepository, attempts int) ticketUpdater {
	if attempts <= 0 {
		attempts = DefaultUpdateAttempts
	}
	return ticketUpdater{repo: repo, attempts: attempts}
}

// update returns the saved ticket and whether the mutation changed anything.
func (u ticketUpdater) update(ctx context.Context, ticketID int64, mutate ticketMutation) (*domain.Ticket, bool, error) {
	var lastErr error
	for attempt := 0; attempt < u.attempts; attempt++ {
		current, err := u.repo.GetByID(ctx, ticketID)
		if err != nil {
			return nil, false, err
		}

		working := current.Clone()
		changed, err := mutate(working)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return current, false, nil
		}

		saved, err := u.repo.Update(ctx, working)
		if err == nil {
			return saved, true, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, lastErr
}

// systemClock is used when no clock is injected.
func systemClock() time.Time {
	return time.Now().UTC()
}
