package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newOpenTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:     "Printer on fire",
		Priority:  domain.PriorityHigh,
		CreatorID: uuid.New(),
	}, baseTime)
	require.NoError(t, err)
	return ticket
}

func TestTicketPriority_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		priority domain.TicketPriority
		want     bool
	}{
		{"LOW is valid", domain.PriorityLow, true},
		{"MEDIUM is valid", domain.PriorityMedium, true},
		{"HIGH is valid", domain.PriorityHigh, true},
		{"URGENT is valid", domain.PriorityUrgent, true},
		{"empty is invalid", domain.TicketPriority(""), false},
		{"lowercase is invalid", domain.TicketPriority("low"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.priority.IsValid())
		})
	}
}

func TestNewTicket(t *testing.T) {
	creatorID := uuid.New()

	tests := []struct {
		name    string
		params  domain.TicketParams
		wantErr error
	}{
		{
			name:   "valid ticket",
			params: domain.TicketParams{Title: "VPN down", Priority: domain.PriorityMedium, CreatorID: creatorID},
		},
		{
			name:    "missing title",
			params:  domain.TicketParams{Title: "  ", Priority: domain.PriorityMedium, CreatorID: creatorID},
			wantErr: apperrors.ErrTitleRequired,
		},
		{
			name:    "title too long",
			params:  domain.TicketParams{Title: strings.Repeat("a", 256), Priority: domain.PriorityMedium, CreatorID: creatorID},
			wantErr: apperrors.ErrTitleTooLong,
		},
		{
			name:    "invalid priority",
			params:  domain.TicketParams{Title: "VPN down", Priority: "CRITICAL", CreatorID: creatorID},
			wantErr: apperrors.ErrInvalidPriority,
		},
		{
			name:    "missing creator",
			params:  domain.TicketParams{Title: "VPN down", Priority: domain.PriorityLow},
			wantErr: apperrors.ErrCreatorRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := domain.NewTicket(tt.params, baseTime)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ticket)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusOpen, ticket.Status)
			assert.Equal(t, domain.CategoryOther, ticket.Category)
			assert.Equal(t, domain.SourcePortal, ticket.Source)
			assert.Nil(t, ticket.AssigneeID)
			assert.Equal(t, baseTime, ticket.CreatedAt)
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.TicketStatus
		want     bool
	}{
		{domain.StatusOpen, domain.StatusInProgress, true},
		{domain.StatusOpen, domain.StatusClosed, true},
		{domain.StatusPending, domain.StatusResolved, true},
		{domain.StatusReopened, domain.StatusInProgress, true},
		{domain.StatusResolved, domain.StatusClosed, true},
		{domain.StatusResolved, domain.StatusReopened, true},
		{domain.StatusResolved, domain.StatusInProgress, false},
		{domain.StatusClosed, domain.StatusReopened, true},
		{domain.StatusClosed, domain.StatusOpen, false},
		{domain.StatusOpen, domain.StatusReopened, false},
		{domain.StatusClosed, domain.StatusArchived, false},
		{domain.StatusArchived, domain.StatusReopened, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CanTransition(tt.from, tt.to))
		})
	}
}

func TestTicket_UpdateStatus(t *testing.T) {
	t.Run("resolvedAt is set once", func(t *testing.T) {
		ticket := newOpenTicket(t)
		first := baseTime.Add(time.Hour)

		require.NoError(t, ticket.UpdateStatus(domain.StatusResolved, first))
		require.NoError(t, ticket.UpdateStatus(domain.StatusResolved, first.Add(time.Hour)))

		require.NotNil(t, ticket.ResolvedAt)
		assert.Equal(t, first, *ticket.ResolvedAt)
	})

	t.Run("closing records closedAt", func(t *testing.T) {
		ticket := newOpenTicket(t)
		at := baseTime.Add(2 * time.Hour)

		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, at))

		assert.Equal(t, domain.StatusClosed, ticket.Status)
		require.NotNil(t, ticket.ClosedAt)
		assert.Equal(t, at, *ticket.ClosedAt)
	})

	t.Run("reopening clears resolution timestamps", func(t *testing.T) {
		ticket := newOpenTicket(t)
		require.NoError(t, ticket.UpdateStatus(domain.StatusResolved, baseTime.Add(time.Hour)))
		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, baseTime.Add(2*time.Hour)))

		require.NoError(t, ticket.UpdateStatus(domain.StatusReopened, baseTime.Add(3*time.Hour)))

		assert.Equal(t, domain.StatusReopened, ticket.Status)
		assert.Nil(t, ticket.ResolvedAt)
		assert.Nil(t, ticket.ClosedAt)
	})

	t.Run("rejects illegal transition", func(t *testing.T) {
		ticket := newOpenTicket(t)
		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, baseTime))

		err := ticket.UpdateStatus(domain.StatusInProgress, baseTime)

		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		assert.Equal(t, domain.StatusClosed, ticket.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		ticket := newOpenTicket(t)
		assert.ErrorIs(t, ticket.UpdateStatus("DONE", baseTime), apperrors.ErrInvalidStatus)
	})
}

func TestTicket_Archive(t *testing.T) {
	t.Run("only closed tickets archive", func(t *testing.T) {
		ticket := newOpenTicket(t)
		assert.ErrorIs(t, ticket.Archive(baseTime), apperrors.ErrInvalidStatusTransition)
	})

	t.Run("archived ticket accepts no further status", func(t *testing.T) {
		ticket := newOpenTicket(t)
		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, baseTime))
		require.NoError(t, ticket.Archive(baseTime.Add(11*time.Hour)))

		assert.Equal(t, domain.StatusArchived, ticket.Status)
		assert.NotNil(t, ticket.ArchivedAt)
		assert.Error(t, ticket.UpdateStatus(domain.StatusReopened, baseTime))
	})
}

func TestTicket_Assign(t *testing.T) {
	t.Run("sets assignee", func(t *testing.T) {
		ticket := newOpenTicket(t)
		agentID := uuid.New()

		require.NoError(t, ticket.Assign(agentID, baseTime))

		assert.True(t, ticket.IsAssignedTo(agentID))
	})

	t.Run("closed ticket cannot be assigned", func(t *testing.T) {
		ticket := newOpenTicket(t)
		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, baseTime))

		assert.ErrorIs(t, ticket.Assign(uuid.New(), baseTime), apperrors.ErrCannotAssignClosed)
	})
}

func TestTicket_SLA(t *testing.T) {
	policy := &domain.SLAPolicy{ID: 7, ResponseTime: time.Hour, ResolutionTime: 8 * time.Hour}

	t.Run("deadlines are measured from apply time", func(t *testing.T) {
		ticket := newOpenTicket(t)
		ticket.ApplySLA(policy, baseTime)

		assert.Equal(t, baseTime.Add(time.Hour), *ticket.ResponseDueAt)
		assert.Equal(t, baseTime.Add(8*time.Hour), *ticket.ResolutionDueAt)
		assert.Equal(t, int64(7), *ticket.SLAPolicyID)
	})

	t.Run("breach is detected after the resolution deadline and sticks", func(t *testing.T) {
		ticket := newOpenTicket(t)
		ticket.ApplySLA(policy, baseTime)

		assert.False(t, ticket.IsBreachable(baseTime.Add(7*time.Hour)))
		require.True(t, ticket.IsBreachable(baseTime.Add(8*time.Hour+time.Minute)))
		assert.True(t, ticket.MarkBreached(baseTime.Add(8*time.Hour+time.Minute)))

		assert.False(t, ticket.IsBreachable(baseTime.Add(9*time.Hour)))
		assert.False(t, ticket.MarkBreached(baseTime.Add(9*time.Hour)))

		require.NoError(t, ticket.UpdateStatus(domain.StatusResolved, baseTime.Add(10*time.Hour)))
		assert.True(t, ticket.Breached)
	})

	t.Run("closed tickets never breach", func(t *testing.T) {
		ticket := newOpenTicket(t)
		ticket.ApplySLA(policy, baseTime)
		require.NoError(t, ticket.UpdateStatus(domain.StatusClosed, baseTime))

		assert.False(t, ticket.IsBreachable(baseTime.Add(24*time.Hour)))
	})

	t.Run("response met is recorded once", func(t *testing.T) {
		ticket := newOpenTicket(t)
		ticket.ApplySLA(policy, baseTime)

		assert.True(t, ticket.MarkResponseMet(baseTime.Add(10*time.Minute)))
		assert.False(t, ticket.MarkResponseMet(baseTime.Add(20*time.Minute)))
		assert.Equal(t, baseTime.Add(10*time.Minute), *ticket.ResponseMetAt)
	})

	t.Run("response met needs a deadline", func(t *testing.T) {
		ticket := newOpenTicket(t)
		assert.False(t, ticket.MarkResponseMet(baseTime))
	})
}

func TestTicket_Escalate(t *testing.T) {
	ticket := newOpenTicket(t)
	target := uuid.New()

	require.True(t, ticket.IsEscalatable())
	assert.True(t, ticket.Escalate(target, baseTime))
	assert.False(t, ticket.IsEscalatable())
	assert.False(t, ticket.Escalate(uuid.New(), baseTime.Add(time.Hour)))
	assert.Equal(t, target, *ticket.EscalatedToID)
}

func TestTicket_Clone(t *testing.T) {
	ticket := newOpenTicket(t)
	agentID := uuid.New()
	require.NoError(t, ticket.Assign(agentID, baseTime))

	clone := ticket.Clone()
	*clone.AssigneeID = uuid.New()
	clone.Title = "changed"

	assert.Equal(t, agentID, *ticket.AssigneeID)
	assert.Equal(t, "Printer on fire", ticket.Title)
}

func TestReferenceTags(t *testing.T) {
	assert.Equal(t, "TKT-000123", domain.FormatTicketNumber(123))
	assert.Equal(t, "[Ticket #000123]", domain.ReferenceTag("TKT-000123"))

	tests := []struct {
		subject string
		want    string
		ok      bool
	}{
		{"Re: [Ticket #000123] Printer on fire", "TKT-000123", true},
		{"RE: [ticket #45] follow up", "TKT-000045", true},
		{"Fwd: Re: Re: [Ticket #000007]", "TKT-000007", true},
		{"Printer on fire", "", false},
		{"[Ticket #0]", "", false},
		{"[Ticket #abc]", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got, ok := domain.ParseReferenceTag(tt.subject)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
