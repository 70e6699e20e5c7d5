package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusOnHold     TicketStatus = "ON_HOLD"
	StatusPending    TicketStatus = "PENDING"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
	StatusReopened   TicketStatus = "REOPENED"
	StatusArchived   TicketStatus = "ARCHIVED"
)

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusOnHold, StatusPending,
		StatusResolved, StatusClosed, StatusReopened, StatusArchived:
		return true
	}
	return false
}

// workingStates are the states a ticket may move between freely while work is ongoing.
var workingStates = []TicketStatus{
	StatusOpen, StatusInProgress, StatusOnHold, StatusPending, StatusResolved, StatusClosed,
}

// validTransitions defines which direct status changes are allowed.
// ARCHIVED is absent on purpose: only Archive can reach it.
var validTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:       workingStates,
	StatusInProgress: workingStates,
	StatusOnHold:     workingStates,
	StatusPending:    workingStates,
	StatusReopened:   workingStates,
	StatusResolved:   {StatusResolved, StatusClosed, StatusReopened},
	StatusClosed:     {StatusClosed, StatusReopened},
	StatusArchived:   {},
}

// CanTransition reports whether a ticket in from may move to to.
func CanTransition(from, to TicketStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TicketCategory classifies what a ticket is about.
type TicketCategory string

const (
	CategoryHardware TicketCategory = "HARDWARE"
	CategorySoftware TicketCategory = "SOFTWARE"
	CategoryNetwork  TicketCategory = "NETWORK"
	CategoryAccess   TicketCategory = "ACCESS"
	CategoryEmail    TicketCategory = "EMAIL"
	CategoryPrinter  TicketCategory = "PRINTER"
	CategoryPhone    TicketCategory = "PHONE"
	CategoryOther    TicketCategory = "OTHER"
)

// TicketSource records the channel a ticket was raised through.
type TicketSource string

const (
	SourcePortal TicketSource = "PORTAL"
	SourceEmail  TicketSource = "EMAIL"
	SourceChat   TicketSource = "CHAT"
)

// Ticket is the aggregate root every writer path mutates.
type Ticket struct {
	ID           int64
	Number       string
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	Category     TicketCategory
	Source       TicketSource
	CreatorID    uuid.UUID
	AssigneeID   *uuid.UUID
	ContactEmail *string

	// ChatThreadRef is the chat thread handle; set once by the correlator.
	ChatThreadRef *string
	// ExternalRef is the channel-scoped id of the inbound item that created the ticket.
	ExternalRef *string

	SLAPolicyID     *int64
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	ResponseMetAt   *time.Time
	Breached        bool
	EscalatedAt     *time.Time
	EscalatedToID   *uuid.UUID

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
	ArchivedAt *time.Time

	// Version increments on every persisted update.
	Version int64
}

// TicketParams holds the inputs for a new ticket.
type TicketParams struct {
	Title        string
	Description  string
	Priority     TicketPriority
	Category     TicketCategory
	Source       TicketSource
	CreatorID    uuid.UUID
	ContactEmail *string
	ExternalRef  *string
}

// Validate checks the parameters for a new ticket.
func (p TicketParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return apperrors.ErrTitleRequired
	}
	if len(p.Title) > MaxTitleLength {
		return apperrors.ErrTitleTooLong
	}
	if len(p.Description) > MaxDescriptionLength {
		return apperrors.ErrDescriptionTooLong
	}
	if !p.Priority.IsValid() {
		return apperrors.ErrInvalidPriority
	}
	if p.CreatorID == uuid.Nil {
		return apperrors.ErrCreatorRequired
	}
	return nil
}

// NewTicket is a factory function to create a valid new ticket.
func NewTicket(params TicketParams, now time.Time) (*Ticket, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	category := params.Category
	if category == "" {
		category = CategoryOther
	}
	source := params.Source
	if source == "" {
		source = SourcePortal
	}

	return &Ticket{
		Title:        params.Title,
		Description:  params.Description,
		Status:       StatusOpen,
		Priority:     params.Priority,
		Category:     category,
		Source:       source,
		CreatorID:    params.CreatorID,
		ContactEmail: params.ContactEmail,
		ExternalRef:  params.ExternalRef,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// UpdateStatus changes the ticket's status, enforcing the state machine and
// its timestamp side effects.
func (t *Ticket) UpdateStatus(newStatus TicketStatus, now time.Time) error {
	if !newStatus.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	if !CanTransition(t.Status, newStatus) {
		return apperrors.ErrInvalidStatusTransition
	}

	now = now.UTC()
	switch newStatus {
	case StatusResolved:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case StatusClosed:
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
	case StatusReopened:
		t.ResolvedAt = nil
		t.ClosedAt = nil
	}

	t.Status = newStatus
	t.UpdatedAt = now
	return nil
}

// Archive moves a closed ticket to ARCHIVED. It is the only way into that state.
func (t *Ticket) Archive(now time.Time) error {
	if t.Status != StatusClosed {
		return apperrors.ErrInvalidStatusTransition
	}
	now = now.UTC()
	t.Status = StatusArchived
	t.ArchivedAt = &now
	t.UpdatedAt = now
	return nil
}

// Assign sets or changes the assignee of the ticket.
func (t *Ticket) Assign(assigneeID uuid.UUID, now time.Time) error {
	if t.Status == StatusClosed || t.Status == StatusArchived {
		return apperrors.ErrCannotAssignClosed
	}
	t.AssigneeID = &assigneeID
	t.UpdatedAt = now.UTC()
	return nil
}

// ApplySLA stamps the deadlines of policy onto the ticket, measured from now.
func (t *Ticket) ApplySLA(policy *SLAPolicy, now time.Time) {
	now = now.UTC()
	responseDue := now.Add(policy.ResponseTime)
	resolutionDue := now.Add(policy.ResolutionTime)
	policyID := policy.ID

	t.SLAPolicyID = &policyID
	t.ResponseDueAt = &responseDue
	t.ResolutionDueAt = &resolutionDue
}

// MarkResponseMet records the first response. It reports whether anything changed.
func (t *Ticket) MarkResponseMet(now time.Time) bool {
	if t.ResponseMetAt != nil || t.ResponseDueAt == nil {
		return false
	}
	now = now.UTC()
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.ResponseMetAt = &now
	t.UpdatedAt = now
	return true
}

// IsBreachable reports whether a breach scan at now should flag the ticket.
func (t *Ticket) IsBreachable(now time.Time) bool {
	if t.Breached || t.ResolutionDueAt == nil {
		return false
	}
	if t.Status == StatusClosed || t.Status == StatusArchived {
		return false
	}
	return t.ResolutionDueAt.Before(now)
}

// MarkBreached flips the breached flag. The flag never resets.
func (t *Ticket) MarkBreached(now time.Time) bool {
	if t.Breached {
		return false
	}
	t.Breached = true
	t.UpdatedAt = now.UTC()
	return true
}

// IsEscalatable reports whether the ticket is still waiting on its first escalation.
func (t *Ticket) IsEscalatable() bool {
	if t.EscalatedAt != nil {
		return false
	}
	return t.Status == StatusOpen || t.Status == StatusInProgress
}

// Escalate records the escalation target.
func (t *Ticket) Escalate(targetID uuid.UUID, now time.Time) bool {
	if t.EscalatedAt != nil {
		return false
	}
	now = now.UTC()
	t.EscalatedAt = &now
	t.EscalatedToID = &targetID
	t.UpdatedAt = now
	return true
}

func (t *Ticket) IsAssigned() bool {
	return t.AssigneeID != nil
}

func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

func (t *Ticket) IsOwnedBy(userID uuid.UUID) bool {
	return t.CreatorID == userID
}

// Clone returns a deep copy, so a failed save never leaks partial changes.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.AssigneeID = cloneUUID(t.AssigneeID)
	c.EscalatedToID = cloneUUID(t.EscalatedToID)
	c.ContactEmail = cloneString(t.ContactEmail)
	c.ChatThreadRef = cloneString(t.ChatThreadRef)
	c.ExternalRef = cloneString(t.ExternalRef)
	c.ResponseDueAt = cloneTime(t.ResponseDueAt)
	c.ResolutionDueAt = cloneTime(t.ResolutionDueAt)
	c.ResponseMetAt = cloneTime(t.ResponseMetAt)
	c.EscalatedAt = cloneTime(t.EscalatedAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.ArchivedAt = cloneTime(t.ArchivedAt)
	if t.SLAPolicyID != nil {
		id := *t.SLAPolicyID
		c.SLAPolicyID = &id
	}
	return &c
}

// --- Ticket numbers and email reference tags ---

const ticketNumberPrefix = "TKT-"

var referenceTagPattern = regexp.MustCompile(`(?i)\[Ticket #(\d+)\]`)

// FormatTicketNumber renders a sequence value as a human-readable ticket number.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", ticketNumberPrefix, seq)
}

// ReferenceDigits returns the numeric part of a ticket number, e.g. "000123".
func ReferenceDigits(number string) string {
	return strings.TrimPrefix(number, ticketNumberPrefix)
}

// ReferenceTag is the marker placed in outbound email subjects.
func ReferenceTag(number string) string {
	return fmt.Sprintf("[Ticket #%s]", ReferenceDigits(number))
}

// ParseReferenceTag extracts the ticket number referenced by an email subject.
func ParseReferenceTag(subject string) (string, bool) {
	m := referenceTagPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}
	seq, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || seq <= 0 {
		return "", false
	}
	return FormatTicketNumber(seq), true
}

func cloneUUID(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
