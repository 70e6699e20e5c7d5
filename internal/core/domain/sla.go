package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
)

// SLAPolicy defines the response and resolution budgets for one priority.
type SLAPolicy struct {
	ID                 int64
	Name               string
	Description        string
	Priority           TicketPriority
	ResponseTime       time.Duration
	ResolutionTime     time.Duration
	EscalationEnabled  bool
	EscalationAfter    time.Duration
	EscalationToUserID *uuid.UUID
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SLAPolicyParams holds the inputs for creating a policy.
type SLAPolicyParams struct {
	Name               string
	Description        string
	Priority           TicketPriority
	ResponseMinutes    int
	ResolutionMinutes  int
	EscalationEnabled  bool
	EscalationMinutes  int
	EscalationToUserID *uuid.UUID
}

// NewSLAPolicy validates params and builds an active policy.
func NewSLAPolicy(params SLAPolicyParams, now time.Time) (*SLAPolicy, error) {
	errs := apperrors.NewValidationErrors()

	if strings.TrimSpace(params.Name) == "" {
		errs.Add("name", "Name is required")
	}
	if !params.Priority.IsValid() {
		errs.Add("priority", "Priority must be one of LOW, MEDIUM, HIGH, URGENT")
	}
	if params.ResponseMinutes <= 0 {
		errs.Add("responseTimeMinutes", "Response time must be positive")
	}
	if params.ResolutionMinutes <= 0 {
		errs.Add("resolutionTimeMinutes", "Resolution time must be positive")
	}
	if params.ResolutionMinutes > 0 && params.ResolutionMinutes < params.ResponseMinutes {
		errs.Add("resolutionTimeMinutes", "Resolution time cannot be shorter than response time")
	}
	if params.EscalationEnabled && params.EscalationMinutes <= 0 {
		errs.Add("escalationAfterMinutes", "Escalation delay is required when escalation is enabled")
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return &SLAPolicy{
		Name:               strings.TrimSpace(params.Name),
		Description:        params.Description,
		Priority:           params.Priority,
		ResponseTime:       time.Duration(params.ResponseMinutes) * time.Minute,
		ResolutionTime:     time.Duration(params.ResolutionMinutes) * time.Minute,
		EscalationEnabled:  params.EscalationEnabled,
		EscalationAfter:    time.Duration(params.EscalationMinutes) * time.Minute,
		EscalationToUserID: params.EscalationToUserID,
		IsActive:           true,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

// EscalationDue returns when a ticket created at createdAt becomes escalatable.
// The second result is false when the policy does not escalate.
func (p *SLAPolicy) EscalationDue(createdAt time.Time) (time.Time, bool) {
	if !p.EscalationEnabled || p.EscalationAfter <= 0 {
		return time.Time{}, false
	}
	return createdAt.Add(p.EscalationAfter), true
}

// EscalationCandidate pairs a ticket with the policy that governs its escalation.
type EscalationCandidate struct {
	Ticket *Ticket
	Policy *SLAPolicy
}
