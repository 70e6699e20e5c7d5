package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/service-desk-engine/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// AdminHandler serves the administrative operations of the engine: workload
// balancing, SLA policies and on-demand sweeps.
type AdminHandler struct {
	assignment    ports.AssignmentService
	sla           ports.SLAService
	tickets       ports.TicketService
	defaultPolicy ports.AssignmentPolicy
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

type AdminDeps struct {
	Assignment    ports.AssignmentService
	SLA           ports.SLAService
	Tickets       ports.TicketService
	DefaultPolicy ports.AssignmentPolicy
	ErrorHandler  *ErrorHandler
	Logger        *slog.Logger
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := deps.DefaultPolicy
	if !policy.IsValid() {
		policy = ports.PolicyLeastBusy
	}
	return &AdminHandler{
		assignment:    deps.Assignment,
		sla:           deps.SLA,
		tickets:       deps.Tickets,
		defaultPolicy: policy,
		errorHandler:  deps.ErrorHandler,
		logger:        logger.With("handler", "admin"),
	}
}

// --- Request / response DTOs ---

type AutoAssignRequest struct {
	Policy string `json:"policy"`
}

func (r *AutoAssignRequest) Validate() error {
	return validation.NewValidator().
		OneOf("policy", r.Policy, []string{string(ports.PolicyLeastBusy), string(ports.PolicyRoundRobin)}).
		Err()
}

type CreatePolicyRequest struct {
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	Priority               string  `json:"priority"`
	ResponseTimeMinutes    int     `json:"responseTimeMinutes"`
	ResolutionTimeMinutes  int     `json:"resolutionTimeMinutes"`
	EscalationEnabled      bool    `json:"escalationEnabled"`
	EscalationAfterMinutes int     `json:"escalationAfterMinutes"`
	EscalationToUserID     *string `json:"escalationToUserId"`
}

func (r *CreatePolicyRequest) Validate() error {
	v := validation.NewValidator()
	v.Required("name", r.Name).
		Required("priority", r.Priority).
		OneOf("priority", r.Priority, []string{
			string(domain.PriorityLow), string(domain.PriorityMedium),
			string(domain.PriorityHigh), string(domain.PriorityUrgent),
		}).
		Min("responseTimeMinutes", r.ResponseTimeMinutes, 1).
		Min("resolutionTimeMinutes", r.ResolutionTimeMinutes, 1)
	if r.EscalationToUserID != nil {
		_, err := uuid.Parse(*r.EscalationToUserID)
		v.Custom("escalationToUserId", err == nil, "Must be a valid UUID")
	}
	return v.Err()
}

func (r *CreatePolicyRequest) toParams() domain.SLAPolicyParams {
	params := domain.SLAPolicyParams{
		Name:              r.Name,
		Description:       r.Description,
		Priority:          domain.TicketPriority(r.Priority),
		ResponseMinutes:   r.ResponseTimeMinutes,
		ResolutionMinutes: r.ResolutionTimeMinutes,
		EscalationEnabled: r.EscalationEnabled,
		EscalationMinutes: r.EscalationAfterMinutes,
	}
	if r.EscalationToUserID != nil {
		id := uuid.MustParse(*r.EscalationToUserID)
		params.EscalationToUserID = &id
	}
	return params
}

type WorkloadDTO struct {
	AgentID    string `json:"agentId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Open       int    `json:"open"`
	InProgress int    `json:"inProgress"`
	Total      int    `json:"total"`
}

type TicketDTO struct {
	ID              int64      `json:"id"`
	Number          string     `json:"number"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	Source          string     `json:"source"`
	AssigneeID      *string    `json:"assigneeId"`
	ResponseDueAt   *time.Time `json:"responseDueAt,omitempty"`
	ResolutionDueAt *time.Time `json:"resolutionDueAt,omitempty"`
	Breached        bool       `json:"breached"`
	EscalatedAt     *time.Time `json:"escalatedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type PolicyDTO struct {
	ID                     int64   `json:"id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description,omitempty"`
	Priority               string  `json:"priority"`
	ResponseTimeMinutes    int     `json:"responseTimeMinutes"`
	ResolutionTimeMinutes  int     `json:"resolutionTimeMinutes"`
	EscalationEnabled      bool    `json:"escalationEnabled"`
	EscalationAfterMinutes int     `json:"escalationAfterMinutes"`
	EscalationToUserID     *string `json:"escalationToUserId"`
	IsActive               bool    `json:"isActive"`
}

type SLAStatsDTO struct {
	TotalTickets             int64 `json:"totalTickets"`
	BreachedTickets          int64 `json:"breachedTickets"`
	EscalatedTickets         int64 `json:"escalatedTickets"`
	AverageResolutionMinutes int64 `json:"averageResolutionMinutes"`
}

type RebalanceResponse struct {
	Moved int `json:"moved"`
}

type ScanResponse struct {
	Breached  int `json:"breached"`
	Escalated int `json:"escalated"`
}

type ArchiveResponse struct {
	Archived int `json:"archived"`
}

// --- Handlers ---

// HandleRebalance handles POST /admin/assignments/rebalance
func (h *AdminHandler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	moved, err := h.assignment.Rebalance(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "rebalance requested", "moved", moved)
	WriteJSON(w, http.StatusOK, RebalanceResponse{Moved: moved})
}

// HandleWorkload handles GET /admin/assignments/workload
func (h *AdminHandler) HandleWorkload(w http.ResponseWriter, r *http.Request) {
	workloads, err := h.assignment.AvailableAgents(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]WorkloadDTO, 0, len(workloads))
	for _, wl := range workloads {
		response = append(response, toWorkloadDTO(wl))
	}
	WriteList(w, response)
}

// HandleAutoAssign handles POST /admin/tickets/{ticketID}/auto-assign.
// The body is optional; without one the configured policy applies.
func (h *AdminHandler) HandleAutoAssign(w http.ResponseWriter, r *http.Request) {
	ticketID, err := validation.ParseID("ticketID", chi.URLParam(r, "ticketID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	policy := h.defaultPolicy
	req, err := validation.DecodeJSON[AutoAssignRequest](r)
	switch {
	case err == nil:
		if err := req.Validate(); err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		if req.Policy != "" {
			policy = ports.AssignmentPolicy(req.Policy)
		}
	case !errors.Is(err, io.EOF):
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.assignment.Assign(r.Context(), ticketID, policy)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleArchive handles POST /admin/tickets/archive
func (h *AdminHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	archived, err := h.tickets.ArchiveClosed(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ArchiveResponse{Archived: archived})
}

// HandleListPolicies handles GET /admin/sla/policies
func (h *AdminHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.sla.ListPolicies(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		response = append(response, toPolicyDTO(p))
	}
	WriteList(w, response)
}

// HandleCreatePolicy handles POST /admin/sla/policies
func (h *AdminHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeJSON[CreatePolicyRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	policy, err := h.sla.CreatePolicy(r.Context(), req.toParams())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "sla policy created",
		"policy_id", policy.ID,
		"priority", policy.Priority,
	)
	WriteCreated(w, toPolicyDTO(policy))
}

// HandleSLAStats handles GET /admin/sla/stats
func (h *AdminHandler) HandleSLAStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sla.GetStats(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, SLAStatsDTO{
		TotalTickets:             stats.TotalTickets,
		BreachedTickets:          stats.BreachedTickets,
		EscalatedTickets:         stats.EscalatedTickets,
		AverageResolutionMinutes: stats.AverageResolutionMinutes,
	})
}

// HandleSLAScan handles POST /admin/sla/scan. It runs the breach scan, then
// the escalation scan.
func (h *AdminHandler) HandleSLAScan(w http.ResponseWriter, r *http.Request) {
	breached, err := h.sla.ScanBreaches(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	escalated, err := h.sla.ScanEscalations(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ScanResponse{Breached: breached, Escalated: escalated})
}

// --- Mappers ---

func toWorkloadDTO(wl domain.AgentWorkload) WorkloadDTO {
	return WorkloadDTO{
		AgentID:    wl.Agent.ID.String(),
		Name:       wl.Agent.DisplayName(),
		Email:      wl.Agent.Email,
		Open:       wl.Open,
		InProgress: wl.InProgress,
		Total:      wl.Total(),
	}
}

func toTicketDTO(t *domain.Ticket) TicketDTO {
	var assignee *string
	if t.AssigneeID != nil {
		value := t.AssigneeID.String()
		assignee = &value
	}
	return TicketDTO{
		ID:              t.ID,
		Number:          t.Number,
		Title:           t.Title,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		Source:          string(t.Source),
		AssigneeID:      assignee,
		ResponseDueAt:   t.ResponseDueAt,
		ResolutionDueAt: t.ResolutionDueAt,
		Breached:        t.Breached,
		EscalatedAt:     t.EscalatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toPolicyDTO(p *domain.SLAPolicy) PolicyDTO {
	var target *string
	if p.EscalationToUserID != nil {
		value := p.EscalationToUserID.String()
		target = &value
	}
	return PolicyDTO{
		ID:                     p.ID,
		Name:                   p.Name,
		Description:            p.Description,
		Priority:               string(p.Priority),
		ResponseTimeMinutes:    int(p.ResponseTime / time.Minute),
		ResolutionTimeMinutes:  int(p.ResolutionTime / time.Minute),
		EscalationEnabled:      p.EscalationEnabled,
		EscalationAfterMinutes: int(p.EscalationAfter / time.Minute),
		EscalationToUserID:     target,
		IsActive:               p.IsActive,
	}
}
