package domain

import (
	"sort"

	"github.com/google/uuid"
)

// WorkloadCounts holds the live ticket counts of one assignee.
type WorkloadCounts struct {
	Open       int
	InProgress int
}

// AgentWorkload is a per-pass snapshot of an agent's active tickets.
// It is derived from live counts and never persisted.
type AgentWorkload struct {
	Agent      *User
	Open       int
	InProgress int
}

func (w AgentWorkload) Total() int {
	return w.Open + w.InProgress
}

// SortWorkloads orders snapshots by ascending total. Ties keep the order of
// the input, which callers build from agent creation time.
func SortWorkloads(workloads []AgentWorkload) {
	sort.SliceStable(workloads, func(i, j int) bool {
		return workloads[i].Total() < workloads[j].Total()
	})
}

// BuildWorkloads joins agents with their counts. Agents without tickets get zero counts.
func BuildWorkloads(agents []*User, counts map[uuid.UUID]WorkloadCounts) []AgentWorkload {
	workloads := make([]AgentWorkload, 0, len(agents))
	for _, agent := range agents {
		c := counts[agent.ID]
		workloads = append(workloads, AgentWorkload{
			Agent:      agent,
			Open:       c.Open,
			InProgress: c.InProgress,
		})
	}
	SortWorkloads(workloads)
	return workloads
}

// SLAStats summarises SLA outcomes across all tickets.
type SLAStats struct {
	TotalTickets             int64
	BreachedTickets          int64
	EscalatedTickets         int64
	AverageResolutionMinutes int64
}
