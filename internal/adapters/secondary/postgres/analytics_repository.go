package postgres

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
)

// CountActiveByAssignee returns live OPEN and IN_PROGRESS counts per assignee.
// Agents without active tickets are absent from the map.
func (r *TicketRepository) CountActiveByAssignee(ctx context.Context) (map[uuid.UUID]domain.WorkloadCounts, error) {
	const query = `
SELECT t.assignee_id,
       COUNT(*) FILTER (WHERE t.status = 'OPEN'),
       COUNT(*) FILTER (WHERE t.status = 'IN_PROGRESS')
FROM tickets t
WHERE t.assignee_id IS NOT NULL
  AND t.status IN ('OPEN', 'IN_PROGRESS')
GROUP BY t.assignee_id
`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]domain.WorkloadCounts)
	for rows.Next() {
		var (
			assigneeID pgtype.UUID
			open       int64
			inProgress int64
		)
		if err := rows.Scan(&assigneeID, &open, &inProgress); err != nil {
			return nil, err
		}
		counts[uuid.UUID(assigneeID.Bytes)] = domain.WorkloadCounts{
			Open:       int(open),
			InProgress: int(inProgress),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// GetSLAStats summarises SLA outcomes over tickets that carry a policy.
func (r *TicketRepository) GetSLAStats(ctx context.Context) (*domain.SLAStats, error) {
	const query = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE t.breached),
       COUNT(*) FILTER (WHERE t.escalated_at IS NOT NULL),
       AVG(EXTRACT(EPOCH FROM (t.resolved_at - t.created_at))) FILTER (WHERE t.resolved_at IS NOT NULL)
FROM tickets t
WHERE t.sla_policy_id IS NOT NULL
`

	var (
		stats      domain.SLAStats
		avgSeconds pgtype.Float8
	)
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query)
	if err := row.Scan(&stats.TotalTickets, &stats.BreachedTickets, &stats.EscalatedTickets, &avgSeconds); err != nil {
		return nil, err
	}
	if avgSeconds.Valid {
		stats.AverageResolutionMinutes = int64(math.Round(avgSeconds.Float64 / 60))
	}
	return &stats, nil
}
