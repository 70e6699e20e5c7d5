package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/utils"
)

const policyColumns = `
	p.id, p.name, p.description, p.priority, p.response_minutes, p.resolution_minutes,
	p.escalation_enabled, p.escalation_minutes, p.escalation_to_user_id,
	p.is_active, p.created_at, p.updated_at`

type SLAPolicyRepository struct {
	pool *pgxpool.Pool
}

var _ ports.SLAPolicyRepository = (*SLAPolicyRepository)(nil)

func NewSLAPolicyRepository(pool *pgxpool.Pool) ports.SLAPolicyRepository {
	return &SLAPolicyRepository{pool: pool}
}

// policyRow holds the scan targets for policyColumns.
type policyRow struct {
	id                int64
	name              string
	description       string
	priority          string
	responseMinutes   int32
	resolutionMinutes int32
	escalationEnabled bool
	escalationMinutes int32
	escalationTo      pgtype.UUID
	isActive          bool
	createdAt         time.Time
	updatedAt         time.Time
}

func (r *policyRow) dest() []any {
	return []any{
		&r.id, &r.name, &r.description, &r.priority, &r.responseMinutes, &r.resolutionMinutes,
		&r.escalationEnabled, &r.escalationMinutes, &r.escalationTo,
		&r.isActive, &r.createdAt, &r.updatedAt,
	}
}

func (r *policyRow) toDomain() *domain.SLAPolicy {
	return &domain.SLAPolicy{
		ID:                 r.id,
		Name:               r.name,
		Description:        r.description,
		Priority:           domain.TicketPriority(r.priority),
		ResponseTime:       time.Duration(r.responseMinutes) * time.Minute,
		ResolutionTime:     time.Duration(r.resolutionMinutes) * time.Minute,
		EscalationEnabled:  r.escalationEnabled,
		EscalationAfter:    time.Duration(r.escalationMinutes) * time.Minute,
		EscalationToUserID: utils.FromNullUUID(r.escalationTo),
		IsActive:           r.isActive,
		CreatedAt:          r.createdAt.UTC(),
		UpdatedAt:          r.updatedAt.UTC(),
	}
}

func scanPolicy(row pgx.Row) (*domain.SLAPolicy, error) {
	var pr policyRow
	if err := row.Scan(pr.dest()...); err != nil {
		return nil, err
	}
	return pr.toDomain(), nil
}

func (r *SLAPolicyRepository) list(ctx context.Context, where string, args ...any) ([]*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies p WHERE ` + where
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := make([]*domain.SLAPolicy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policies, nil
}

// ListActiveByPriority puts the most recently updated policy first.
func (r *SLAPolicyRepository) ListActiveByPriority(ctx context.Context, priority domain.TicketPriority) ([]*domain.SLAPolicy, error) {
	return r.list(ctx,
		`p.is_active AND p.priority = $1 ORDER BY p.updated_at DESC, p.id DESC`,
		string(priority))
}

func (r *SLAPolicyRepository) GetByID(ctx context.Context, id int64) (*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies p WHERE p.id = $1`
	policy, err := scanPolicy(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPolicyNotFound
		}
		return nil, err
	}
	return policy, nil
}

func (r *SLAPolicyRepository) ListActive(ctx context.Context) ([]*domain.SLAPolicy, error) {
	return r.list(ctx, `p.is_active ORDER BY p.priority, p.updated_at DESC, p.id DESC`)
}

func (r *SLAPolicyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) (*domain.SLAPolicy, error) {
	query := `
INSERT INTO sla_policies AS p (
	name, description, priority, response_minutes, resolution_minutes,
	escalation_enabled, escalation_minutes, escalation_to_user_id,
	is_active, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + policyColumns

	return scanPolicy(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		policy.Name,
		policy.Description,
		string(policy.Priority),
		int32(policy.ResponseTime/time.Minute),
		int32(policy.ResolutionTime/time.Minute),
		policy.EscalationEnabled,
		int32(policy.EscalationAfter/time.Minute),
		utils.ToNullUUID(policy.EscalationToUserID),
		policy.IsActive,
		policy.CreatedAt.UTC(),
		policy.UpdatedAt.UTC(),
	))
}
