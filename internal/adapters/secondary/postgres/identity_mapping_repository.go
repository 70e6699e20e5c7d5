package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/utils"
)

const mappingColumns = `m.id, m.channel, m.external_id, m.user_id, m.display_name, m.created_at`

// IdentityMappingRepository stores the link between external actors and users.
type IdentityMappingRepository struct {
	pool *pgxpool.Pool
}

var _ ports.IdentityMappingRepository = (*IdentityMappingRepository)(nil)

func NewIdentityMappingRepository(pool *pgxpool.Pool) ports.IdentityMappingRepository {
	return &IdentityMappingRepository{pool: pool}
}

func scanMapping(row pgx.Row) (*domain.IdentityMapping, error) {
	var (
		m       domain.IdentityMapping
		channel string
		userID  pgtype.UUID
	)
	if err := row.Scan(&m.ID, &channel, &m.ExternalID, &userID, &m.DisplayName, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Channel = domain.Channel(channel)
	m.UserID = userID.Bytes
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (r *IdentityMappingRepository) getOne(ctx context.Context, where string, args ...any) (*domain.IdentityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM identity_mappings m WHERE ` + where
	mapping, err := scanMapping(GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *IdentityMappingRepository) GetByExternalID(ctx context.Context, channel domain.Channel, externalID string) (*domain.IdentityMapping, error) {
	return r.getOne(ctx, `m.channel = $1 AND m.external_id = $2`, string(channel), externalID)
}

func (r *IdentityMappingRepository) GetByUserID(ctx context.Context, channel domain.Channel, userID uuid.UUID) (*domain.IdentityMapping, error) {
	return r.getOne(ctx, `m.channel = $1 AND m.user_id = $2`, string(channel), utils.ToUUID(userID))
}

// Create stores a mapping. Both (channel, external_id) and (channel, user_id)
// are unique, so a race between two resolvers leaves exactly one winner.
func (r *IdentityMappingRepository) Create(ctx context.Context, mapping *domain.IdentityMapping) (*domain.IdentityMapping, error) {
	query := `
INSERT INTO identity_mappings AS m (channel, external_id, user_id, display_name, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + mappingColumns

	created, err := scanMapping(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		string(mapping.Channel),
		mapping.ExternalID,
		utils.ToUUID(mapping.UserID),
		mapping.DisplayName,
		mapping.CreatedAt.UTC(),
	))
	if err != nil {
		if uniqueViolationOn(err, "") {
			return nil, apperrors.ErrMappingConflict
		}
		return nil, err
	}
	return created, nil
}
