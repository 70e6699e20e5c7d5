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

const userColumns = `u.id, u.username, u.email, u.full_name, u.hashed_password, u.roles, u.is_disabled, u.created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) ports.UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user  domain.User
		id    pgtype.UUID
		roles []string
	)
	err := row.Scan(&id, &user.Username, &user.Email, &user.FullName,
		&user.HashedPassword, &roles, &user.IsDisabled, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	user.ID = id.Bytes
	user.CreatedAt = user.CreatedAt.UTC()
	user.Roles = make([]domain.Role, 0, len(roles))
	for _, role := range roles {
		user.Roles = append(user.Roles, domain.Role(role))
	}
	return &user, nil
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	if len(out) == 0 {
		out = append(out, string(domain.RoleUser))
	}
	return out
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	id := user.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
INSERT INTO users AS u (id, username, email, full_name, hashed_password, roles, is_disabled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

	created, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		utils.ToUUID(id),
		user.Username,
		user.Email,
		user.FullName,
		user.HashedPassword,
		roleStrings(user.Roles),
		user.IsDisabled,
		user.CreatedAt.UTC(),
	))
	if err != nil {
		if uniqueViolationOn(err, "") {
			return nil, apperrors.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE ` + where
	user, err := scanUser(GetDBTX(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `u.id = $1`, utils.ToUUID(id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `LOWER(u.email) = LOWER($1)`, email)
}

func (r *UserRepository) list(ctx context.Context, where string, args ...any) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE ` + where + ` ORDER BY u.created_at, u.id`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) FindByFullName(ctx context.Context, fullName string) ([]*domain.User, error) {
	return r.list(ctx, `u.full_name <> '' AND LOWER(u.full_name) = LOWER($1)`, fullName)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) ([]*domain.User, error) {
	return r.list(ctx, `LOWER(u.username) = LOWER($1)`, username)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username).Scan(&exists)
	return exists, err
}

// ListAgents returns every enabled user holding AGENT or ADMIN.
func (r *UserRepository) ListAgents(ctx context.Context) ([]*domain.User, error) {
	return r.list(ctx, `NOT u.is_disabled AND u.roles && ARRAY['AGENT', 'ADMIN']::TEXT[]`)
}

func (r *UserRepository) FirstActiveAdmin(ctx context.Context) (*domain.User, error) {
	return r.getOne(ctx,
		`NOT u.is_disabled AND $1 = ANY(u.roles) ORDER BY u.created_at, u.id LIMIT 1`,
		string(domain.RoleAdmin))
}
