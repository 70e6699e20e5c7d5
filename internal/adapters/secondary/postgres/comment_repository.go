package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/utils"
)

const commentColumns = `c.id, c.ticket_id, c.author_id, c.body, c.is_internal, c.external_ref, c.created_at`

// CommentRepository handles database operations for comments.
type CommentRepository struct {
	pool *pgxpool.Pool
}

// Ensure implementation matches the interface.
var _ ports.CommentRepository = (*CommentRepository)(nil)

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(pool *pgxpool.Pool) ports.CommentRepository {
	return &CommentRepository{pool: pool}
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var (
		c           domain.Comment
		authorID    pgtype.UUID
		externalRef pgtype.Text
	)
	if err := row.Scan(&c.ID, &c.TicketID, &authorID, &c.Body, &c.IsInternal, &externalRef, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.AuthorID = authorID.Bytes
	c.ExternalRef = utils.FromNullString(externalRef)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// Create persists a new comment. A reused external reference means the
// inbound message was already recorded.
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	query := `
INSERT INTO comments AS c (ticket_id, author_id, body, is_internal, external_ref, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (external_ref) DO NOTHING
RETURNING ` + commentColumns

	created, err := scanComment(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		comment.TicketID,
		utils.ToUUID(comment.AuthorID),
		comment.Body,
		comment.IsInternal,
		utils.ToNullString(comment.ExternalRef),
		comment.CreatedAt.UTC(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDuplicateEvent
		}
		return nil, err
	}
	return created, nil
}

// ListByTicketID retrieves all comments for a specific ticket, ordered by creation.
func (r *CommentRepository) ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments c WHERE c.ticket_id = $1 ORDER BY c.created_at, c.id`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}
