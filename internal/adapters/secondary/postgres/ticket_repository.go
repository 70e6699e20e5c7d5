package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/utils"
)

const ticketColumns = `
	t.id, t.number, t.title, t.description, t.status, t.priority, t.category, t.source,
	t.creator_id, t.assignee_id, t.contact_email, t.chat_thread_ref, t.external_ref,
	t.sla_policy_id, t.response_due_at, t.resolution_due_at, t.response_met_at,
	t.breached, t.escalated_at, t.escalated_to_id,
	t.created_at, t.updated_at, t.resolved_at, t.closed_at, t.archived_at, t.version`

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool              *pgxpool.Pool
	tx                *TransactionManager
	optimisticLocking bool
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository. With optimisticLocking
// set, Update refuses to overwrite a row whose version moved on.
func NewTicketRepository(pool *pgxpool.Pool, optimisticLocking bool) ports.TicketRepository {
	return &TicketRepository{
		pool:              pool,
		tx:                NewTransactionManager(pool),
		optimisticLocking: optimisticLocking,
	}
}

// ticketRow holds the scan targets for ticketColumns.
type ticketRow struct {
	id              int64
	number          string
	title           string
	description     string
	status          string
	priority        string
	category        string
	source          string
	creatorID       pgtype.UUID
	assigneeID      pgtype.UUID
	contactEmail    pgtype.Text
	chatThreadRef   pgtype.Text
	externalRef     pgtype.Text
	slaPolicyID     pgtype.Int8
	responseDueAt   pgtype.Timestamptz
	resolutionDueAt pgtype.Timestamptz
	responseMetAt   pgtype.Timestamptz
	breached        bool
	escalatedAt     pgtype.Timestamptz
	escalatedToID   pgtype.UUID
	createdAt       time.Time
	updatedAt       time.Time
	resolvedAt      pgtype.Timestamptz
	closedAt        pgtype.Timestamptz
	archivedAt      pgtype.Timestamptz
	version         int64
}

func (r *ticketRow) dest() []any {
	return []any{
		&r.id, &r.number, &r.title, &r.description, &r.status, &r.priority, &r.category, &r.source,
		&r.creatorID, &r.assigneeID, &r.contactEmail, &r.chatThreadRef, &r.externalRef,
		&r.slaPolicyID, &r.responseDueAt, &r.resolutionDueAt, &r.responseMetAt,
		&r.breached, &r.escalatedAt, &r.escalatedToID,
		&r.createdAt, &r.updatedAt, &r.resolvedAt, &r.closedAt, &r.archivedAt, &r.version,
	}
}

func (r *ticketRow) toDomain() *domain.Ticket {
	return &domain.Ticket{
		ID:              r.id,
		Number:          r.number,
		Title:           r.title,
		Description:     r.description,
		Status:          domain.TicketStatus(r.status),
		Priority:        domain.TicketPriority(r.priority),
		Category:        domain.TicketCategory(r.category),
		Source:          domain.TicketSource(r.source),
		CreatorID:       r.creatorID.Bytes,
		AssigneeID:      utils.FromNullUUID(r.assigneeID),
		ContactEmail:    utils.FromNullString(r.contactEmail),
		ChatThreadRef:   utils.FromNullString(r.chatThreadRef),
		ExternalRef:     utils.FromNullString(r.externalRef),
		SLAPolicyID:     utils.FromNullInt8(r.slaPolicyID),
		ResponseDueAt:   utils.FromNullTime(r.responseDueAt),
		ResolutionDueAt: utils.FromNullTime(r.resolutionDueAt),
		ResponseMetAt:   utils.FromNullTime(r.responseMetAt),
		Breached:        r.breached,
		EscalatedAt:     utils.FromNullTime(r.escalatedAt),
		EscalatedToID:   utils.FromNullUUID(r.escalatedToID),
		CreatedAt:       r.createdAt.UTC(),
		UpdatedAt:       r.updatedAt.UTC(),
		ResolvedAt:      utils.FromNullTime(r.resolvedAt),
		ClosedAt:        utils.FromNullTime(r.closedAt),
		ArchivedAt:      utils.FromNullTime(r.archivedAt),
		Version:         r.version,
	}
}

// scanTicket reads one row selected with ticketColumns.
func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var tr ticketRow
	if err := row.Scan(tr.dest()...); err != nil {
		return nil, err
	}
	return tr.toDomain(), nil
}

// scanTicketWithPolicy reads a row selected with ticketColumns followed by policyColumns.
func scanTicketWithPolicy(row pgx.Row) (*domain.Ticket, *domain.SLAPolicy, error) {
	var (
		tr ticketRow
		pr policyRow
	)
	if err := row.Scan(append(tr.dest(), pr.dest()...)...); err != nil {
		return nil, nil, err
	}
	return tr.toDomain(), pr.toDomain(), nil
}

func collectTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// Create persists a new ticket entity and allocates its number.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	db := GetDBTX(ctx, r.pool)

	var seq int64
	if err := db.QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("allocate ticket number: %w", err)
	}

	query := `
INSERT INTO tickets AS t (
	number, title, description, status, priority, category, source,
	creator_id, assignee_id, contact_email, chat_thread_ref, external_ref,
	sla_policy_id, response_due_at, resolution_due_at, response_met_at,
	breached, escalated_at, escalated_to_id,
	created_at, updated_at, resolved_at, closed_at, archived_at, version
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14, $15, $16,
	$17, $18, $19,
	$20, $21, $22, $23, $24, 1
)
ON CONFLICT (external_ref) DO NOTHING
RETURNING ` + ticketColumns

	created, err := scanTicket(db.QueryRow(ctx, query,
		domain.FormatTicketNumber(seq),
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		string(ticket.Category),
		string(ticket.Source),
		utils.ToUUID(ticket.CreatorID),
		utils.ToNullUUID(ticket.AssigneeID),
		utils.ToNullString(ticket.ContactEmail),
		utils.ToNullString(ticket.ChatThreadRef),
		utils.ToNullString(ticket.ExternalRef),
		utils.ToNullInt8(ticket.SLAPolicyID),
		utils.ToNullTime(ticket.ResponseDueAt),
		utils.ToNullTime(ticket.ResolutionDueAt),
		utils.ToNullTime(ticket.ResponseMetAt),
		ticket.Breached,
		utils.ToNullTime(ticket.EscalatedAt),
		utils.ToNullUUID(ticket.EscalatedToID),
		ticket.CreatedAt.UTC(),
		ticket.UpdatedAt.UTC(),
		utils.ToNullTime(ticket.ResolvedAt),
		utils.ToNullTime(ticket.ClosedAt),
		utils.ToNullTime(ticket.ArchivedAt),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The insert was skipped: this inbound item already produced a ticket.
			return nil, apperrors.ErrDuplicateEvent
		}
		return nil, err
	}
	return created, nil
}

func (r *TicketRepository) getOne(ctx context.Context, where string, arg any) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE ` + where
	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// GetByID retrieves a single ticket by its ID.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.getOne(ctx, `t.id = $1`, id)
}

func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.getOne(ctx, `t.number = $1`, number)
}

func (r *TicketRepository) GetByChatThread(ctx context.Context, threadRef string) (*domain.Ticket, error) {
	return r.getOne(ctx, `t.chat_thread_ref = $1`, threadRef)
}

// Update persists changes to an existing ticket entity. The chat thread and
// external reference are write-once and never touched here.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	if !r.optimisticLocking {
		return r.update(ctx, GetDBTX(ctx, r.pool), ticket)
	}

	var updated *domain.Ticket
	err := r.tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx, `SELECT version FROM tickets WHERE id = $1 FOR UPDATE`, ticket.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrTicketNotFound
			}
			return err
		}
		if current != ticket.Version {
			return apperrors.ErrVersionConflict
		}

		updated, err = r.update(ctx, tx, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *TicketRepository) update(ctx context.Context, db DBTX, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
UPDATE tickets AS t SET
	title = $2,
	description = $3,
	status = $4,
	priority = $5,
	category = $6,
	assignee_id = $7,
	contact_email = $8,
	sla_policy_id = $9,
	response_due_at = $10,
	resolution_due_at = $11,
	response_met_at = $12,
	breached = t.breached OR $13,
	escalated_at = $14,
	escalated_to_id = $15,
	updated_at = $16,
	resolved_at = $17,
	closed_at = $18,
	archived_at = $19,
	version = t.version + 1
WHERE t.id = $1
RETURNING ` + ticketColumns

	updated, err := scanTicket(db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		string(ticket.Category),
		utils.ToNullUUID(ticket.AssigneeID),
		utils.ToNullString(ticket.ContactEmail),
		utils.ToNullInt8(ticket.SLAPolicyID),
		utils.ToNullTime(ticket.ResponseDueAt),
		utils.ToNullTime(ticket.ResolutionDueAt),
		utils.ToNullTime(ticket.ResponseMetAt),
		ticket.Breached,
		utils.ToNullTime(ticket.EscalatedAt),
		utils.ToNullUUID(ticket.EscalatedToID),
		ticket.UpdatedAt.UTC(),
		utils.ToNullTime(ticket.ResolvedAt),
		utils.ToNullTime(ticket.ClosedAt),
		utils.ToNullTime(ticket.ArchivedAt),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return updated, nil
}

// LinkChatThread sets the thread handle once. It reports false when the
// ticket already had one or the handle belongs to another ticket.
func (r *TicketRepository) LinkChatThread(ctx context.Context, ticketID int64, threadRef string) (bool, error) {
	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, `
UPDATE tickets SET chat_thread_ref = $2
WHERE id = $1 AND chat_thread_ref IS NULL`, ticketID, threadRef)
	if err != nil {
		if uniqueViolationOn(err, "tickets_chat_thread_ref_key") {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TicketRepository) list(ctx context.Context, where, order string, args ...any) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE ` + where + ` ORDER BY ` + order
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// ListUnassignedOpen returns the oldest unassigned OPEN tickets first.
func (r *TicketRepository) ListUnassignedOpen(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	return r.list(ctx,
		`t.status = 'OPEN' AND t.assignee_id IS NULL`,
		`t.created_at, t.id LIMIT $1`,
		limit)
}

func (r *TicketRepository) ListOpenByAssigneeNewestFirst(ctx context.Context, assigneeID uuid.UUID, limit int) ([]*domain.Ticket, error) {
	return r.list(ctx,
		`t.status = 'OPEN' AND t.assignee_id = $1`,
		`t.created_at DESC, t.id DESC LIMIT $2`,
		utils.ToUUID(assigneeID), limit)
}

// ListBreachCandidates returns unflagged tickets past their resolution deadline.
func (r *TicketRepository) ListBreachCandidates(ctx context.Context, now time.Time) ([]*domain.Ticket, error) {
	return r.list(ctx,
		`NOT t.breached
		 AND t.resolution_due_at IS NOT NULL
		 AND t.resolution_due_at < $1
		 AND t.status NOT IN ('CLOSED', 'ARCHIVED')`,
		`t.resolution_due_at, t.id`,
		now.UTC())
}

// ListEscalationCandidates joins waiting tickets with a policy whose
// escalation delay has run out.
func (r *TicketRepository) ListEscalationCandidates(ctx context.Context, now time.Time) ([]domain.EscalationCandidate, error) {
	query := `
SELECT ` + ticketColumns + `, ` + policyColumns + `
FROM tickets t
JOIN sla_policies p ON p.id = t.sla_policy_id
WHERE t.escalated_at IS NULL
  AND t.status IN ('OPEN', 'IN_PROGRESS')
  AND p.escalation_enabled
  AND p.escalation_minutes > 0
  AND t.created_at + p.escalation_minutes * INTERVAL '1 minute' < $1
ORDER BY t.created_at, t.id`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]domain.EscalationCandidate, 0)
	for rows.Next() {
		ticket, policy, err := scanTicketWithPolicy(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.EscalationCandidate{Ticket: ticket, Policy: policy})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *TicketRepository) ListArchivable(ctx context.Context, closedBefore time.Time) ([]*domain.Ticket, error) {
	return r.list(ctx,
		`t.status = 'CLOSED' AND t.closed_at IS NOT NULL AND t.closed_at < $1`,
		`t.closed_at, t.id`,
		closedBefore.UTC())
}
