package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/utils"
)

const attachmentColumns = `a.id, a.ticket_id, a.uploaded_by_id, a.file_name, a.original_name, a.mime_type, a.size, a.storage_key, a.created_at`

type AttachmentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AttachmentRepository = (*AttachmentRepository)(nil)

func NewAttachmentRepository(pool *pgxpool.Pool) ports.AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

func scanAttachment(row pgx.Row) (*domain.Attachment, error) {
	var (
		a          domain.Attachment
		uploadedBy pgtype.UUID
	)
	err := row.Scan(&a.ID, &a.TicketID, &uploadedBy, &a.FileName, &a.OriginalName,
		&a.MimeType, &a.Size, &a.StorageKey, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.UploadedByID = uploadedBy.Bytes
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) (*domain.Attachment, error) {
	query := `
INSERT INTO attachments AS a (ticket_id, uploaded_by_id, file_name, original_name, mime_type, size, storage_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + attachmentColumns

	return scanAttachment(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		attachment.TicketID,
		utils.ToUUID(attachment.UploadedByID),
		attachment.FileName,
		attachment.OriginalName,
		attachment.MimeType,
		attachment.Size,
		attachment.StorageKey,
		attachment.CreatedAt.UTC(),
	))
}

func (r *AttachmentRepository) ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments a WHERE a.ticket_id = $1 ORDER BY a.created_at, a.id`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]*domain.Attachment, 0)
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}
