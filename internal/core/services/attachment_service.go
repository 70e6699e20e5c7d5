package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// AttachmentService validates files and hands them to the blob store.
type AttachmentService struct {
	blobs         ports.BlobStore
	repo          ports.AttachmentRepository
	notifications ports.NotificationService
	maxSize       int64
	now           func() time.Time
	logger        *slog.Logger
}

var _ ports.AttachmentService = (*AttachmentService)(nil)

type AttachmentDeps struct {
	Blobs         ports.BlobStore
	Attachments   ports.AttachmentRepository
	Notifications ports.NotificationService
	MaxSize       int64
	Clock         func() time.Time
	Logger        *slog.Logger
}

func NewAttachmentService(deps AttachmentDeps) ports.AttachmentService {
	maxSize := deps.MaxSize
	if maxSize <= 0 {
		maxSize = domain.DefaultMaxAttachmentSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentService{
		blobs:         deps.Blobs,
		repo:          deps.Attachments,
		notifications: deps.Notifications,
		maxSize:       maxSize,
		now:           clock,
		logger:        logger.With("component", "attachments"),
	}
}

// StoreAttachment validates, stores and records one file on a ticket.
func (s *AttachmentService) StoreAttachment(ctx context.Context, params ports.StoreAttachmentParams) (*domain.Attachment, error) {
	// 1. Validate name, size and type.
	mimeType := domain.NormalizeMimeType(params.MimeType)
	size := int64(len(params.Data))
	if err := domain.ValidateAttachment(params.Name, mimeType, size, s.maxSize); err != nil {
		return nil, err
	}

	// 2. Write the bytes.
	now := s.now()
	fileName := domain.StoredFileName(params.Name, now)
	key, err := s.blobs.Store(ctx, params.Data, fileName, params.TicketID)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	// 3. Record the attachment.
	attachment, err := s.repo.Create(ctx, &domain.Attachment{
		TicketID:     params.TicketID,
		UploadedByID: params.UploaderID,
		FileName:     fileName,
		OriginalName: params.Name,
		MimeType:     mimeType,
		Size:         size,
		StorageKey:   key,
		CreatedAt:    now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("record attachment: %w", err)
	}

	s.logger.InfoContext(ctx, "attachment stored",
		"ticket_id", attachment.TicketID,
		"file", attachment.FileName,
		"size", attachment.Size,
	)
	s.notifications.AttachmentAdded(ctx, attachment)
	return attachment, nil
}
