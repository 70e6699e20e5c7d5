package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
)

const MaxCommentLength = 10000

// Comment is a message on a ticket's conversation.
type Comment struct {
	ID         int64
	TicketID   int64
	AuthorID   uuid.UUID
	Body       string
	IsInternal bool
	// ExternalRef is the channel-scoped id of the inbound message, if any.
	ExternalRef *string
	CreatedAt   time.Time
}

type CommentParams struct {
	TicketID    int64
	AuthorID    uuid.UUID
	Body        string
	IsInternal  bool
	ExternalRef *string
}

// NewComment validates params and builds a comment.
func NewComment(params CommentParams, now time.Time) (*Comment, error) {
	if params.TicketID <= 0 {
		return nil, apperrors.ErrTicketIDRequired
	}
	if params.AuthorID == uuid.Nil {
		return nil, apperrors.ErrAuthorIDRequired
	}
	body := strings.TrimSpace(params.Body)
	if body == "" {
		return nil, apperrors.ErrCommentBodyRequired
	}
	if len(body) > MaxCommentLength {
		return nil, apperrors.ErrCommentBodyTooLong
	}

	return &Comment{
		TicketID:    params.TicketID,
		AuthorID:    params.AuthorID,
		Body:        body,
		IsInternal:  params.IsInternal,
		ExternalRef: params.ExternalRef,
		CreatedAt:   now.UTC(),
	}, nil
}
