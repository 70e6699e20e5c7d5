package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CommentSnapshot is the wire shape of a comment in real-time events.
type CommentSnapshot struct {
	ID         string `json:"id"`
	TicketID   int64  `json:"ticketId"`
	AuthorID   string `json:"authorId"`
	Body       string `json:"body"`
	IsInternal bool   `json:"isInternal"`
	CreatedAt  string `json:"createdAt"`
}

// TicketSnapshot is the wire shape of a ticket in real-time events.
type TicketSnapshot struct {
	ID              int64   `json:"id"`
	Number          string  `json:"number"`
	Title           string  `json:"title"`
	Status          string  `json:"status"`
	Priority        string  `json:"priority"`
	Category        string  `json:"category"`
	Source          string  `json:"source"`
	CreatorID       string  `json:"creatorId"`
	AssigneeID      *string `json:"assigneeId"`
	ResponseDueAt   *string `json:"responseDueAt"`
	ResolutionDueAt *string `json:"resolutionDueAt"`
	ResponseMetAt   *string `json:"responseMetAt"`
	Breached        bool    `json:"breached"`
	EscalatedAt     *string `json:"escalatedAt"`
	EscalatedToID   *string `json:"escalatedToId"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
	ResolvedAt      *string `json:"resolvedAt"`
	ClosedAt        *string `json:"closedAt"`
	ArchivedAt      *string `json:"archivedAt"`
}

// AttachmentSnapshot is the wire shape of an attachment in real-time events.
type AttachmentSnapshot struct {
	ID           string `json:"id"`
	TicketID     int64  `json:"ticketId"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

// NewCommentSnapshot builds a comment snapshot from a domain comment.
func NewCommentSnapshot(comment *Comment) CommentSnapshot {
	return CommentSnapshot{
		ID:         strconv.FormatInt(comment.ID, 10),
		TicketID:   comment.TicketID,
		AuthorID:   comment.AuthorID.String(),
		Body:       comment.Body,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NewTicketSnapshot builds a ticket snapshot from a domain ticket.
func NewTicketSnapshot(ticket *Ticket) TicketSnapshot {
	return TicketSnapshot{
		ID:              ticket.ID,
		Number:          ticket.Number,
		Title:           ticket.Title,
		Status:          string(ticket.Status),
		Priority:        string(ticket.Priority),
		Category:        string(ticket.Category),
		Source:          string(ticket.Source),
		CreatorID:       ticket.CreatorID.String(),
		AssigneeID:      formatUUID(ticket.AssigneeID),
		ResponseDueAt:   formatTime(ticket.ResponseDueAt),
		ResolutionDueAt: formatTime(ticket.ResolutionDueAt),
		ResponseMetAt:   formatTime(ticket.ResponseMetAt),
		Breached:        ticket.Breached,
		EscalatedAt:     formatTime(ticket.EscalatedAt),
		EscalatedToID:   formatUUID(ticket.EscalatedToID),
		CreatedAt:       ticket.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       ticket.UpdatedAt.UTC().Format(time.RFC3339),
		ResolvedAt:      formatTime(ticket.ResolvedAt),
		ClosedAt:        formatTime(ticket.ClosedAt),
		ArchivedAt:      formatTime(ticket.ArchivedAt),
	}
}

// NewAttachmentSnapshot builds an attachment snapshot from a domain attachment.
func NewAttachmentSnapshot(a *Attachment) AttachmentSnapshot {
	return AttachmentSnapshot{
		ID:           strconv.FormatInt(a.ID, 10),
		TicketID:     a.TicketID,
		FileName:     a.FileName,
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		Size:         a.Size,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.UTC().Format(time.RFC3339)
	return &value
}

func formatUUID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	value := id.String()
	return &value
}
