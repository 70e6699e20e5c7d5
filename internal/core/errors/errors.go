package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authorization
	ErrForbidden          = errors.New("action forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordRequired   = errors.New("password is required")
	ErrUserDisabled       = errors.New("user account is disabled")

	// Users and identities
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("email format is invalid")
	ErrNotAnAgent         = errors.New("user does not hold an agent role")
	ErrMappingConflict    = errors.New("identity mapping conflicts with an existing mapping")
	ErrIdentityUnresolved = errors.New("external identity could not be resolved")
	ErrLookupUnavailable  = errors.New("actor directory lookup unavailable")

	// Ticket validation
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrTitleRequired           = errors.New("title is required")
	ErrTitleTooLong            = errors.New("title exceeds maximum length of 255 characters")
	ErrDescriptionTooLong      = errors.New("description exceeds maximum length")
	ErrInvalidPriority         = errors.New("invalid ticket priority")
	ErrInvalidStatus           = errors.New("invalid ticket status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCreatorRequired         = errors.New("creator ID is required")
	ErrCannotAssignClosed      = errors.New("cannot assign a closed ticket")
	ErrVersionConflict         = errors.New("ticket was modified concurrently")

	// SLA
	ErrPolicyNotFound     = errors.New("sla policy not found")
	ErrInvalidPolicy      = errors.New("invalid sla policy")
	ErrNoAgents           = errors.New("no available agents")
	ErrNoEscalationTarget = errors.New("no escalation target available")

	// Comments and attachments
	ErrCommentBodyRequired = errors.New("comment body is required")
	ErrCommentBodyTooLong  = errors.New("comment body exceeds maximum length")
	ErrTicketIDRequired    = errors.New("ticket ID is required")
	ErrAuthorIDRequired    = errors.New("author ID is required")
	ErrAttachmentRejected  = errors.New("attachment rejected")

	// Inbound processing
	ErrDuplicateEvent = errors.New("event already processed")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrInternal    = errors.New("internal server error")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// IdentityResolutionError explains why an external actor could not be mapped
// to an internal user. Reason is safe to show to the person who asked.
type IdentityResolutionError struct {
	ExternalID string
	Reason     string
	Err        error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %s", e.ExternalID, e.Reason)
}

func (e *IdentityResolutionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrIdentityUnresolved
}

// NewIdentityResolutionError builds a resolution failure with a human-readable reason.
func NewIdentityResolutionError(externalID, reason string, cause error) *IdentityResolutionError {
	return &IdentityResolutionError{ExternalID: externalID, Reason: reason, Err: cause}
}

// AttachmentError carries the user-facing reason an attachment was refused.
type AttachmentError struct {
	FileName string
	Reason   string
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %q: %s", e.FileName, e.Reason)
}

func (e *AttachmentError) Unwrap() error {
	return ErrAttachmentRejected
}

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		StatusCode: 403,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "CONFLICT",
		StatusCode: 409,
	}
}

func NewValidationError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		StatusCode: 422,
		Details:    details,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
