package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
)

// DefaultMaxAttachmentSize is the 10MB cap applied when none is configured.
const DefaultMaxAttachmentSize int64 = 10 * 1024 * 1024

const maxFileNameLength = 255

// Attachment records a stored file that belongs to a ticket.
type Attachment struct {
	ID           int64
	TicketID     int64
	UploadedByID uuid.UUID
	FileName     string
	OriginalName string
	MimeType     string
	Size         int64
	StorageKey   string
	CreatedAt    time.Time
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,

	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,

	"text/plain": true,
	"text/csv":   true,
	"text/html":  true,

	"application/zip":              true,
	"application/x-rar-compressed": true,
	"application/gzip":             true,

	"application/json": true,
	"application/xml":  true,
	"text/javascript":  true,
	"text/css":         true,
}

var blockedExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".msi", ".dll", ".scr", ".pif",
	".sh", ".bash", ".zsh", ".ps1", ".vbs", ".vbe", ".js", ".jse",
	".ws", ".wsf", ".wsc", ".wsh", ".hta", ".cpl", ".msc", ".jar",
	".php", ".asp", ".aspx", ".jsp", ".cgi", ".pl", ".py", ".rb",
}

// mimeExtensions lists the extensions a declared type must carry.
var mimeExtensions = map[string][]string{
	"image/jpeg":       {".jpg", ".jpeg"},
	"image/png":        {".png"},
	"image/gif":        {".gif"},
	"image/webp":       {".webp"},
	"application/pdf":  {".pdf"},
	"application/zip":  {".zip"},
	"text/plain":       {".txt", ".log", ".md"},
	"text/csv":         {".csv"},
	"application/json": {".json"},
}

// NormalizeMimeType drops parameters such as "; charset=utf-8".
func NormalizeMimeType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// IsImage reports whether mimeType is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), "image/")
}

// ValidateAttachment rejects files that are too large, carry a blocked
// extension, use a disallowed type, or whose extension contradicts the type.
func ValidateAttachment(name, mimeType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxAttachmentSize
	}
	if strings.TrimSpace(name) == "" {
		return &apperrors.AttachmentError{FileName: name, Reason: "no file name provided"}
	}
	if size > maxSize {
		return &apperrors.AttachmentError{
			FileName: name,
			Reason:   fmt.Sprintf("size %dMB exceeds the %dMB limit", size/1024/1024, maxSize/1024/1024),
		}
	}

	lower := strings.ToLower(name)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lower, ext) {
			return &apperrors.AttachmentError{FileName: name, Reason: "file type " + ext + " is not allowed"}
		}
	}

	mt := NormalizeMimeType(mimeType)
	if !allowedMimeTypes[mt] {
		return &apperrors.AttachmentError{FileName: name, Reason: "content type " + mt + " is not allowed"}
	}

	if exts, ok := mimeExtensions[mt]; ok {
		matched := false
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				matched = true
				break
			}
		}
		if !matched {
			return &apperrors.AttachmentError{FileName: name, Reason: "extension does not match content type " + mt}
		}
	}
	return nil
}

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName strips any path and replaces unsafe characters with "_".
func SanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	base = unsafeFileNameChars.ReplaceAllString(base, "_")
	if len(base) > maxFileNameLength {
		base = base[:maxFileNameLength]
	}
	return base
}

// StoredFileName prefixes a sanitised name with the upload time in milliseconds.
func StoredFileName(name string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeFileName(name))
}
