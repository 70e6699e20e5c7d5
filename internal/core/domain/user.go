package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
)

const (
	MaxFullNameLength = 255
	MaxEmailLength    = 255
)

// Role grants a capability set to a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleAgent Role = "AGENT"
	RoleUser  Role = "USER"
)

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	FullName       string
	HashedPassword string
	Roles          []Role
	IsDisabled     bool
	CreatedAt      time.Time
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAgentCapable reports whether tickets may be assigned to the user.
func (u *User) IsAgentCapable() bool {
	return u.HasRole(RoleAgent) || u.HasRole(RoleAdmin)
}

// IsAvailableAgent is IsAgentCapable for users that are not disabled.
func (u *User) IsAvailableAgent() bool {
	return !u.IsDisabled && u.IsAgentCapable()
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// CheckPassword compares password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// UnusablePassword returns a bcrypt hash of random bytes that nobody knows.
func UnusablePassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return HashPassword(hex.EncodeToString(buf))
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.ErrEmailRequired
	}
	if len(email) > MaxEmailLength {
		return "", apperrors.ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", apperrors.ErrEmailInvalid
	}
	return addr.Address, nil
}

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9._-]`)

// UsernameFromEmail derives the base username for an inbound sender.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	name := usernameUnsafe.ReplaceAllString(local, "")
	if name == "" {
		return "user"
	}
	return name
}

// FullNameFromEmail builds "John Smith" from "john.smith@example.com".
func FullNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	parts := strings.Split(local, ".")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		names = append(names, string(r))
	}
	if len(names) == 0 {
		return email
	}
	return strings.Join(names, " ")
}

// NewInboundUser creates the minimal USER record for an unknown email sender.
// Username is left for the caller to make unique.
func NewInboundUser(email, displayName string, now time.Time) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := UnusablePassword()
	if err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(displayName)
	if fullName == "" {
		fullName = FullNameFromEmail(normalized)
	}
	if len(fullName) > MaxFullNameLength {
		fullName = fullName[:MaxFullNameLength]
	}

	return &User{
		ID:             uuid.New(),
		Username:       UsernameFromEmail(normalized),
		Email:          normalized,
		FullName:       fullName,
		HashedPassword: hash,
		Roles:          []Role{RoleUser},
		CreatedAt:      now.UTC(),
	}, nil
}
