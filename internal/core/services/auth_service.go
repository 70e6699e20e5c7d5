package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-engine/internal/core/errors"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// AuthService implements authentication business logic
type AuthService struct {
	userRepo ports.UserRepository
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService creates a new authentication service
func NewAuthService(userRepo ports.UserRepository) ports.AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// Login authenticates a user with email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	// Basic validation
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.ErrEmailRequired
	}
	if password == "" {
		return nil, apperrors.ErrPasswordRequired
	}

	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	// Find user by email
	user, err := s.userRepo.GetByEmail(ctx, normalized)
	if err != nil {
		if isNotFound(err) {
			// Don't reveal whether email exists
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	// Verify password
	if !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if user.IsDisabled {
		return nil, apperrors.ErrUserDisabled
	}

	return user, nil
}

// BootstrapAdminParams describes the administrator seeded at startup.
type BootstrapAdminParams struct {
	Email    string
	Password string
	FullName string
}

// BootstrapAdmin creates the administrator account unless a user with that
// email already exists. It reports whether a user was created.
func BootstrapAdmin(ctx context.Context, users ports.UserRepository, params BootstrapAdminParams, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if params.Password == "" {
		return false, apperrors.ErrPasswordRequired
	}

	email, err := domain.NormalizeEmail(params.Email)
	if err != nil {
		return false, err
	}

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.HasRole(domain.RoleAdmin) {
			logger.WarnContext(ctx, "bootstrap email belongs to a non-admin user", "user_id", existing.ID)
		}
		return false, nil
	case !isNotFound(err):
		return false, fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := domain.HashPassword(params.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	username, err := uniqueUsername(ctx, users, domain.UsernameFromEmail(email))
	if err != nil {
		return false, err
	}

	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		fullName = domain.FullNameFromEmail(email)
	}

	created, err := users.Create(ctx, &domain.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hash,
		Roles:          []domain.Role{domain.RoleAdmin},
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.InfoContext(ctx, "bootstrap admin created", "user_id", created.ID, "username", created.Username)
	return true, nil
}
