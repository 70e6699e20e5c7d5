package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/service-desk-engine/internal/adapters/primary/validation"
	"github.com/lorrc/service-desk-engine/internal/auth"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// AuthHandler issues admin API tokens.
type AuthHandler struct {
	authService  ports.AuthService
	tokenManager *auth.TokenManager
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewAuthHandler(authService ports.AuthService, tm *auth.TokenManager, errorHandler *ErrorHandler, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService:  authService,
		tokenManager: tm,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "auth"),
	}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.HandleLogin)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	return validation.NewValidator().
		Required("email", r.Email).
		Email("email", r.Email).
		Required("password", r.Password).
		Err()
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	UserID      string    `json:"userId"`
	Roles       []string  `json:"roles"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	// 1. Decode and validate the request
	req, err := validation.DecodeJSON[LoginRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// 2. Authenticate
	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// 3. Issue the token
	token, err := h.tokenManager.GenerateToken(user)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, string(role))
	}

	h.logger.InfoContext(r.Context(), "user logged in", "user_id", user.ID)
	WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		UserID:      user.ID.String(),
		Roles:       roles,
		IssuedAt:    time.Now().UTC(),
	})
}
