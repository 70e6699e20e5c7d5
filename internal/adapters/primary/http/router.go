package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/service-desk-engine/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-engine/internal/auth"
	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
	"github.com/lorrc/service-desk-engine/internal/core/services"
)

// RouterDeps holds everything the HTTP surface is built from. Nil rate
// limiters and a nil WebSocket handler disable those parts.
type RouterDeps struct {
	Auth           *AuthHandler
	Admin          *AdminHandler
	Health         *HealthHandler
	WebSocket      http.Handler
	TokenManager   *auth.TokenManager
	Authz          ports.AuthorizationService
	AllowedOrigins []string
	RateLimiter    *mw.RateLimiter
	AuthLimiter    *mw.RateLimiter
	Logger         *slog.Logger
}

// NewRouter builds the chi router for health probes, login, the admin API
// and the websocket endpoint.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	d.Health.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.AuthLimiter != nil {
				r.Use(d.AuthLimiter.Middleware)
			}
			r.Route("/auth", d.Auth.RegisterRoutes)
		})

		// Authentication is handled inside the handler
		if d.WebSocket != nil {
			r.Get("/ws", d.WebSocket.ServeHTTP)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.JWTMiddleware(d.TokenManager))
			r.Use(mw.RequireRole(domain.RoleAdmin))

			allow := func(permission string) func(http.Handler) http.Handler {
				return mw.RequirePermission(d.Authz, permission)
			}

			r.Route("/assignments", func(r chi.Router) {
				r.With(allow(services.PermTicketsRebalance)).Post("/rebalance", d.Admin.HandleRebalance)
				r.With(allow(services.PermWorkloadRead)).Get("/workload", d.Admin.HandleWorkload)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.With(allow(services.PermTicketsAssign)).Post("/{ticketID}/auto-assign", d.Admin.HandleAutoAssign)
				r.With(allow(services.PermTicketsUpdateStatus)).Post("/archive", d.Admin.HandleArchive)
			})

			r.Route("/sla", func(r chi.Router) {
				r.With(allow(services.PermSLARead)).Get("/policies", d.Admin.HandleListPolicies)
				r.With(allow(services.PermSLAManage)).Post("/policies", d.Admin.HandleCreatePolicy)
				r.With(allow(services.PermSLARead)).Get("/stats", d.Admin.HandleSLAStats)
				r.With(allow(services.PermSLAManage)).Post("/scan", d.Admin.HandleSLAScan)
			})
		})
	})

	return r
}
