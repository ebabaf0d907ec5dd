package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/middleware"
)

// Routes returns admin router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Auth routes (no auth required)
	r.With(h.login.Middleware).Post("/auth/login", h.Login)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.jwtSvc))

		r.Get("/auth/me", h.Me)
		r.Get("/operations", h.ListOperations)

		// Every action is authorized by the pipeline itself
		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.StartAction)
			r.Get("/{id}", h.GetAction)
			r.Post("/{id}/confirm", h.ConfirmAction)
			r.Post("/{id}/cancel", h.CancelAction)
		})

		r.Route("/audit", func(r chi.Router) {
			r.With(middleware.RequirePermission(h.policy, rbac.PermViewAuditLogs)).Get("/logs", h.AuditLogs)
			r.With(middleware.RequirePermission(h.policy, rbac.PermExportAuditLog)).Get("/export", h.ExportAudit)
		})

		r.With(middleware.RequirePermission(h.policy, rbac.PermViewUsers)).Get("/users/{id}", h.GetUser)

		r.With(middleware.RequirePermission(h.policy, rbac.PermViewAuditLogs)).Get("/ws", h.WS)
	})

	return r
}
