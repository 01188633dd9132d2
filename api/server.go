/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the front office

AUTHORIZATION LAYERS:
  public          login, register, health
  authenticated   everything else, behind RequireAuth
  admin           catalog writes, registry writes, billing admin,
                  behind RequireRole(admin, super-admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clubworks/club-backoffice/club"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	admin := h.Auth.RequireRole(club.RoleAdmin, club.RoleSuperAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
		})

		// Everything below requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuth)

			r.Route("/sports", func(r chi.Router) {
				r.Get("/", h.ListSports)
				r.Get("/{id}", h.GetSport)
				r.With(admin).Post("/", h.CreateSport)
				r.With(admin).Put("/{id}", h.UpdateSport)
			})

			// {student} is a numeric id on every route except the bare
			// lookup, which also accepts a name fragment.
			r.Route("/students", func(r chi.Router) {
				r.With(admin).Get("/", h.ListStudents)
				r.With(admin).Post("/", h.CreateStudent)
				r.With(admin).Put("/{student}", h.UpdateStudent)
				r.Get("/{student}", h.FindStudent)
				r.Get("/{student}/fees", h.GetStudentFees)
				r.Get("/{student}/fees/summary", h.GetStudentFeeSummary)
				r.Get("/{student}/fees/unpaid", h.GetStudentUnpaidFees)
				r.Get("/{student}/payments", h.ListStudentPayments)
				r.Post("/{student}/payments", h.RecordPayment)
			})

			r.Route("/fees", func(r chi.Router) {
				r.With(admin).Get("/", h.ListFees)
				r.Get("/{id}", h.GetFee)
			})

			r.Get("/payments/validate", h.ValidatePayment)

			r.Route("/admin", func(r chi.Router) {
				r.Use(admin)
				r.Post("/billing/generate", h.GenerateFees)
				r.Get("/billing/runs", h.ListBillingRuns)
				r.Get("/dashboard", h.Dashboard)
			})
		})
	})

	return r
}
