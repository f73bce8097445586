/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the tracker frontend

ROUTE GROUPS:
  /api/policies/*  Policy records and their lifecycle actions
  /api/import/*    Spreadsheet import and template
  /api/settings/*  Reminder lead time and recalculation
  /api/runs/*      Run history and manual status refresh
  /api/scenarios/* Demo data
  /                Endpoint index

SECURITY NOTE:
  No authentication middleware. Deploy behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
// An empty allowedOrigins falls back to DefaultAllowedOrigins.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.Patch("/{id}", h.UpdatePolicy)
			r.Delete("/{id}", h.DeletePolicy)
			r.Post("/{id}/sent", h.MarkLetterSent)
			r.Post("/{id}/paid", h.MarkPaid)
			r.Put("/{id}/status", h.SetStatus)
			r.Delete("/{id}/status", h.ClearStatus)
		})

		r.Route("/import", func(r chi.Router) {
			r.Post("/", h.Import)
			r.Post("/mapped", h.ImportMapped)
			r.Get("/template", h.Template)
		})
		r.Get("/export", h.Export)

		r.Get("/reminders", h.Reminders)
		r.Get("/letters", h.Letters)
		r.Get("/clients", h.Clients)
		r.Get("/dashboard", h.Dashboard)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
			r.Post("/recalculate", h.Recalculate)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/refresh", h.RefreshStatuses)
		})
		r.Get("/activity", h.Activity)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>ILIT Policy Tracker</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>ILIT Policy Tracker API</h1>
<ul>
<li><a href="/api/policies">/api/policies</a> - Policies</li>
<li><a href="/api/reminders">/api/reminders</a> - Crummey letters due now</li>
<li><a href="/api/dashboard">/api/dashboard</a> - Upcoming obligations</li>
<li><a href="/api/import/template">/api/import/template</a> - Import template</li>
<li><a href="/api/settings">/api/settings</a> - Reminder lead time</li>
</ul>
</body>
</html>`))
	})

	return r
}
