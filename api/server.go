/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. Access log:    zerolog event per request (id, method, path, status)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend
  5. Authenticate:  Bearer token -> actor on the context

ROUTE GROUPS:
  /api/login, /api/health   Public
  /api/requests/*           Credits and day-off requests
  /api/scenarios/*          Demo scenarios (admin)
  /api/admin/*              Admin operations

AUTHENTICATION:
  Authenticate never rejects; handlers call requireActor and answer 401
  themselves, so public routes share the same middleware stack.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/compday/auth"
	"github.com/warp/compday/generic"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(auth.Authenticate(h.Secret))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, generic.ErrNotFound)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Get("/health", h.Health)

		r.Route("/requests", func(r chi.Router) {
			// Credits
			r.Get("/", h.ListCredits)
			r.Post("/", h.CreateCredit)
			r.Get("/balance", h.GetBalance)
			r.Put("/{id}", h.UpdateCredit)
			r.Delete("/{id}", h.DeleteCredit)

			// Day-off requests
			r.Post("/dayoff-request", h.CreateDayOffRequest)
			r.Post("/allocation-preview", h.AllocationPreview)
			r.Get("/approve", h.ApprovalQueue)
			r.Get("/mine", h.MyRequests)
			r.Get("/archive", h.Archive)
			r.Get("/dayoff/{id}", h.GetDayOffRequest)
			r.Get("/dayoff/{id}/form.pdf", h.DayOffForm)
			r.Delete("/dayoff/{id}", h.DeleteDayOffRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.TriggerReconcile)
		})
	})

	return r
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				event := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					event = log.Error()
				}
				event.
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
