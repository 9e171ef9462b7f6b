/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. zap logger: Structured request logging
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/projects          Catalog
  /api/users/*           Roster, preferences, timesheet load/save
  /api/admin/*           Privileged correction path
  /api/reports/*         Aggregation, detailed breakdown, compliance

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
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", h.ListProjects)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}/preferences", h.SavePreferences)
			r.Get("/{id}/weeks/{year}/{week}", h.LoadWeek)
			r.Put("/{id}/weeks/{year}/{week}", h.SaveWeek)
		})

		// Correction path: upstream gateway is responsible for authorizing
		// the caller before requests reach this subtree.
		r.Route("/admin", func(r chi.Router) {
			r.Get("/users/{id}/weeks/{year}/{week}", h.AdminLoadWeek)
			r.Put("/users/{id}/weeks/{year}/{week}", h.AdminSaveWeek)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/series", h.Series)
			r.Get("/detailed", h.Detailed)
			r.Get("/compliance", h.Compliance)
		})
	})

	return r
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
