package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/autoguard/cloak/internal/pkg/httputil"
)

// SetupRoutes builds the top-level mux: the unauthenticated decide/health
// surface plus the operator-facing /v1/admin group.
func SetupRoutes(h *Handlers, hc *HealthChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", hc.HandleHealth)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/decide", h.HandleDecide)

		r.Route("/admin", func(r chi.Router) {
			r.Route("/blacklist", func(r chi.Router) {
				r.Get("/{family}", h.HandleListBlacklist)
				r.Post("/ip", h.HandleAddIPRule)
				r.Post("/cidr", h.HandleAddCIDRRule)
				r.Delete("/{family}/{id}", h.HandleDeactivateRule)
			})
			r.Post("/materialize", h.HandleMaterialize)

			r.Route("/prompts/{name}", func(r chi.Router) {
				r.Post("/activate", h.HandleActivatePromptVersion)
			})

			r.Route("/queues/{queue}", func(r chi.Router) {
				r.Get("/dead", h.HandleListDead)
				r.Post("/requeue", h.HandleRequeueDead)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "not found")
	})

	return r
}
