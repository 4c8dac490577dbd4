package server

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*".
	CORSAllowedOrigins string
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}
	if cfg.CORSAllowedOrigins != "" {
		var trimmed []string
		for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/videos", h.CreateVideo)
		r.Get("/videos/{id}/status", h.GetStatus)
		r.Get("/videos/{id}/result", h.GetResult)

		// Legacy synchronous single-shot render.
		r.Post("/render", h.RenderSync)
	})

	return r
}
