// Package handler is the HTTP surface of the contact service.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/nazarhussain/folio-courier/internal/metrics"
)

type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	// AdminPerMinute caps admin requests per client address. Zero disables it.
	AdminPerMinute int
}

// NewRouter mounts:
//
//	GET  /health
//	POST /api/contact
//	GET  /api/admin/messages
func NewRouter(cfg RouterConfig, contact *ContactHandler, admin *AdminHandler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CleanPath)
	r.Use(secHeaders)
	r.Use(cors(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, contactResponse{Message: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, contactResponse{Message: "method not allowed"})
	})

	r.Get("/health", Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/contact", contact.Submit)
		if admin == nil {
			return
		}
		r.Group(func(r chi.Router) {
			if cfg.AdminPerMinute > 0 {
				r.Use(httprate.Limit(cfg.AdminPerMinute, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						writeJSON(w, http.StatusTooManyRequests, contactResponse{Message: msgTooManyRequests})
					}),
				))
			}
			r.Get("/admin/messages", admin.List)
		})
	})
	return r
}
