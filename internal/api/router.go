package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/health-first-scheduling/internal/auth"
)

type RouterConfig struct {
	Availability AvailabilityService
	Providers    ProviderService
	Auth         AuthService
	Health       *HealthHandler
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	errs := errorWriter{log: cfg.Logger}
	avail := &availabilityHandler{svc: cfg.Availability, errors: errs}
	prov := &providerHandler{providers: cfg.Providers, auth: cfg.Auth, errors: errs}
	requireAuth := auth.Middleware(cfg.Auth, errs.write)

	r.Route("/api/v1/provider", func(r chi.Router) {
		// Public
		r.Post("/register", prov.register)
		r.Post("/login", prov.login)
		r.Get("/availability/search", avail.search)
		r.Get("/availability/specializations", avail.specializations)
		r.Get("/availability/{availability_id}/slots", avail.slots)
		r.Get("/{provider_id}", prov.get)
		r.Get("/{provider_id}/availability", avail.listByProvider)
		r.Get("/{provider_id}/availability/count", avail.countAvailable)
		r.Get("/{provider_id}/upcoming-slots", avail.upcoming)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", prov.logout)
			r.Get("/me", prov.me)
			r.Delete("/{provider_id}", prov.deactivate)
			r.Post("/availability", avail.create)
			r.Put("/availability/{availability_id}", avail.update)
			r.Delete("/availability/{availability_id}", avail.remove)
		})
	})

	return r
}
