package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router.
func SetupRoutes(s *Service) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/events/{id}", func(r chi.Router) {
			r.Post("/status", s.HandleUpdateEventStatus)
			r.Post("/newsletter", s.HandleSendEventNewsletter)
			r.Get("/email-history", s.HandleGetEmailHistory)
			r.Get("/publish-status", s.HandleGetPublishStatus)
		})

		r.Route("/newsletter", func(r chi.Router) {
			r.Post("/subscribe", s.HandleSubscribe)
			// GET so the link in an email body works from any client.
			r.Get("/unsubscribe", s.HandleUnsubscribe)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/automation", s.HandleGetAutomationSettings)
			r.Put("/automation", s.HandleUpdateAutomationSettings)
			r.Get("/mail", s.HandleGetMailSettings)
			r.Put("/mail", s.HandleUpdateMailSettings)
			r.Get("/branding", s.HandleGetBrandingSettings)
			r.Put("/branding", s.HandleUpdateBrandingSettings)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.HandleListTemplates)
			r.Get("/{type}", s.HandleGetTemplate)
			r.Put("/{type}", s.HandleUpdateTemplate)
		})
	})

	return r
}
