package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/photo-picker/internal/web/handlers"
	"github.com/kozaktomas/photo-picker/internal/web/middleware"
)

// requestTimeout bounds plain request/response handlers. Streaming and
// file routes are registered outside it.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.OAuth, s.deps.Credentials, s.states)
	pickerHandler := handlers.NewPickerHandler(s.jobsCtx, s.deps.Picker, s.deps.Credentials, s.deps.NewImporter,
		s.jobManager, s.config.Picker.PollInterval, s.logger)
	imagesHandler := handlers.NewImagesHandler(s.deps.Images, s.deps.NewImporter, s.deps.Enroller)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/config", configHandler.Get)

			// Auth
			r.Get("/auth/url", authHandler.URL)
			r.Get("/auth/callback", authHandler.Callback)
			r.Get("/auth/status", authHandler.Status)
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/refresh", authHandler.Refresh)

			// Images (the caller supplies the access token when creating)
			r.Get("/images", imagesHandler.List)
			r.Post("/images", imagesHandler.Create)
			r.Post("/images/upload", imagesHandler.Upload)
			r.Get("/images/{id}", imagesHandler.Get)
			r.Post("/images/{id}/analyze", imagesHandler.Analyze)
			r.Post("/images/{id}/enroll", imagesHandler.Enroll)

			// Picker routes require a stored credential
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCredential(s.deps.Credentials))

				r.Post("/picker/sessions", pickerHandler.CreateSession)
				r.Get("/picker/sessions/{id}", pickerHandler.GetSession)
				r.Delete("/picker/sessions/{id}", pickerHandler.DeleteSession)
				r.Get("/picker/sessions/{id}/items", pickerHandler.ListItems)
				r.Post("/picker/sessions/{id}/import", pickerHandler.StartImport)
			})

			r.Get("/jobs/{jobId}", pickerHandler.JobStatus)
			r.Delete("/jobs/{jobId}", pickerHandler.CancelJob)
		})

		r.Get("/images/{id}/file", imagesHandler.File)
		r.Get("/jobs/{jobId}/events", pickerHandler.JobEvents)
	})
}
