package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/web/handlers"
	"github.com/jsvoboda/memorymap/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager, svc *gallery.Service, repos Repositories) {
	authHandler := handlers.NewAuthHandler(s.config, sessionManager)
	tripsHandler := handlers.NewTripsHandler(repos.Profiles, s.log)
	photosHandler := handlers.NewPhotosHandler(svc, repos.Photos, s.log)
	facesHandler := handlers.NewFacesHandler(svc, repos.Faces, s.log)
	membersHandler := handlers.NewMembersHandler(repos.Members, s.log)
	statsHandler := handlers.NewStatsHandler(repos.Profiles, repos.Photos, s.log)
	previewsHandler := handlers.NewPreviewsHandler(svc, s.log)

	// Health check does not require authentication.
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/profile", tripsHandler.GetProfile)
			r.Put("/profile", tripsHandler.UpdateProfile)
			r.Post("/trips", tripsHandler.AddTrip)
			r.Put("/trips/{code}", tripsHandler.UpdateTrip)
			r.Delete("/trips/{code}", tripsHandler.DeleteTrip)

			r.Post("/photos", photosHandler.Upload)
			r.Get("/photos", photosHandler.List)
			r.Get("/photos/{id}", photosHandler.Get)
			r.Put("/photos/{id}", photosHandler.Update)
			r.Delete("/photos/{id}", photosHandler.Delete)

			r.Get("/photos/{id}/faces", facesHandler.GetPhotoFaces)
			r.Post("/photos/{id}/faces/detect", facesHandler.DetectFaces)
			r.Post("/photos/{id}/tags", facesHandler.TagMember)
			r.Delete("/photos/{id}/tags/{memberId}", facesHandler.RemoveTag)
			r.Put("/faces/{id}/assign", facesHandler.Assign)
			r.Post("/faces/similar", facesHandler.Similar)
			r.Post("/faces/reconcile", facesHandler.Reconcile)

			r.Get("/members", membersHandler.List)
			r.Post("/members", membersHandler.Create)
			r.Get("/members/{id}", membersHandler.Get)
			r.Put("/members/{id}", membersHandler.Update)
			r.Delete("/members/{id}", membersHandler.Delete)

			r.Get("/stats", statsHandler.Get)
			r.Get("/previews", previewsHandler.List)
		})
	})
}
