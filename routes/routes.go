package routes

import (
	"net/http"

	"github.com/Dosada05/tournament-progression/handlers"
	"github.com/Dosada05/tournament-progression/middleware"
	"github.com/Dosada05/tournament-progression/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

func SetupRoutes(
	r chi.Router,
	opts Options,
	healthHandler *handlers.HealthHandler,
	stageHandler *handlers.StageHandler,
	matchupHandler *handlers.MatchupHandler,
) {
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.Healthz)

	r.Route("/stages/{stageID}", func(r chi.Router) {
		// Публичный просмотр сетки
		r.Get("/bracket", stageHandler.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.JWTSecret))
			r.Use(middleware.Authorize(models.RoleOrganizer, models.RoleAdmin))
			r.Post("/generate", stageHandler.Generate)
		})
	})

	r.Route("/matchups/{matchupID}", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret))
		r.Use(middleware.Authorize(models.RoleOrganizer, models.RoleAdmin))
		r.Post("/result", matchupHandler.RecordResult)
	})
}
