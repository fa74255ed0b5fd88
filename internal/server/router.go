package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/internal/handlers"
	"github.com/sceneit/apiserver/internal/services"
)

const requestTimeout = 60 * time.Second

// App holds the services behind the HTTP API.
type App struct {
	Tokens  *services.TokenService
	Auth    *services.AuthService
	Users   *services.UserService
	Reviews *services.ReviewService
	Movies  *services.MovieService
	Avatars *services.AvatarService
}

// NewApp wires the services over their storage and upstream dependencies.
func NewApp(
	cfg config.Config,
	repo services.UserRepository,
	catalog services.Catalog,
	avatars services.AvatarStore,
	mailer services.MailSender,
	logger *slog.Logger,
) App {
	tokens := services.NewTokenService(repo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return App{
		Tokens:  tokens,
		Auth:    services.NewAuthService(repo, tokens, mailer, cfg.ClientURL(), logger),
		Users:   services.NewUserService(repo),
		Reviews: services.NewReviewService(repo, logger),
		Movies:  services.NewMovieService(catalog),
		Avatars: services.NewAvatarService(avatars),
	}
}

// NewRouter builds the HTTP API. The per-IP rate limiter sweeps its state until ctx ends.
func NewRouter(ctx context.Context, app App, cfg config.Config) *chi.Mux {
	sessions := handlers.NewSessions(app.Tokens, cfg.Production())
	limiter := handlers.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	limiter.StartCleanup(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.RateLimit.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.ClientOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/avatars", func(r chi.Router) {
		handlers.AvatarRouter(r, app.Avatars)
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Route("/v1/auth", func(r chi.Router) {
			handlers.AuthRouter(r, app.Auth, sessions)
		})
		r.Route("/v1/movies", func(r chi.Router) {
			handlers.MovieRouter(r, app.Movies, app.Reviews, app.Users, sessions)
		})
		r.Route("/v1/users", func(r chi.Router) {
			handlers.UserRouter(r, handlers.NewUserHandler(app.Users, app.Auth, app.Reviews, app.Avatars, sessions))
		})
	})

	return router
}
