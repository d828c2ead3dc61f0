package rest

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/frahmantamala/identity-service/internal/identity"
	"github.com/frahmantamala/identity-service/internal/transport/middleware"
	"github.com/frahmantamala/identity-service/internal/transport/swagger"
	"github.com/frahmantamala/identity-service/internal/user"
)

type RouterConfig struct {
	AllowedOrigins string
	Health         *HealthHandler
	Identity       *identity.Handler
	Users          *user.Handler
	// RequireAuth guards the routes that need a bearer access token.
	RequireAuth func(http.Handler) http.Handler
	Logger      *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, cfg RouterConfig) {
	router.Use(cors.Handler(corsOptions(cfg.AllowedOrigins)))
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(middleware.RecoveryMiddleware(cfg.Logger))
	router.Use(middleware.LoggingMiddleware(cfg.Logger))

	router.Get("/openapi.yml", swagger.SpecHandler)
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Health != nil {
			r.Get("/health", cfg.Health.healthCheckHandler)
			r.Get("/ping", cfg.Health.pingHandler)
		}

		if cfg.Identity != nil {
			r.Route("/auth", func(ar chi.Router) {
				ar.Post("/register", cfg.Identity.Register)
				ar.Post("/signin", cfg.Identity.SignIn)
				ar.Post("/verify-email", cfg.Identity.VerifyEmail)
				ar.Post("/signin-with-google", cfg.Identity.SignInWithGoogle)
				ar.Post("/refresh-access-token", cfg.Identity.RefreshAccessToken)
				ar.Post("/request-reset-password", cfg.Identity.RequestPasswordReset)
				ar.Post("/reset-password", cfg.Identity.ResetPassword)

				ar.Group(func(pr chi.Router) {
					pr.Use(cfg.RequireAuth)
					pr.Post("/logout", cfg.Identity.Logout)
					pr.Post("/logout-all", cfg.Identity.LogoutAll)
				})
			})
		}

		if cfg.Users != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(cfg.RequireAuth)
				pr.Get("/users/me", cfg.Users.GetCurrentUser)
				pr.Get("/users/me/sessions", cfg.Users.ListSessions)
			})
		}
	})
}

// corsOptions parses a comma separated origin list. Credentials are only
// allowed when every origin is listed explicitly.
func corsOptions(allowedOrigins string) cors.Options {
	var origins []string
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: len(origins) > 0 && !slices.Contains(origins, "*"),
		MaxAge:           600,
	}
}
