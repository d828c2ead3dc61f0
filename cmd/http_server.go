package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
	"github.com/frahmantamala/identity-service/internal/core/events"
	"github.com/frahmantamala/identity-service/internal/identity"
	identityPostgres "github.com/frahmantamala/identity-service/internal/identity/postgres"
	"github.com/frahmantamala/identity-service/internal/notification"
	"github.com/frahmantamala/identity-service/internal/oauth"
	"github.com/frahmantamala/identity-service/internal/session"
	sessionPostgres "github.com/frahmantamala/identity-service/internal/session/postgres"
	"github.com/frahmantamala/identity-service/internal/transport"
	"github.com/frahmantamala/identity-service/internal/transport/rest"
	"github.com/frahmantamala/identity-service/internal/transport/swagger"
	"github.com/frahmantamala/identity-service/internal/user"
	userPostgres "github.com/frahmantamala/identity-service/internal/user/postgres"
	"github.com/frahmantamala/identity-service/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	Events   *events.EventBus
	JWKS     *keyfunc.JWKS
	Router   *chi.Mux
	Logger   *slog.Logger
	shutdown context.CancelFunc
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	deps.Close()
	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	redisClient, err := initRedis(config.Notification.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	deps := &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gormDB,
		Redis:    redisClient,
		Router:   chi.NewRouter(),
		Logger:   log,
		shutdown: cancel,
	}

	deps.Events = events.NewEventBus(log)
	events.RegisterAuditLog(deps.Events, log.With("component", "audit"))

	if _, err := swagger.Load(ctx); err != nil {
		log.Warn("openapi document is invalid", "error", err)
	}

	verifier, err := deps.googleVerifier(ctx)
	if err != nil {
		deps.Close()
		return nil, err
	}

	issuer := newTokenIssuer(config.Security)
	sessions := newSessionManager(config.Security, issuer, log)
	base := transport.NewBaseHandler(log)

	identityService := identity.NewService(identity.Dependencies{
		UnitOfWork: identityPostgres.NewUnitOfWork(gormDB),
		Tokens:     issuer,
		Passwords:  auth.NewPasswordHasher(config.Security.BCryptCost),
		Sessions:   sessions,
		OAuth:      verifier,
		Notifier:   notification.NewDispatcher(notification.NewRedisQueue(redisClient, config.Notification.QueueName), log),
		Events:     deps.Events,
		Config: identity.Config{
			FrontendURL:    config.Notification.FrontendURL,
			GoogleClientID: config.Google.ClientID,
		},
		Logger: log,
	})
	sessionRepo := sessionPostgres.NewSessionRepository(gormDB)
	userService := user.NewService(
		userPostgres.NewUserRepository(gormDB),
		userPostgres.NewCompanyRepository(gormDB),
		sessionRepo,
		sessions,
		log,
	)
	checkSession := func(ctx context.Context, sessionID, userID string) error {
		return sessions.Validate(ctx, sessionRepo, sessionID, userID)
	}

	rest.RegisterAllRoutes(deps.Router, rest.RouterConfig{
		AllowedOrigins: config.Server.AllowedOrigins,
		Health: rest.NewHealthHandler(map[string]rest.CheckFunc{
			"postgres": rest.PostgresCheck(db),
			"redis":    rest.RedisCheck(redisClient),
		}),
		Identity:    identity.NewHandler(base, identityService),
		Users:       user.NewHandler(base, userService),
		RequireAuth: auth.NewMiddleware(base, issuer, checkSession).RequireAccessToken,
		Logger:      log,
	})

	return deps, nil
}

// googleVerifier fetches Google's key set when a client id is configured.
// Without one, federated sign-in is rejected.
func (d *Dependencies) googleVerifier(ctx context.Context) (oauth.Verifier, error) {
	if d.Config.Google.ClientID == "" {
		d.Logger.Warn("google client id not set, federated sign-in disabled")
		return oauth.DisabledVerifier{}, nil
	}
	jwks, err := oauth.FetchGoogleJWKS(ctx, d.Config.Google.JWKSURL, d.Logger)
	if err != nil {
		return nil, err
	}
	d.JWKS = jwks
	return oauth.NewGoogleVerifier(jwks, d.Config.Google.Issuers), nil
}

func (d *Dependencies) Close() {
	d.shutdown()
	if d.Events != nil {
		d.Events.Wait()
	}
	if d.JWKS != nil {
		d.JWKS.EndBackground()
	}
	if err := d.Redis.Close(); err != nil {
		d.Logger.Error("Redis close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func newTokenIssuer(cfg internal.SecurityConfig) *auth.JWTTokenIssuer {
	return auth.NewJWTTokenIssuer(auth.IssuerConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenDuration,
		RefreshTTL:    cfg.RefreshTokenDuration,
		Issuer:        cfg.Issuer,
	})
}

func newSessionManager(cfg internal.SecurityConfig, issuer *auth.JWTTokenIssuer, log *slog.Logger) *session.Manager {
	return session.NewManager(issuer, auth.NewTokenHasher(cfg.BCryptCost), log)
}
