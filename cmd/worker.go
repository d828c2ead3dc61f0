package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/notification"
	sessionPostgres "github.com/frahmantamala/identity-service/internal/session/postgres"
	"github.com/frahmantamala/identity-service/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the background workers: notification delivery and session expiry.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start the email notification worker pool",
	Long:  `Drain the notification queue and deliver emails through the configured sender`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var sessionWorkerCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Start the session sweeper",
	Long:  `Periodically mark sessions whose refresh token has expired as inactive`,
	Run: func(cmd *cobra.Command, args []string) {
		startSessionWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	maxAttempts  int
	senderKind   string
	providerURL  string
)

func startNotificationWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	redisClient, err := initRedis(config.Notification.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to redis: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cfg := config.Notification
	processorConfig := notification.ProcessorConfig{
		MaxWorkers:     getIntFlag(maxWorkers, cfg.MaxWorkers),
		JobQueueSize:   getIntFlag(jobQueueSize, cfg.JobQueueSize),
		MaxAttempts:    getIntFlag(maxAttempts, cfg.MaxAttempts),
		Backoff:        cfg.Backoff,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	sender, err := newSender(cfg, getStringFlag(senderKind, cfg.Sender), getStringFlag(providerURL, cfg.ProviderURL), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build sender: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting notification worker",
		"queue", cfg.QueueName,
		"max_workers", processorConfig.MaxWorkers,
		"job_queue_size", processorConfig.JobQueueSize,
		"max_attempts", processorConfig.MaxAttempts)

	processor := notification.NewProcessor(
		notification.NewRedisQueue(redisClient, cfg.QueueName),
		notification.NewRedisIdempotencyStore(redisClient),
		sender,
		processorConfig,
		log,
	)
	processor.Start(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("notification worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	log.Info("received signal, shutting down notification worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		processor.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Info("notification worker pool shutdown complete")
	case <-ctx.Done():
		log.Warn("shutdown timeout reached, forcing exit")
	}
}

func newSender(cfg internal.NotificationConfig, kind, url string, log *slog.Logger) (notification.Sender, error) {
	switch kind {
	case "log":
		return notification.NewLogSender(log), nil
	case "http":
		if url == "" {
			return nil, fmt.Errorf("provider url is required for the http sender")
		}
		return notification.NewHTTPSender(notification.HTTPSenderConfig{
			URL:         url,
			APIKey:      cfg.ProviderAPIKey,
			FromAddress: cfg.FromAddress,
			Timeout:     cfg.SendTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown sender %q", kind)
	}
}

func startSessionWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := newSessionManager(config.Security, newTokenIssuer(config.Security), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("session worker is running. Press Ctrl+C to stop.")
	manager.RunSweeper(ctx, sessionPostgres.NewSweeper(db), config.Sessions.SweepInterval)
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Delivery attempts per email (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&senderKind, "sender", "", "Sender: log or http (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&providerURL, "provider-url", "", "Email provider API URL (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)
	workerCmd.AddCommand(sessionWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
