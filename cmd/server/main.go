package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"mymoney/internal/amqp"
	"mymoney/internal/config"
	apphttp "mymoney/internal/http"
	"mymoney/internal/log"
	"mymoney/internal/push"
	"mymoney/internal/services"
	"mymoney/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	log.Setup()
	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	pusher, amqpClient := buildPusher(cfg, logger)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Scheduler:     services.NewBillScheduler(repo, pusher),
		LowBalance:    services.NewLowBalanceNotifier(repo, pusher, cfg.LowBalanceThreshold),
		Bills:         services.NewBillService(repo, cfg.UpcomingWindowDays),
		Ledger:        services.NewLedgerService(repo),
		Notifications: services.NewNotificationService(repo),
	}, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// buildPusher picks the push delivery path: through the queue when AMQP is
// configured, straight to the Expo gateway otherwise.
func buildPusher(cfg *config.Config, logger *log.Logger) (services.Pusher, *amqp.Client) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - pushes go directly to the Expo gateway")
		return push.NewClient(cfg.ExpoPushURL), nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, falling back to direct push", "error", err)
		return push.NewClient(cfg.ExpoPushURL), nil
	}
	logger.Info("AMQP client initialized - pushes delivered via push-worker")
	return client, client
}
