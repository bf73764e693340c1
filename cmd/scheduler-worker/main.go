package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"mymoney/internal/amqp"
	"mymoney/internal/config"
	"mymoney/internal/log"
	"mymoney/internal/push"
	"mymoney/internal/services"
	"mymoney/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	log.Setup()
	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentScheduler)

	logger.Info("Starting scheduler-worker")

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

	var pusher services.Pusher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, falling back to direct push", "error", err)
			pusher = push.NewClient(cfg.ExpoPushURL)
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - pushes delivered via push-worker")
			pusher = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - pushes go directly to the Expo gateway")
		pusher = push.NewClient(cfg.ExpoPushURL)
	}

	scheduler := services.NewBillScheduler(repo, pusher)
	lowBalance := services.NewLowBalanceNotifier(repo, pusher, cfg.LowBalanceThreshold)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runJobs := func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		now := time.Now()
		if report, err := scheduler.Run(runCtx, now); err != nil {
			logger.Error("Bill generation run finished with failures",
				"error", err,
				"instances_created", report.InstancesCreated,
				"reminders_sent", report.RemindersSent)
		} else {
			logger.Info("Bill generation run complete",
				"templates_seen", report.TemplatesSeen,
				"instances_created", report.InstancesCreated,
				"reminders_sent", report.RemindersSent)
		}

		if report, err := lowBalance.Run(runCtx); err != nil {
			logger.Error("Low balance run finished with failures",
				"error", err, "alerted", report.Alerted)
		} else {
			logger.Info("Low balance run complete",
				"profiles_seen", report.ProfilesSeen, "alerted", report.Alerted)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.SchedulerCron, runJobs); err != nil {
		logger.Error("Invalid scheduler cron spec", "spec", cfg.SchedulerCron, "error", err)
		os.Exit(1)
	}

	// Catch up on anything missed since the last scheduled run.
	logger.Info("Running initial bill processing", "cron", cfg.SchedulerCron)
	runJobs()

	c.Start()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	cronCtx := c.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Scheduler-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
