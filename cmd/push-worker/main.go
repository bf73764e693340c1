package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mymoney/internal/amqp"
	"mymoney/internal/config"
	"mymoney/internal/log"
	"mymoney/internal/push"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	log.Setup()
	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentPush)

	logger.Info("Starting push-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the push-worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	expo := push.NewClient(cfg.ExpoPushURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliver := func(msg *amqp.PushMessage) error {
		sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return expo.Send(sendCtx, msg.Token, msg.Title, msg.Body)
	}

	logger.Info("Consuming push messages", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumePush(ctx, deliver); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Push-worker shutdown complete")
}
