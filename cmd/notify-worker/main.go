package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lherwood/expense-tracker/internal/amqp"
	"github.com/lherwood/expense-tracker/internal/client"
	"github.com/lherwood/expense-tracker/internal/config"
	applog "github.com/lherwood/expense-tracker/internal/log"
	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.Setup("notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notification worker")
		os.Exit(1)
	}
	if !cfg.PushEnabled() {
		logger.Error("VAPID keys are required for the notification worker")
		os.Exit(1)
	}

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	sender := notify.NewWebPushSender(notify.VAPID{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
	})
	subs := client.New(cfg.TrackerURL, client.Session{})
	deliveryWorker := worker.NewDeliveryWorker(subs, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Starting notification worker",
		"queue", cfg.AMQPQueue,
		"tracker_url", cfg.TrackerURL)

	if err := deliveryWorker.Run(ctx, queue); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
