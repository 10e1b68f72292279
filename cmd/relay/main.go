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

	"github.com/lherwood/expense-tracker/internal/config"
	applog "github.com/lherwood/expense-tracker/internal/log"
	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/records"
	"github.com/lherwood/expense-tracker/internal/relay"
)

func main() {
	_ = godotenv.Load()

	logger := applog.Setup("relay")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var push notify.Sender
	if cfg.PushEnabled() {
		push = notify.NewWebPushSender(notify.VAPID{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		})
		logger.Info("Web push enabled", "subscriber", cfg.VAPIDSubscriber)
	} else {
		push = unconfiguredPush{}
		logger.Info("Web push disabled - VAPID keys not configured")
	}

	rl := relay.New(cfg.TrackerURL, push)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rl.SweepLoop(ctx, time.Hour)

	srv := &http.Server{
		Addr:           ":" + cfg.RelayPort,
		Handler:        rl.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting relay server", "port", cfg.RelayPort, "tracker_url", cfg.TrackerURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.RelayPort)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

type unconfiguredPush struct{}

func (unconfiguredPush) Send(context.Context, records.Subscription, notify.Payload) error {
	return errors.New("web push is not configured")
}
