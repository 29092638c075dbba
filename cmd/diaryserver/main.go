// Command diaryserver runs the sleep diary HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app"
	"github.com/dreamwell/sleepdiary/internal/config"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("diaryserver").WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, log)

	errCh, err := application.Start(ctx)
	if err != nil {
		log.WithError(err).Error("startup failed")
		os.Exit(1)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.WithError(runErr).Error("fatal error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		os.Exit(1)
	}
}
