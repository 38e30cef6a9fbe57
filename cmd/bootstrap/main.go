package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	adapterlogger "smart-factory/internal/adapters/logger"
	"smart-factory/internal/config"
	"smart-factory/internal/platform/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		adapterlogger.New(nil).Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	level, _ := adapterlogger.ParseLevel(cfg.LogLevel)
	logger := adapterlogger.New(level)
	xray.Configure(xray.Config{LogLevel: "error"})

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize application", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info(ctx, "starting http server", "port", cfg.Port, "store", cfg.Store, "auth_mode", cfg.AuthMode)
		if err := a.Echo.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
	}
}
