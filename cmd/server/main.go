package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/coursepay/internal/app"
	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/logging"
	"github.com/example/coursepay/internal/routes"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logging.New: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if !cfg.Paymob.VerifyHMAC() {
		logger.Warnw("paymob webhook signatures are NOT verified", "environment", cfg.Paymob.Environment)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Wire(cfg, logger)
	if err != nil {
		logger.Fatalf("app.Wire: %v", err)
	}

	server := routes.NewApp(cfg, logger)
	routes.Register(server, components.DB, cfg, routes.Services{
		Checkout:    components.Checkout,
		Reconciler:  components.Reconciler,
		Enrollments: components.Enrollments,
	})

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		components.Sweeper.Run(ctx)
		logger.Info("pending payment sweeper stopped")
	}()

	go func() {
		logger.Infow("starting server", "port", cfg.AppPort, "paymob_environment", cfg.Paymob.Environment)
		if err := server.Listen(":" + cfg.AppPort); err != nil {
			logger.Errorw("fiber.Listen error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Errorw("server shutdown", "error", err)
	}
	wg.Wait()
	components.Reconciler.Wait()
	if err := components.Close(); err != nil {
		logger.Warnw("database close", "error", err)
	}
	logger.Info("server gracefully stopped")
}
