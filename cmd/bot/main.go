package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"anagrambot/internal/app"
	"anagrambot/internal/config"
	"anagrambot/internal/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("Failed to initialize app: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.L().Infof("Shutdown signal received: %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			logger.L().Errorf("Shutdown failed: %v", err)
		}
	}()

	if err := application.Start(); err != nil {
		logger.L().Fatalf("App exited with error: %v", err)
	}
	logger.L().Info("App stopped")
}
