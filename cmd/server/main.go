package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"visionbridge/internal/app"
	"visionbridge/internal/config"
	"visionbridge/internal/logger"
)

func main() {
	cfg := config.Load()

	logs, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logs.Close()

	application, err := app.NewApp(cfg, logs)
	if err != nil {
		logs.Error("Failed to build server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logs.Error("Server stopped: %v", err)
		os.Exit(1)
	}
	logs.Info("Server stopped")
}
