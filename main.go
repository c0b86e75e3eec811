package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sondajes/internal"
	"sondajes/internal/config"
	"sondajes/internal/metrics"
	"sondajes/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.LogLevel))

	server, err := ui.NewServer(appConfig, metrics.New())
	if err != nil {
		log.Fatalf("Failed to create filter dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", appConfig.Server.Port)
	if err := server.Start(ctx, addr); err != nil {
		log.Fatalf("Filter dashboard stopped: %v", err)
	}
}
