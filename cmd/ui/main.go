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
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.LogLevel))

	app, err := ui.NewApp(appConfig, metrics.New())
	if err != nil {
		log.Fatal("Failed to create lookup dashboard:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx, fmt.Sprintf(":%d", appConfig.Server.LookupPort)); err != nil {
		log.Fatalf("Lookup dashboard stopped: %v", err)
	}
}
