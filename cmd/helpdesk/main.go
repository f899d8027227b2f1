package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
	"github.com/tjfontaine/helpdesk-router/internal/runtime"
	"github.com/tjfontaine/helpdesk-router/internal/telemetry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	hd, err := runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create helpdesk: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := hd.Start(ctx); err != nil {
		log.Fatalf("Failed to start helpdesk: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping helpdesk...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := hd.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
