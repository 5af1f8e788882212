package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bestat/tatekae-seisan-bot/internal/config"
	"github.com/bestat/tatekae-seisan-bot/internal/container"
	"github.com/bestat/tatekae-seisan-bot/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting expense ledger bot",
		zap.String("version", "1.0.0"),
		zap.String("ledger_backend", containerCfg.Ledger.Backend),
		zap.String("archive_backend", containerCfg.Archive.Backend),
		zap.Bool("http_enabled", containerCfg.Server.Enabled))

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		if closeErr := c.Close(); closeErr != nil {
			logger.Error("Cleanup after failed start", zap.Error(closeErr))
		}
		os.Exit(1)
	}

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	logger.Info("Shutting down...")

	if err := c.Close(); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}
