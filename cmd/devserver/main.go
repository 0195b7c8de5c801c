package main

import (
	"context"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"websearch-agent/internal/bootstrap"
	"websearch-agent/internal/config"
	"websearch-agent/internal/logger"
)

func main() {
	ctx := context.Background()

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("ignoring .env", "err", err)
	}
	cfg, err := config.Load(false)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{FilePath: cfg.App.LogFilePath, Production: cfg.IsProduction()})
	defer func() { _ = log.Sync() }()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	container, err := bootstrap.NewContainer(ctx, awsCfg, cfg, log)
	if err != nil {
		slog.Error("failed to build container", "err", err)
		os.Exit(1)
	}

	app := newApp(container.AskService, log)
	log.Info("devserver", "listening", map[string]any{"port": cfg.App.DevPort})
	if err := app.Listen(":" + cfg.App.DevPort); err != nil {
		log.Error("devserver", "server stopped", map[string]any{"error": err})
		os.Exit(1)
	}
}
