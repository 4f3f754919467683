package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"clancha/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := bootstrap.FromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	// ---- AWS SDK clients ----
	deps, err := bootstrap.AWSDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	app, err := bootstrap.Build(cfg, deps)
	if err != nil {
		logger.Error("failed to build handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(app.Handler.Handle)
}
