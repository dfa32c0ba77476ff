package main

import (
	"context"
	"fmt"
	"os"

	"github.com/upb/llm-chat-client/app"
	"github.com/upb/llm-chat-client/config"
	"github.com/upb/llm-chat-client/internal/cli"
	"github.com/upb/llm-chat-client/internal/observability"
	"go.uber.org/zap"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(ctx); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	opts := []cli.Option{
		cli.WithRenderer(cli.NewMarkdownRenderer(80)),
		cli.WithLogger(logger.Named("cli")),
	}
	if deps.MetricsRegistry != nil {
		opts = append(opts, cli.WithGatherer(deps.MetricsRegistry))
	}

	return cli.New(deps.Session, deps.Registry, os.Stdout, opts...).Run(ctx)
}
