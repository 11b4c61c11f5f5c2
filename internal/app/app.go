// Package app assembles the odds scanner process: it builds the Postgres,
// Redis and S3 adapters, then runs the sync scheduler, the HTTP API or both,
// depending on cfg.Mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FilipeRosar/oddsscanner/internal/config"
)

// App holds the validated configuration and the resources opened by Run.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New returns an App for cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and blocks in the configured mode until ctx is
// cancelled or a component fails. Call Close afterwards.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "odds scanner starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)
	logConfig(a.logger, a.cfg)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "worker":
		return a.WorkerMode(ctx, deps)
	case "server":
		return a.ServerMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases resources opened by Run, newest first. Repeated calls do
// nothing.
func (a *App) Close() {
	a.logger.Info("odds scanner stopping")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
