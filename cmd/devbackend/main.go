// Command devbackend serves a local stand-in for the Jaffa Explorer REST
// backend: per-role JWT login, refresh, visitor registration, the feed and
// the admin endpoints, with one seeded account per role.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/app"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/internal/observability"
	"github.com/upb/jaffa-explorer/routes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateDevBackend(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if cfg.DevBackend.JWTSecret == config.DefaultDevSecret {
		logger.Warn("signing tokens with the default dev secret; set DEV_JWT_SECRET")
	}

	deps, err := app.NewBackendDependencies(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize dev backend", zap.Error(err))
		return err
	}

	logger.Info("seeded accounts",
		zap.Strings("emails", []string{app.SeedVisitorEmail, app.SeedBusinessEmail, app.SeedAdminEmail}),
		zap.String("environment", cfg.Environment))

	return app.ServeBackend(ctx, cfg.DevBackend, routes.SetupRoutes(deps), logger)
}
