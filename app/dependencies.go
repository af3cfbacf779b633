package app

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/internal/observability"
	"github.com/upb/jaffa-explorer/services"
	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/shell"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Store  session.Store

	// Metrics are nil unless METRICS_ENABLED is set.
	Registry *prometheus.Registry
	Metrics  *observability.ClientMetrics

	// Request layer
	Client   *client.Client
	Services *services.Services
	Shell    *shell.Shell

	stopWatch func()
	started   bool
}

// watcher is implemented by stores that can observe changes made by other
// processes.
type watcher interface {
	Watch(ctx context.Context) (stop func(), err error)
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	store, err := OpenStore(ctx, cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	return NewDependenciesWithStore(cfg, store, logger)
}

// NewDependenciesWithStore wires everything over an existing store.
func NewDependenciesWithStore(cfg *config.Config, store session.Store, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Store:  store,
	}

	deps.initMetrics(cfg)

	if err := deps.initClient(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	sh, err := shell.New(deps.Client, deps.Services, shell.Options{Logger: logger.Named("shell")})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize shell: %w", err)
	}
	deps.Shell = sh

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Session.Store),
		zap.String("api", deps.Client.BaseURL()),
	)
	return deps, nil
}

// OpenStore builds the configured session store.
func OpenStore(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (session.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreFile:
		logger.Debug("using file session store", zap.String("path", cfg.File))
		return session.NewFileStore(cfg.File, logger.Named("store")), nil
	case config.StoreSQL:
		logger.Debug("using sql session store", zap.String("connection", cfg.SQL.LogString()))
		return session.OpenSQLStore(ctx, session.SQLConfig{
			Driver:          cfg.SQL.Driver,
			DSN:             cfg.SQL.DSN,
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
		}, logger.Named("store"))
	case config.StoreRedis:
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		}, logger.Named("store"))
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		return
	}
	d.Registry = prometheus.NewRegistry()
	d.Metrics = observability.NewClientMetrics(d.Registry)
	d.Logger.Info("client metrics enabled")
}

func (d *Dependencies) initClient(cfg *config.Config) error {
	opts := client.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		Precedence: cfg.API.Precedence,
		Logger:     d.Logger.Named("client"),
	}
	if d.Metrics != nil {
		opts.Metrics = d.Metrics
	}

	c, err := client.New(d.Store, opts)
	if err != nil {
		return err
	}
	d.Client = c
	d.Services = services.New(c)
	return nil
}

// Start follows the store for changes made elsewhere (when SESSION_WATCH is
// set and the store supports it) and starts the shell.
func (d *Dependencies) Start(ctx context.Context) error {
	if d.started {
		return fmt.Errorf("dependencies already started")
	}
	if w, ok := d.Store.(watcher); ok && d.Config.Session.Watch {
		stop, err := w.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to watch session store: %w", err)
		}
		d.stopWatch = stop
		d.Logger.Info("watching session store for external changes")
	}
	if err := d.Shell.Start(ctx); err != nil {
		if d.stopWatch != nil {
			d.stopWatch()
			d.stopWatch = nil
		}
		return err
	}
	d.started = true
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Debug("shutting down dependencies")

	var errs []error

	if d.started {
		d.Shell.Stop()
		d.started = false
	}
	if d.stopWatch != nil {
		d.stopWatch()
		d.stopWatch = nil
	}

	// Close the session store connection
	if closer, ok := d.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
		} else {
			d.Logger.Debug("session store closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
