package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/auth"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/repositories/memory"
	"github.com/upb/jaffa-explorer/session"
)

// Seeded accounts, one per role.
const (
	SeedVisitorEmail  = "visitor@jaffa.local"
	SeedBusinessEmail = "business@jaffa.local"
	SeedAdminEmail    = "admin@jaffa.local"
)

// BackendDependencies holds the dev backend's dependencies
type BackendDependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Repositories
	Users repositories.UserRepository
	Posts repositories.PostRepository

	// Auth
	Tokens         *auth.TokenIssuer
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *auth.Handler
}

// NewBackendDependencies wires the dev backend and seeds one account per
// role. now may be nil.
func NewBackendDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, now func() time.Time) (*BackendDependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dc := cfg.DevBackend

	deps := &BackendDependencies{
		Config: cfg,
		Logger: logger,
		Users:  memory.NewUserRepository(logger.Named("users")),
		Posts:  memory.NewPostRepository(logger.Named("posts")),
		Tokens: auth.NewTokenIssuer(dc.JWTSecret, dc.AccessTTL, dc.RefreshTTL, now),
	}
	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.Tokens, logger.Named("auth"))

	frontend := "http://localhost:3000"
	if len(dc.AllowedOrigins) > 0 {
		frontend = dc.AllowedOrigins[0]
	}
	deps.AuthHandler = auth.NewHandler(deps.Users, deps.Tokens, frontend, logger.Named("auth"))

	if err := deps.seed(ctx, dc.SeedPassword); err != nil {
		return nil, fmt.Errorf("failed to seed accounts: %w", err)
	}

	logger.Info("dev backend dependencies initialized",
		zap.Duration("access_ttl", dc.AccessTTL),
		zap.Duration("refresh_ttl", dc.RefreshTTL))
	return deps, nil
}

func (d *BackendDependencies) seed(ctx context.Context, password string) error {
	accounts := []struct {
		email    string
		username string
		role     session.Role
	}{
		{SeedVisitorEmail, "visitor", session.RoleVisitor},
		{SeedBusinessEmail, "business", session.RoleBusiness},
		{SeedAdminEmail, "admin", session.RoleAdmin},
	}
	for _, a := range accounts {
		user, err := models.NewUser(a.email, a.username, password, a.role)
		if err != nil {
			return err
		}
		user.IsApproved = true
		if err := d.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("seed %s: %w", a.role, err)
		}
		d.Logger.Debug("seeded account", zap.String("role", a.role.String()), zap.String("email", a.email))
	}
	return nil
}

// ServeBackend runs handler on the configured address until ctx is done,
// then shuts down gracefully.
func ServeBackend(ctx context.Context, cfg config.DevBackendConfig, handler http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Address(), err)
	}
	return ServeBackendListener(ctx, cfg, ln, handler, logger)
}

// ServeBackendListener is ServeBackend over an existing listener.
func ServeBackendListener(ctx context.Context, cfg config.DevBackendConfig, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev backend listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down dev backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
