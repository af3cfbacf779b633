package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/session"
)

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization with memory store", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Verify infrastructure
		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.IsType(t, &session.MemoryStore{}, deps.Store)

		// Verify request layer
		assert.NotNil(t, deps.Client)
		assert.NotNil(t, deps.Services)
		assert.NotNil(t, deps.Shell)
		assert.Equal(t, "http://localhost:8000/api/", deps.Client.BaseURL())
		assert.Equal(t, session.DefaultPrecedence, deps.Client.Precedence())

		// Metrics are off by default
		assert.Nil(t, deps.Registry)
		assert.Nil(t, deps.Metrics)

		// Cleanup
		err = deps.Close(ctx)
		assert.NoError(t, err)
	})

	t.Run("file store", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Session.Store = config.StoreFile
		cfg.Session.File = filepath.Join(t.TempDir(), "session.json")

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		store, ok := deps.Store.(*session.FileStore)
		require.True(t, ok)
		assert.Equal(t, cfg.Session.File, store.Path())
	})

	t.Run("sqlite store", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Session.Store = config.StoreSQL
		cfg.Session.SQL = config.DatabaseConfig{
			Driver: session.DialectSQLite,
			DSN:    filepath.Join(t.TempDir(), "session.db"),
		}

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, deps.Store.Put(ctx, &session.Credential{Role: session.RoleAdmin, AccessToken: "a"}))
		sess, err := deps.Client.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.RoleAdmin, sess.Role)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("unknown store", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Session.Store = "etcd"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize session store")
	})

	t.Run("invalid base url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.API.BaseURL = "ftp://example.com"

		deps, err := NewDependenciesWithStore(cfg, session.NewMemoryStore(), zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize client")
	})

	t.Run("metrics enabled", func(t *testing.T) {
		ctx := context.Background()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := testConfig(t)
		cfg.API.BaseURL = srv.URL + "/api/"
		cfg.Observability.MetricsEnabled = true

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		require.NotNil(t, deps.Registry)
		require.NotNil(t, deps.Metrics)

		_, err = deps.Client.Login(ctx, session.RoleVisitor, client.LoginCredentials{Email: "dana@example.com", Password: "pw"})
		assert.Error(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.LoginsTotal.WithLabelValues("visitor", "error")))

		families, err := deps.Registry.Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}

func TestDependenciesStart(t *testing.T) {
	t.Run("watches file store and starts shell", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Session.Store = config.StoreFile
		cfg.Session.File = filepath.Join(t.TempDir(), "session.json")
		cfg.Session.Watch = true

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, deps.Start(ctx))
		assert.NotNil(t, deps.stopWatch)
		assert.Error(t, deps.Start(ctx))

		// Another process writes the same file.
		other := session.NewFileStore(cfg.Session.File, nil)
		require.NoError(t, other.Put(ctx, &session.Credential{Role: session.RoleBusiness, AccessToken: "b"}))

		assert.Eventually(t, func() bool {
			return deps.Shell.State().Session.Role == session.RoleBusiness
		}, 3*time.Second, 20*time.Millisecond)

		assert.NoError(t, deps.Close(ctx))
		assert.Nil(t, deps.stopWatch)
	})

	t.Run("memory store has nothing to watch", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, deps.Start(ctx))
		assert.Nil(t, deps.stopWatch)
		assert.NoError(t, deps.Close(ctx))
	})
}

func TestDependenciesClose(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Session.Store = config.StoreSQL
		cfg.Session.SQL = config.DatabaseConfig{
			Driver: session.DialectSQLite,
			DSN:    filepath.Join(t.TempDir(), "session.db"),
		}
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Close should succeed
		err = deps.Close(ctx)
		assert.NoError(t, err)

		// Second close should not panic
		assert.NotPanics(t, func() { _ = deps.Close(ctx) })
	})
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		API: config.APIConfig{
			BaseURL:    "http://localhost:8000/api/",
			Timeout:    5 * time.Second,
			Precedence: session.DefaultPrecedence,
		},
		Session: config.SessionConfig{
			Store: config.StoreMemory,
		},
		DevBackend: config.DevBackendConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			JWTSecret:       config.DefaultDevSecret,
			SeedPassword:    "jaffa-explorer",
			AccessTTL:       5 * time.Minute,
			RefreshTTL:      24 * time.Hour,
			ShutdownTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			LogFormat:      "json",
			MetricsEnabled: false,
		},
	}
}
