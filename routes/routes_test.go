package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/app"
	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/services"
	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/shell"
)

const seedPassword = "jaffa-explorer"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		API: config.APIConfig{
			Timeout:    5 * time.Second,
			Precedence: session.DefaultPrecedence,
		},
		Session: config.SessionConfig{Store: config.StoreMemory},
		DevBackend: config.DevBackendConfig{
			JWTSecret:       config.DefaultDevSecret,
			SeedPassword:    seedPassword,
			AccessTTL:       5 * time.Minute,
			RefreshTTL:      time.Hour,
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: time.Second,
		},
	}
}

type stack struct {
	backend *app.BackendDependencies
	server  *httptest.Server
	deps    *app.Dependencies
	store   *session.MemoryStore
	clock   *clock
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()
	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}

	backend, err := app.NewBackendDependencies(ctx, cfg, zaptest.NewLogger(t), clk.Now)
	require.NoError(t, err)

	server := httptest.NewServer(SetupRoutes(backend))
	t.Cleanup(server.Close)

	cfg.API.BaseURL = server.URL + "/api/"
	store := session.NewMemoryStore()
	deps, err := app.NewDependenciesWithStore(cfg, store, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	return &stack{backend: backend, server: server, deps: deps, store: store, clock: clk}
}

func (s *stack) login(t *testing.T, role session.Role, email string) *session.Credential {
	t.Helper()
	cred, err := s.deps.Client.Login(context.Background(), role, client.LoginCredentials{Email: email, Password: seedPassword})
	require.NoError(t, err)
	return cred
}

func TestHealthEndpoints(t *testing.T) {
	s := newStack(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(s.server.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(s.server.URL + "/api/nowhere/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	s := newStack(t)

	req, err := http.NewRequest(http.MethodOptions, s.server.URL+"/api/posts/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestVisitorSessionAgainstBackend(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := s.deps.Services

	t.Run("wrong password is an authentication failure", func(t *testing.T) {
		_, err := s.deps.Client.Login(ctx, session.RoleVisitor, client.LoginCredentials{Email: app.SeedVisitorEmail, Password: "nope"})
		require.Error(t, err)
		assert.True(t, apierrors.IsAuthenticationFailed(err))
		assert.Equal(t, "No active account found with the given credentials", apierrors.UserMessage(err))

		sess, err := s.deps.Client.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Anonymous, sess)
	})

	t.Run("business account through the visitor login", func(t *testing.T) {
		_, err := s.deps.Client.Login(ctx, session.RoleVisitor, client.LoginCredentials{Email: app.SeedBusinessEmail, Password: seedPassword})
		require.Error(t, err)
		assert.Equal(t, "Access denied: Not a visitor.", apierrors.UserMessage(err))
	})

	first := s.login(t, session.RoleVisitor, app.SeedVisitorEmail)

	t.Run("profile and token balance", func(t *testing.T) {
		profile, err := svc.Visitors.Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "visitor", profile.Username)

		_, err = svc.Posts.Create(ctx, "Sunset over the old port", &client.File{Filename: "port.jpg", Content: []byte("jpeg")})
		require.NoError(t, err)

		balance, err := svc.Visitors.TokenBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, balance)

		posts, err := svc.Posts.List(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "visitor", posts[0].User)
		assert.True(t, posts[0].IsOwner)

		var anonymous []services.Post
		_, err = s.deps.Client.Do(ctx, &client.Request{Method: http.MethodGet, Path: "posts/", Anonymous: true}, &anonymous)
		require.NoError(t, err)
		require.Len(t, anonymous, 1)
		assert.False(t, anonymous[0].IsOwner)
	})

	t.Run("expired access token is refreshed once", func(t *testing.T) {
		s.clock.Advance(6 * time.Minute)

		mine, err := svc.Visitors.MyPosts(ctx)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		cred, err := s.store.Get(ctx, session.RoleVisitor)
		require.NoError(t, err)
		assert.NotEqual(t, first.AccessToken, cred.AccessToken)
		assert.Equal(t, first.RefreshToken, cred.RefreshToken)
	})

	t.Run("expired refresh token ends the session", func(t *testing.T) {
		s.clock.Advance(2 * time.Hour)

		_, err := svc.Visitors.Profile(ctx)
		require.Error(t, err)
		assert.True(t, apierrors.IsSessionExpired(err))

		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "/login/visitor", apiErr.LoginPath)

		_, err = s.store.Get(ctx, session.RoleVisitor)
		assert.ErrorIs(t, err, session.ErrCredentialNotFound)
	})
}

func TestMultiRoleSessionAgainstBackend(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := s.deps.Services

	s.login(t, session.RoleVisitor, app.SeedVisitorEmail)
	s.login(t, session.RoleAdmin, app.SeedAdminEmail)

	sess, err := s.deps.Client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Session{Authenticated: true, Role: session.RoleVisitor}, sess)

	t.Run("admin calls pin the admin token", func(t *testing.T) {
		users, err := svc.Admin.Users(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 3)

		stats, err := svc.Admin.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalVisitors)
	})

	t.Run("visitor token is refused by admin endpoints", func(t *testing.T) {
		_, err := s.deps.Client.Do(ctx, &client.Request{Method: http.MethodGet, Path: "admin/users/"}, nil)
		require.Error(t, err)
		assert.Equal(t, apierrors.TypeNetworkOrServer, apierrors.TypeOf(err))
		assert.Equal(t, "You do not have permission to perform this action.", apierrors.UserMessage(err))
	})

	t.Run("shell gates follow role slots", func(t *testing.T) {
		nav, err := s.deps.Shell.Navigate(ctx, "/admin-dashboard")
		require.NoError(t, err)
		assert.Equal(t, shell.NavigationRender, nav.Kind)

		nav, err = s.deps.Shell.Navigate(ctx, "/dashboard/business")
		require.NoError(t, err)
		assert.Equal(t, shell.NavigationRedirect, nav.Kind)
		assert.Equal(t, "/login/business", nav.Path)
	})

	t.Run("logout empties every slot", func(t *testing.T) {
		nav, err := s.deps.Shell.Logout(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/", nav.Path)

		sess, err := s.deps.Client.CurrentSession(ctx)
		require.NoError(t, err)
		assert.False(t, sess.Authenticated)

		_, err = svc.Admin.Users(ctx)
		assert.True(t, apierrors.IsSessionExpired(err))
	})
}
