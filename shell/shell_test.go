package shell

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/services"
	"github.com/upb/jaffa-explorer/session"
)

func newShell(t *testing.T, handler http.HandlerFunc) (*Shell, *session.MemoryStore) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	api, err := client.New(store, client.Options{BaseURL: srv.URL + "/api/", Logger: zap.NewNop()})
	require.NoError(t, err)

	sh, err := New(api, services.New(api), Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	return sh, store
}

func signIn(t *testing.T, store session.Store, role session.Role, token string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &session.Credential{Role: role, AccessToken: token}))
}

func TestTable_Match(t *testing.T) {
	table, err := NewTable(DefaultRoutes)
	require.NoError(t, err)

	tests := []struct {
		path   string
		page   string
		params map[string]string
		found  bool
	}{
		{"/", "home", map[string]string{}, true},
		{"/feed", "feed", map[string]string{}, true},
		{"/feed/", "feed", map[string]string{}, true},
		{"/edit-post/42", "edit-post", map[string]string{"id": "42"}, true},
		{"/reset-password/MQ/abc-123", "reset-password", map[string]string{"uid": "MQ", "token": "abc-123"}, true},
		{"/admin", "admin-panel", map[string]string{}, true},
		{"/nowhere", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			route, params, ok := table.Match(tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.page, route.Page)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestNewTable_Rejects(t *testing.T) {
	_, err := NewTable([]Route{{Pattern: "/a"}, {Pattern: "/a"}})
	assert.Error(t, err)

	_, err = NewTable([]Route{{Pattern: "/admin", Access: AccessRole}})
	assert.Error(t, err)

	_, err = NewTable([]Route{{Pattern: "feed"}})
	assert.Error(t, err)
}

func TestNavigate_Gates(t *testing.T) {
	tests := []struct {
		name     string
		slots    []session.Role
		path     string
		wantKind NavigationKind
		wantPath string
	}{
		{"public anonymous", nil, "/feed", NavigationRender, "/feed"},
		{"visitor page anonymous", nil, "/profile/visitor", NavigationRedirect, "/login/visitor"},
		{"visitor page as visitor", []session.Role{session.RoleVisitor}, "/profile/visitor", NavigationRender, "/profile/visitor"},
		{"business page as visitor", []session.Role{session.RoleVisitor}, "/profile/business", NavigationRedirect, "/login/business"},
		{"admin page as business", []session.Role{session.RoleBusiness}, "/admin", NavigationRedirect, "/login/admin"},
		{"admin page with visitor and admin", []session.Role{session.RoleVisitor, session.RoleAdmin}, "/admin-dashboard", NavigationRender, "/admin-dashboard"},
		{"rate anonymous", nil, "/rate", NavigationRedirect, "/login/visitor"},
		{"rate as business", []session.Role{session.RoleBusiness}, "/rate", NavigationRender, "/rate"},
		{"edit post with query", []session.Role{session.RoleVisitor}, "/edit-post/3?from=feed", NavigationRender, "/edit-post/3"},
		{"unknown", nil, "/missing", NavigationNotFound, "/missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, store := newShell(t, nil)
			for _, role := range tt.slots {
				signIn(t, store, role, string(role)+"-token")
			}

			nav, err := sh.Navigate(context.Background(), tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, nav.Kind)
			assert.Equal(t, tt.wantPath, nav.Path)
			assert.Equal(t, tt.wantPath, sh.State().Path)
		})
	}
}

func TestNavigate_RecomputesSession(t *testing.T) {
	sh, store := newShell(t, nil)
	ctx := context.Background()

	nav, err := sh.Navigate(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, session.Anonymous, nav.Session)

	signIn(t, store, session.RoleBusiness, "b")
	nav, err = sh.Navigate(ctx, "/feed")
	require.NoError(t, err)
	assert.Equal(t, session.Session{Authenticated: true, Role: session.RoleBusiness}, nav.Session)
	assert.Equal(t, "feed", nav.Route.Page)
}

func profileHandler(tokens *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/api/") != "profile/visitor/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"username": "dana", "tokens": tokens.Load()})
	}
}

func TestStart_FollowsStoreChanges(t *testing.T) {
	var tokens atomic.Int64
	tokens.Store(15)
	sh, store := newShell(t, profileHandler(&tokens))
	ctx := context.Background()

	require.NoError(t, sh.Start(ctx))
	defer sh.Stop()
	assert.False(t, sh.State().Session.Authenticated)
	assert.False(t, sh.State().HasTokens)

	signIn(t, store, session.RoleVisitor, "v")
	assert.Equal(t, session.RoleVisitor, sh.State().Session.Role)
	assert.Eventually(t, func() bool {
		st := sh.State()
		return st.HasTokens && st.Tokens == 15
	}, 2*time.Second, 10*time.Millisecond)

	tokens.Store(35)
	signIn(t, store, session.RoleVisitor, "v2")
	assert.Eventually(t, func() bool { return sh.State().Tokens == 35 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, store.Clear(ctx))
	st := sh.State()
	assert.Equal(t, session.Anonymous, st.Session)
	assert.False(t, st.HasTokens)
}

func TestStart_RefreshDoesNotRestartBalance(t *testing.T) {
	var profileCalls, refreshCalls atomic.Int64
	sh, store := newShell(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/api/") {
		case client.RefreshEndpoint:
			refreshCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "fresh"})
		case "profile/visitor/":
			profileCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Token is expired"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"username": "dana", "tokens": 20})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &session.Credential{Role: session.RoleVisitor, AccessToken: "stale", RefreshToken: "R"}))

	require.NoError(t, sh.Start(ctx))
	defer sh.Stop()

	assert.Eventually(t, func() bool {
		st := sh.State()
		return st.HasTokens && st.Tokens == 20
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), profileCalls.Load())
	assert.Equal(t, int64(1), refreshCalls.Load())

	cred, err := store.Get(ctx, session.RoleVisitor)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.AccessToken)
}

func TestStart_Twice(t *testing.T) {
	sh, _ := newShell(t, nil)
	require.NoError(t, sh.Start(context.Background()))
	defer sh.Stop()
	assert.Error(t, sh.Start(context.Background()))
}

func TestLogout(t *testing.T) {
	sh, store := newShell(t, nil)
	ctx := context.Background()
	signIn(t, store, session.RoleVisitor, "v")
	signIn(t, store, session.RoleAdmin, "a")

	_, err := sh.Navigate(ctx, "/admin")
	require.NoError(t, err)

	nav, err := sh.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", nav.Path)
	assert.Equal(t, session.Anonymous, nav.Session)

	nav, err = sh.Navigate(ctx, "/admin")
	require.NoError(t, err)
	assert.Equal(t, NavigationRedirect, nav.Kind)
}

func TestLoad_DiscardsAfterNavigation(t *testing.T) {
	sh, _ := newShell(t, nil)
	ctx := context.Background()
	_, err := sh.Navigate(ctx, "/feed")
	require.NoError(t, err)

	release := make(chan struct{})
	var applied atomic.Bool
	p := Load(ctx, sh, func(ctx context.Context) (string, error) {
		<-release
		return "feed data", nil
	}, func(string, error) { applied.Store(true) })

	_, err = sh.Navigate(ctx, "/sales")
	require.NoError(t, err)
	close(release)

	assert.False(t, p.Wait())
	assert.False(t, applied.Load())
}

func TestLoad_AppliesOnCurrentView(t *testing.T) {
	sh, _ := newShell(t, nil)
	ctx := context.Background()

	var got string
	p := Load(ctx, sh, func(ctx context.Context) (string, error) {
		return "feed data", nil
	}, func(v string, err error) { got = v })

	assert.True(t, p.Wait())
	assert.Equal(t, "feed data", got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Outcome{}},
		{"cancelled", context.Canceled, Outcome{}},
		{"session expired", apierrors.SessionExpired(session.RoleBusiness, nil),
			Outcome{Kind: OutcomeRedirect, Message: apierrors.DefaultSessionMessage, Redirect: "/login/business"}},
		{"validation", apierrors.ValidationFailed([]byte(`{"email":["already registered"]}`)),
			Outcome{Kind: OutcomeMessage, Message: "already registered"}},
		{"login", apierrors.AuthenticationFailed(http.StatusBadRequest, []byte(`{"detail":"Please verify your email first."}`)),
			Outcome{Kind: OutcomeMessage, Message: "Please verify your email first."}},
		{"server", apierrors.NetworkOrServer(http.StatusBadGateway, nil, nil),
			Outcome{Kind: OutcomeNotice, Message: apierrors.DefaultGenericMessage}},
		{"unclassified", errors.New("boom"),
			Outcome{Kind: OutcomeNotice, Message: apierrors.DefaultGenericMessage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHandleError_RedirectRecomputesSession(t *testing.T) {
	sh, store := newShell(t, nil)
	ctx := context.Background()
	signIn(t, store, session.RoleVisitor, "v")
	_, err := sh.Navigate(ctx, "/profile/visitor")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, session.RoleVisitor))
	out := sh.HandleError(ctx, apierrors.SessionExpired(session.RoleVisitor, nil))

	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.Equal(t, "/login/visitor", out.Redirect)
	assert.Equal(t, session.Anonymous, sh.State().Session)
}

func TestVisitorProfileExpiredRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	api, err := client.New(store, client.Options{BaseURL: srv.URL + "/api/", Logger: zap.NewNop()})
	require.NoError(t, err)
	sh, err := New(api, services.New(api), Options{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &session.Credential{Role: session.RoleVisitor, AccessToken: "old", RefreshToken: "r"}))

	_, err = sh.Services().Visitors.Profile(ctx)
	out := sh.HandleError(ctx, err)
	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.Equal(t, "/login/visitor", out.Redirect)

	state, err := session.StateOf(ctx, store, session.RoleVisitor)
	require.NoError(t, err)
	assert.Equal(t, session.StateLoggedOut, state)
}
