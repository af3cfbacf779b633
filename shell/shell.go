// Package shell is the application shell around the request client: it owns
// the route table, recomputes the session on every navigation and store
// change, ties page loads to the current view, and turns failures into
// messages, notices or redirects.
package shell

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/internal/liveness"
	"github.com/upb/jaffa-explorer/services"
	"github.com/upb/jaffa-explorer/session"
)

// NavigationKind is the result of a navigation.
type NavigationKind string

const (
	NavigationRender   NavigationKind = "render"
	NavigationRedirect NavigationKind = "redirect"
	NavigationNotFound NavigationKind = "not_found"
)

// Navigation describes the page that ended up open.
type Navigation struct {
	Kind      NavigationKind
	Requested string
	Path      string
	Route     Route
	Params    map[string]string
	Session   session.Session
}

// State is a snapshot of what the shell shows.
type State struct {
	Path    string
	Route   Route
	Params  map[string]string
	Session session.Session

	// Visitor token balance; valid when HasTokens.
	Tokens    int
	HasTokens bool
}

// Options configures New.
type Options struct {
	Routes []Route // defaults to DefaultRoutes
	Logger *zap.Logger
}

// Shell is safe for concurrent use.
type Shell struct {
	api    *client.Client
	svc    *services.Services
	table  *Table
	logger *zap.Logger

	view    liveness.Tracker
	balance liveness.Tracker

	mu          sync.RWMutex
	state       State
	ctx         context.Context
	unsubscribe func()
	pending     []*liveness.Pending
}

// New creates a shell. Call Start to follow store changes.
func New(api *client.Client, svc *services.Services, opts Options) (*Shell, error) {
	if api == nil || svc == nil {
		return nil, fmt.Errorf("shell: client and services are required")
	}
	routes := opts.Routes
	if routes == nil {
		routes = DefaultRoutes
	}
	table, err := NewTable(routes)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		api:    api,
		svc:    svc,
		table:  table,
		logger: logger,
		state:  State{Session: session.Anonymous},
	}, nil
}

// Routes exposes the route table.
func (s *Shell) Routes() *Table {
	return s.table
}

// Start subscribes to store changes and loads the initial session. Every
// change recomputes the session and re-reads the visitor token balance.
func (s *Shell) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return fmt.Errorf("shell: already started")
	}
	s.ctx = ctx
	s.unsubscribe = s.api.Store().Subscribe(s.onStoreEvent)
	s.mu.Unlock()

	if err := s.recompute(ctx); err != nil {
		return err
	}
	s.reloadBalance()
	return nil
}

// Stop unsubscribes, abandons pending loads and waits for balance reloads
// to finish.
func (s *Shell) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.view.Close()
	s.balance.Close()
	for _, p := range pending {
		p.Wait()
	}
}

// State returns a snapshot.
func (s *Shell) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Params = copyParams(s.state.Params)
	return st
}

// Navigate opens path. The previous view's pending loads are abandoned,
// the session is recomputed, and a gated route the session may not open
// redirects to the matching login page.
func (s *Shell) Navigate(ctx context.Context, path string) (Navigation, error) {
	s.view.Advance()

	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}

	sess, err := s.api.CurrentSession(ctx)
	if err != nil {
		return Navigation{}, fmt.Errorf("resolve session: %w", err)
	}
	states, err := session.States(ctx, s.api.Store())
	if err != nil {
		return Navigation{}, fmt.Errorf("read session states: %w", err)
	}

	nav := Navigation{Kind: NavigationRender, Requested: path, Path: path, Session: sess}
	route, params, ok := s.table.Match(path)
	switch {
	case !ok:
		nav.Kind = NavigationNotFound
	case !route.Allows(sess, states):
		nav.Kind = NavigationRedirect
		nav.Path = route.LoginPath()
		route, params, _ = s.table.Match(nav.Path)
		s.logger.Info("route requires sign-in",
			zap.String("path", path),
			zap.String("redirect", nav.Path),
		)
	}
	nav.Route = route
	nav.Params = params

	s.mu.Lock()
	s.state.Path = nav.Path
	s.state.Route = route
	s.state.Params = copyParams(params)
	s.state.Session = sess
	s.mu.Unlock()

	return nav, nil
}

// Logout clears every credential and returns to the home page.
func (s *Shell) Logout(ctx context.Context) (Navigation, error) {
	if err := s.api.Logout(ctx); err != nil {
		return Navigation{}, err
	}
	return s.Navigate(ctx, "/")
}

// HandleError maps err to an outcome. A redirect also recomputes the
// session, since the failed call may have emptied a slot.
func (s *Shell) HandleError(ctx context.Context, err error) Outcome {
	out := Classify(err)
	switch out.Kind {
	case OutcomeNone:
		return out
	case OutcomeRedirect:
		if rerr := s.recompute(ctx); rerr != nil {
			s.logger.Warn("failed to recompute session", zap.Error(rerr))
		}
	}
	s.logger.Debug("call failed", zap.String("outcome", string(out.Kind)), zap.Error(err))
	return out
}

// Load runs fn for the current view and hands the result to apply only if
// the user has not navigated away in the meantime.
func Load[T any](ctx context.Context, s *Shell, fn func(ctx context.Context) (T, error), apply func(T, error)) *liveness.Pending {
	return liveness.Run(ctx, &s.view, fn, apply)
}

// Services returns the endpoint catalogue.
func (s *Shell) Services() *services.Services {
	return s.svc
}

func (s *Shell) onStoreEvent(ev session.Event) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	s.logger.Debug("session store changed", zap.String("kind", string(ev.Kind)), zap.String("role", ev.Role.String()))
	if err := s.recompute(ctx); err != nil {
		s.logger.Warn("failed to recompute session", zap.Error(err))
	}
	if ev.Kind == session.EventPut && ev.Reason == session.ReasonRefresh {
		// Our own refresh. The balance is unchanged.
		return
	}
	if ev.Role == session.RoleNone || ev.Role == session.RoleVisitor {
		s.reloadBalance()
	}
}

func (s *Shell) recompute(ctx context.Context) error {
	sess, err := s.api.CurrentSession(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Session = sess
	s.mu.Unlock()
	return nil
}

// reloadBalance re-reads the visitor token balance. Only the latest reload
// is applied.
func (s *Shell) reloadBalance() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil || s.balance.Closed() {
		return
	}

	state, err := session.StateOf(ctx, s.api.Store(), session.RoleVisitor)
	if err != nil || state != session.StateActive {
		s.balance.Advance()
		s.mu.Lock()
		s.state.Tokens, s.state.HasTokens = 0, false
		s.mu.Unlock()
		return
	}

	s.balance.Advance()
	p := liveness.Run(ctx, &s.balance, s.svc.Visitors.TokenBalance, func(tokens int, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.logger.Warn("failed to load token balance", zap.Error(err))
			s.state.Tokens, s.state.HasTokens = 0, false
			return
		}
		s.state.Tokens, s.state.HasTokens = tokens, true
	})

	s.mu.Lock()
	live := s.pending[:0]
	for _, old := range s.pending {
		select {
		case <-old.Done():
		default:
			live = append(live, old)
		}
	}
	s.pending = append(live, p)
	s.mu.Unlock()
}

func copyParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
