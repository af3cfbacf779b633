package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/session"
)

// RefreshEndpoint exchanges a refresh token for a new access token.
const RefreshEndpoint = "token/refresh/"

// LoginCredentials is the body posted to a role's login endpoint.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// CurrentSession resolves who is signed in. It only reads the store.
func (c *Client) CurrentSession(ctx context.Context) (session.Session, error) {
	sess, _, err := session.Resolve(ctx, c.store, c.precedence)
	return sess, err
}

// Login posts credentials to the role's login endpoint and stores the
// returned tokens in that role's slot. Rejected credentials yield
// AuthenticationFailed and leave the store untouched.
func (c *Client) Login(ctx context.Context, role session.Role, creds LoginCredentials) (*session.Credential, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("login: invalid role %q", role)
	}

	var pair tokenPair
	_, err := c.Do(ctx, &Request{
		Method:    http.MethodPost,
		Path:      role.LoginEndpoint(),
		Body:      creds,
		Anonymous: true,
	}, &pair)
	if err != nil {
		apiErr, ok := apierrors.As(err)
		if ok && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			c.metrics.ObserveLogin(role, OutcomeRejected)
			msg := apiErr.Message
			if apiErr.Type == apierrors.TypeSessionExpired && msg == apierrors.DefaultSessionMessage {
				msg = apierrors.DefaultLoginMessage
			}
			return nil, &apierrors.Error{
				Type:       apierrors.TypeAuthenticationFailed,
				Message:    msg,
				StatusCode: apiErr.StatusCode,
				Fields:     apiErr.Fields,
				Err:        err,
			}
		}
		c.metrics.ObserveLogin(role, OutcomeError)
		return nil, err
	}
	if pair.Access == "" {
		c.metrics.ObserveLogin(role, OutcomeError)
		return nil, apierrors.NetworkOrServer(http.StatusOK, nil, errors.New("login response has no access token"))
	}

	cred := &session.Credential{
		Role:         role,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		UpdatedAt:    c.now().UTC(),
	}
	if err := c.store.Put(session.WithReason(ctx, session.ReasonLogin), cred); err != nil {
		return nil, fmt.Errorf("store %s credential: %w", role, err)
	}
	if err := c.store.SetRoleHint(ctx, role); err != nil {
		c.logger.Warn("failed to record role hint", zap.String("role", role.String()), zap.Error(err))
	}

	c.metrics.ObserveLogin(role, OutcomeSuccess)
	c.logger.Info("logged in", zap.String("role", role.String()))
	return cred, nil
}

// Logout empties every role slot and the role hint. Safe to repeat.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.logger.Info("logged out")
	return nil
}

// Refresh exchanges role's refresh token for a new access token. The stored
// refresh token is replaced only when the backend returns a new one. A
// rejected refresh token is a permanent loss: the role's slot is emptied and
// SessionExpired is returned. Transport and server failures leave the slot
// alone.
func (c *Client) Refresh(ctx context.Context, role session.Role) (*session.Credential, error) {
	cred, err := c.store.Get(ctx, role)
	if errors.Is(err, session.ErrCredentialNotFound) {
		return nil, apierrors.SessionExpired(role, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s credential: %w", role, err)
	}
	if !cred.CanRefresh() {
		return nil, apierrors.SessionExpired(role, errors.New("no refresh token"))
	}

	var pair tokenPair
	_, err = c.Do(ctx, &Request{
		Method:    http.MethodPost,
		Path:      RefreshEndpoint,
		Body:      map[string]string{"refresh": cred.RefreshToken},
		Anonymous: true,
	}, &pair)
	if err != nil {
		apiErr, ok := apierrors.As(err)
		if ok && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			c.metrics.ObserveRefresh(role, OutcomeRejected)
			c.logger.Warn("refresh token rejected", zap.String("role", role.String()))
			return nil, c.expire(ctx, role, err)
		}
		c.metrics.ObserveRefresh(role, OutcomeError)
		c.logger.Warn("refresh failed", zap.String("role", role.String()), zap.Error(err))
		return nil, err
	}
	if pair.Access == "" {
		c.metrics.ObserveRefresh(role, OutcomeError)
		return nil, apierrors.NetworkOrServer(http.StatusOK, nil, errors.New("refresh response has no access token"))
	}

	next := cred.WithAccessToken(pair.Access, pair.Refresh, c.now().UTC())
	if err := c.store.Put(session.WithReason(ctx, session.ReasonRefresh), &next); err != nil {
		return nil, fmt.Errorf("store refreshed %s credential: %w", role, err)
	}
	c.metrics.ObserveRefresh(role, OutcomeSuccess)
	c.logger.Debug("access token refreshed", zap.String("role", role.String()))
	return &next, nil
}

// Authenticated sends req with role's token. A 401 triggers exactly one
// refresh and one retry; if the slot is empty, has no refresh token, the
// refresh is rejected, or the retry is also 401, the slot is emptied and
// SessionExpired (with the role's login path) is returned.
func (c *Client) Authenticated(ctx context.Context, role session.Role, req *Request, out any) (*Response, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("authenticated request: invalid role %q", role)
	}

	cred, err := c.store.Get(ctx, role)
	if errors.Is(err, session.ErrCredentialNotFound) || (err == nil && cred.AccessToken == "") {
		return nil, apierrors.SessionExpired(role, session.ErrCredentialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s credential: %w", role, err)
	}

	pinned := *req
	pinned.Pin = role
	pinned.Anonymous = false

	resp, err := c.Do(ctx, &pinned, out)
	if !isUnauthorized(err) {
		return resp, err
	}

	if !cred.CanRefresh() {
		return nil, c.expire(ctx, role, err)
	}
	if _, err := c.Refresh(ctx, role); err != nil {
		return nil, err
	}

	resp, err = c.Do(ctx, &pinned, out)
	if isUnauthorized(err) {
		return nil, c.expire(ctx, role, err)
	}
	return resp, err
}

// expire empties role's slot and reports the loss.
func (c *Client) expire(ctx context.Context, role session.Role, cause error) error {
	if err := c.store.Delete(ctx, role); err != nil {
		c.logger.Warn("failed to drop expired credential", zap.String("role", role.String()), zap.Error(err))
	}
	c.metrics.ObserveSessionLoss(role)
	c.logger.Info("session expired", zap.String("role", role.String()))
	return apierrors.SessionExpired(role, cause)
}

func isUnauthorized(err error) bool {
	apiErr, ok := apierrors.As(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}
