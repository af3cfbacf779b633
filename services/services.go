// Package services is the typed endpoint catalogue page views call. Every
// call goes through the request client: public endpoints use Do, role-bound
// endpoints use Authenticated so they share refresh-then-retry-once.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// Services groups the endpoint families.
type Services struct {
	Accounts   *AccountService
	Visitors   *VisitorService
	Businesses *BusinessService
	Posts      *PostService
	Sales      *SaleService
	Offers     *OfferService
	Ratings    *RatingService
	Contact    *ContactService
	Admin      *AdminService
}

// New creates every endpoint family over api.
func New(api *client.Client) *Services {
	b := base{api: api}
	return &Services{
		Accounts:   &AccountService{b},
		Visitors:   &VisitorService{b},
		Businesses: &BusinessService{b},
		Posts:      &PostService{b},
		Sales:      &SaleService{b},
		Offers:     &OfferService{b},
		Ratings:    &RatingService{b},
		Contact:    &ContactService{b},
		Admin:      &AdminService{b},
	}
}

type base struct {
	api *client.Client
}

// public sends a request decorated by precedence.
func (b base) public(ctx context.Context, req *client.Request, out any) (*client.Response, error) {
	return b.api.Do(ctx, req, out)
}

// as sends a request bound to role.
func (b base) as(ctx context.Context, role session.Role, req *client.Request, out any) (*client.Response, error) {
	return b.api.Authenticated(ctx, role, req, out)
}

// asCurrent sends a request bound to whichever role is signed in. With no
// session it fails with SessionExpired pointing at the visitor login.
func (b base) asCurrent(ctx context.Context, req *client.Request, out any) (*client.Response, error) {
	sess, err := b.api.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated {
		return nil, apierrors.SessionExpired(session.RoleVisitor, session.ErrCredentialNotFound)
	}
	return b.as(ctx, sess.Role, req, out)
}

func get(path string) *client.Request {
	return &client.Request{Method: http.MethodGet, Path: path}
}

func post(path string, body any) *client.Request {
	return &client.Request{Method: http.MethodPost, Path: path, Body: body}
}

func put(path string, body any) *client.Request {
	return &client.Request{Method: http.MethodPut, Path: path, Body: body}
}

func del(path string) *client.Request {
	return &client.Request{Method: http.MethodDelete, Path: path}
}

// withForm sends req as multipart.
func withForm(req *client.Request, form *client.Form) *client.Request {
	req.Body = nil
	req.Form = form
	return req
}

func id(n int) string {
	return strconv.Itoa(n)
}

func pathf(format string, args ...any) string {
	for i, a := range args {
		if s, ok := a.(string); ok {
			args[i] = url.PathEscape(s)
		}
	}
	return fmt.Sprintf(format, args...)
}
