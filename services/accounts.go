package services

import (
	"context"
	"strconv"

	"github.com/upb/jaffa-explorer/client"
)

// AccountService covers registration, password reset and email
// verification. All endpoints are anonymous.
type AccountService struct{ base }

type VisitorRegistration struct {
	Username     string
	Email        string
	Password     string
	Password2    string
	PhoneNumber  string
	ProfileImage *client.File
}

type BusinessRegistration struct {
	Username     string
	Email        string
	Password     string
	Password2    string
	BusinessName string
	Category     string
	Description  string
	Phone        string
	Location     string
	InJaffa      bool
}

// RegisterVisitor creates a visitor account. The backend emails a
// verification link before the account can log in.
func (s *AccountService) RegisterVisitor(ctx context.Context, r VisitorRegistration) (*Message, error) {
	form := client.NewForm().
		Set("username", r.Username).
		Set("email", r.Email).
		Set("password", r.Password).
		Set("password2", r.Password2).
		Set("phone_number", r.PhoneNumber)
	if r.ProfileImage != nil {
		img := *r.ProfileImage
		img.Field = "profile_image"
		form.Files = append(form.Files, img)
	}

	req := withForm(post("register/visitor/", nil), form)
	req.Anonymous = true
	var out Message
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterBusiness creates a business account pending admin approval.
func (s *AccountService) RegisterBusiness(ctx context.Context, r BusinessRegistration) (*Message, error) {
	form := client.NewForm().
		Set("username", r.Username).
		Set("email", r.Email).
		Set("password", r.Password).
		Set("password2", r.Password2).
		Set("business_name", r.BusinessName).
		Set("category", r.Category).
		Set("description", r.Description).
		Set("phone", r.Phone).
		Set("location", r.Location).
		Set("is_in_jaffa", strconv.FormatBool(r.InJaffa))

	req := withForm(post("register/business/", nil), form)
	req.Anonymous = true
	var out Message
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks the backend to email a reset link.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) (*Message, error) {
	req := post("password/forgot/", map[string]string{"email": email})
	req.Anonymous = true
	var out Message
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using the emailed uid and token.
func (s *AccountService) ResetPassword(ctx context.Context, uid, token, password, password2 string) (*Message, error) {
	req := post(pathf("password/reset/%s/%s/", uid, token), map[string]string{
		"password":  password,
		"password2": password2,
	})
	req.Anonymous = true
	var out Message
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail activates an account from the emailed link.
func (s *AccountService) VerifyEmail(ctx context.Context, uid, token string) (*Message, error) {
	req := get(pathf("verify-email/%s/%s/", uid, token))
	req.Anonymous = true
	var out Message
	if _, err := s.public(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
