package models

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/upb/jaffa-explorer/session"
)

// Login rejection messages, as the backend words them
var (
	ErrNoActiveAccount  = errors.New("No active account found with the given credentials")
	ErrEmailNotVerified = errors.New("Please verify your email first.")
	ErrNotVisitor       = errors.New("Access denied: Not a visitor.")
	ErrNoBusinessUser   = errors.New("No user found with this email.")
	ErrBusinessInactive = errors.New("Your account is not active.")
	ErrBusinessPending  = errors.New("Your business account has not been approved yet.")
	ErrNotBusiness      = errors.New("Access denied: Not a business.")
	ErrNotAdmin         = errors.New("Invalid credentials or not an admin.")
)

// User is an account of the dev backend. One account may carry several
// role flags; each login endpoint checks its own.
type User struct {
	ID            int        `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PhoneNumber   string     `json:"phone_number"`
	ProfileImage  *string    `json:"profile_image"`
	PasswordHash  []byte     `json:"-"`
	IsVisitor     bool       `json:"is_visitor"`
	IsBusiness    bool       `json:"is_business"`
	IsAdmin       bool       `json:"is_admin"`
	IsActive      bool       `json:"is_active"`
	IsApproved    bool       `json:"is_approved"`
	IsBannedUntil *time.Time `json:"is_banned_until"`
	Tokens        int        `json:"-"`
	VerifyToken   string     `json:"-"`
	CreatedAt     time.Time  `json:"-"`
	UpdatedAt     time.Time  `json:"-"`
}

// NewUser creates a User for role with a bcrypt hash of password. Visitors
// and admins start active; businesses start active but unapproved.
func NewUser(email, username, password string, role session.Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now()
	return &User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsVisitor:    role == session.RoleVisitor,
		IsBusiness:   role == session.RoleBusiness,
		IsAdmin:      role == session.RoleAdmin,
		IsActive:     true,
		IsApproved:   role != session.RoleBusiness,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword reports whether password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// HasRole reports whether the account carries the role flag
func (u *User) HasRole(role session.Role) bool {
	switch role {
	case session.RoleVisitor:
		return u.IsVisitor
	case session.RoleBusiness:
		return u.IsBusiness
	case session.RoleAdmin:
		return u.IsAdmin
	}
	return false
}

// BannedDaysLeft returns the whole days left on a ban, or -1 when not banned.
func (u *User) BannedDaysLeft(now time.Time) int {
	if u.IsBannedUntil == nil || !u.IsBannedUntil.After(now) {
		return -1
	}
	return int(u.IsBannedUntil.Sub(now) / (24 * time.Hour))
}

// CanLogin applies the login rules of role's endpoint. A nil user means no
// account exists for the email. The returned error's text is shown to the
// user as is.
func CanLogin(u *User, password string, role session.Role, now time.Time) error {
	switch role {
	case session.RoleVisitor:
		if u == nil || !u.CheckPassword(password) {
			return ErrNoActiveAccount
		}
		if days := u.BannedDaysLeft(now); days >= 0 {
			return fmt.Errorf("Your account is banned for %d more day(s).", days)
		}
		if !u.IsActive {
			return ErrEmailNotVerified
		}
		if !u.IsVisitor {
			return ErrNotVisitor
		}
	case session.RoleBusiness:
		if u == nil {
			return ErrNoBusinessUser
		}
		if !u.IsActive {
			return ErrBusinessInactive
		}
		if !u.IsApproved {
			return ErrBusinessPending
		}
		if !u.IsBusiness {
			return ErrNotBusiness
		}
		if !u.CheckPassword(password) {
			return ErrNoActiveAccount
		}
	case session.RoleAdmin:
		if u == nil || !u.CheckPassword(password) || !u.IsAdmin {
			return ErrNotAdmin
		}
	default:
		return fmt.Errorf("invalid role %q", role)
	}
	return nil
}
