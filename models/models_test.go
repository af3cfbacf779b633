package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/jaffa-explorer/session"
)

func newTestUser(t *testing.T, role session.Role) *User {
	t.Helper()
	u, err := NewUser("dana@example.com", "dana", "jaffa-port", role)
	require.NoError(t, err)
	return u
}

// User tests
func TestNewUser(t *testing.T) {
	t.Run("visitor", func(t *testing.T) {
		u := newTestUser(t, session.RoleVisitor)

		assert.True(t, u.IsVisitor)
		assert.False(t, u.IsBusiness)
		assert.True(t, u.IsActive)
		assert.True(t, u.IsApproved)
		assert.False(t, u.CreatedAt.IsZero())
		assert.NotEqual(t, "jaffa-port", string(u.PasswordHash))
	})

	t.Run("business starts unapproved", func(t *testing.T) {
		u := newTestUser(t, session.RoleBusiness)

		assert.True(t, u.IsBusiness)
		assert.False(t, u.IsApproved)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := NewUser("x@example.com", "x", "pw", session.Role("guest"))
		assert.Error(t, err)
	})
}

func TestUser_CheckPassword(t *testing.T) {
	u := newTestUser(t, session.RoleVisitor)

	assert.True(t, u.CheckPassword("jaffa-port"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestUser_JSONHidesSecrets(t *testing.T) {
	u := newTestUser(t, session.RoleAdmin)
	u.Tokens = 40

	data, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "PasswordHash")
	assert.NotContains(t, string(data), "tokens")
	assert.Contains(t, string(data), `"is_admin":true`)
}

func TestUser_BannedDaysLeft(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := newTestUser(t, session.RoleVisitor)

	assert.Equal(t, -1, u.BannedDaysLeft(now))

	until := now.Add(72*time.Hour + time.Hour)
	u.IsBannedUntil = &until
	assert.Equal(t, 3, u.BannedDaysLeft(now))

	past := now.Add(-time.Hour)
	u.IsBannedUntil = &past
	assert.Equal(t, -1, u.BannedDaysLeft(now))
}

func TestCanLogin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	banned := now.Add(48*time.Hour + time.Minute)

	tests := []struct {
		name    string
		role    session.Role
		build   func(u *User)
		nilUser bool
		pw      string
		want    string
	}{
		{name: "visitor ok", role: session.RoleVisitor, pw: "jaffa-port"},
		{name: "visitor wrong password", role: session.RoleVisitor, pw: "nope", want: ErrNoActiveAccount.Error()},
		{name: "visitor unknown email", role: session.RoleVisitor, nilUser: true, want: ErrNoActiveAccount.Error()},
		{name: "visitor banned", role: session.RoleVisitor, pw: "jaffa-port", build: func(u *User) { u.IsBannedUntil = &banned }, want: "Your account is banned for 2 more day(s)."},
		{name: "visitor not verified", role: session.RoleVisitor, pw: "jaffa-port", build: func(u *User) { u.IsActive = false }, want: ErrEmailNotVerified.Error()},
		{name: "business through visitor login", role: session.RoleVisitor, pw: "jaffa-port", build: func(u *User) { u.IsVisitor = false; u.IsBusiness = true }, want: ErrNotVisitor.Error()},
		{name: "business ok", role: session.RoleBusiness, pw: "jaffa-port", build: func(u *User) { u.IsBusiness = true }},
		{name: "business unknown email", role: session.RoleBusiness, nilUser: true, want: ErrNoBusinessUser.Error()},
		{name: "business pending", role: session.RoleBusiness, pw: "jaffa-port", build: func(u *User) { u.IsBusiness = true; u.IsApproved = false }, want: ErrBusinessPending.Error()},
		{name: "visitor through business login", role: session.RoleBusiness, pw: "jaffa-port", want: ErrNotBusiness.Error()},
		{name: "admin ok", role: session.RoleAdmin, pw: "jaffa-port", build: func(u *User) { u.IsAdmin = true }},
		{name: "admin wrong flag", role: session.RoleAdmin, pw: "jaffa-port", want: ErrNotAdmin.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u *User
			if !tt.nilUser {
				u = newTestUser(t, session.RoleVisitor)
				if tt.build != nil {
					tt.build(u)
				}
			}

			err := CanLogin(u, tt.pw, tt.role, now)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

// Post tests
func TestPost_ViewAndLikes(t *testing.T) {
	p := &Post{ID: 1, AuthorID: 7, User: "dana", Content: "Clock tower at dusk"}

	assert.True(t, p.ToggleLike(9))
	assert.True(t, p.ToggleLike(7))

	view := p.View(7)
	assert.True(t, view.IsOwner)
	assert.Equal(t, 2, view.LikesCount)

	assert.False(t, p.ToggleLike(9))
	assert.Equal(t, 1, p.View(0).LikesCount)
	assert.False(t, p.View(0).IsOwner)

	data, err := json.Marshal(p.View(9))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"Clock tower at dusk"`)
	assert.Contains(t, string(data), `"comments":[]`)
}
