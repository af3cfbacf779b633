package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories/memory"
	"github.com/upb/jaffa-explorer/session"
)

type fixture struct {
	users  *memory.UserRepository
	posts  *memory.PostRepository
	router chi.Router
	now    time.Time
}

// claimsFromHeader stands in for the token middleware: X-Test-User carries the user ID.
func claimsFromHeader(f *fixture) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id int
			if raw := r.Header.Get("X-Test-User"); raw != "" {
				_ = json.Unmarshal([]byte(raw), &id)
				u, err := f.users.GetByID(r.Context(), id)
				if err == nil {
					role := session.RoleVisitor
					if u.IsAdmin {
						role = session.RoleAdmin
					}
					r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.Claims{UserID: id, Email: u.Email, Role: role}))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		users: memory.NewUserRepository(logger),
		posts: memory.NewPostRepository(logger),
		now:   time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}

	profile := NewProfileHandler(f.users, logger)
	posts := NewPostHandler(f.posts, f.users, logger)
	admin := NewAdminHandler(f.users, f.posts, logger, func() time.Time { return f.now })

	r := chi.NewRouter()
	r.Use(claimsFromHeader(f))
	r.Get("/profile/visitor/", profile.HandleGetVisitor)
	r.Put("/profile/visitor/", profile.HandleUpdateVisitor)
	r.Get("/posts/", posts.HandleList)
	r.Get("/posts/{id}/", posts.HandleGet)
	r.Post("/posts/", posts.HandleCreate)
	r.Put("/posts/{id}/", posts.HandleUpdate)
	r.Delete("/posts/{id}/", posts.HandleDelete)
	r.Post("/posts/{id}/like/", posts.HandleLike)
	r.Get("/my-posts/", posts.HandleMine)
	r.Get("/admin/users/", admin.HandleListUsers)
	r.Post("/admin/users/{id}/ban/", admin.HandleBan)
	r.Post("/admin/users/{id}/unban/", admin.HandleUnban)
	r.Delete("/admin/users/{id}/delete/", admin.HandleDeleteUser)
	r.Post("/admin/business/{id}/approve/", admin.HandleApproveBusiness)
	r.Post("/admin/business/{id}/decline/", admin.HandleDeclineBusiness)
	r.Delete("/admin/posts/{id}/delete/", admin.HandleDeletePost)
	r.Get("/admin-dashboard/", admin.HandleDashboard)
	f.router = r
	return f
}

func (f *fixture) addUser(t *testing.T, email string, role session.Role) *models.User {
	t.Helper()
	u, err := models.NewUser(email, email[:3], "jaffa-port", role)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) do(t *testing.T, method, path string, userID int, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != 0 {
		raw, _ := json.Marshal(userID)
		req.Header.Set("X-Test-User", string(raw))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func form(t *testing.T, fields map[string]string, file string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != "" {
		fw, err := mw.CreateFormFile("image", file)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("img"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestVisitorProfile(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "dana@example.com", session.RoleVisitor)

	w := f.do(t, http.MethodGet, "/profile/visitor/", u.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"dan","email":"dana@example.com","phone_number":"","profile_image":null,"profile_image_url":null,"tokens":0}`, w.Body.String())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("phone_number", "050-7654321"))
	fw, err := mw.CreateFormFile("profile_image", "me.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png"))
	require.NoError(t, mw.Close())

	w = f.do(t, http.MethodPut, "/profile/visitor/", u.ID, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code)

	var got VisitorProfileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "050-7654321", got.PhoneNumber)
	require.NotNil(t, got.ProfileImageURL)
	assert.Equal(t, "http://example.com/media/profile_images/me.png", *got.ProfileImageURL)
}

func TestPosts(t *testing.T) {
	f := newFixture(t)
	author := f.addUser(t, "dana@example.com", session.RoleVisitor)
	other := f.addUser(t, "noa@example.com", session.RoleVisitor)

	body, ct := form(t, map[string]string{"content": "Jaffa clock tower"}, "tower.jpg")
	w := f.do(t, http.MethodPost, "/posts/", author.ID, body, ct)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID      int     `json:"id"`
		User    string  `json:"user"`
		Image   *string `json:"image"`
		IsOwner bool    `json:"is_owner"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "dan", created.User)
	assert.True(t, created.IsOwner)
	require.NotNil(t, created.Image)

	t.Run("author earns tokens", func(t *testing.T) {
		u, err := f.users.GetByID(context.Background(), author.ID)
		require.NoError(t, err)
		assert.Equal(t, PostReward, u.Tokens)
	})

	t.Run("blank content", func(t *testing.T) {
		body, ct := form(t, map[string]string{"content": "  "}, "")
		w := f.do(t, http.MethodPost, "/posts/", author.ID, body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"content":["This field may not be blank."]}`, w.Body.String())
	})

	t.Run("public list", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/posts/", 0, nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var list []map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
		require.Len(t, list, 1)
		assert.Equal(t, false, list[0]["is_owner"])
	})

	t.Run("only the author edits", func(t *testing.T) {
		body, ct := form(t, map[string]string{"content": "edited"}, "")
		w := f.do(t, http.MethodPut, "/posts/1/", other.ID, body, ct)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"detail":"You can't edit this post."}`, w.Body.String())

		body, ct = form(t, map[string]string{"content": "edited"}, "")
		w = f.do(t, http.MethodPut, "/posts/1/", author.ID, body, ct)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("like toggles", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/posts/1/like/", other.ID, nil, "")
		assert.JSONEq(t, `{"message":"Liked"}`, w.Body.String())

		w = f.do(t, http.MethodGet, "/posts/1/", 0, nil, "")
		assert.Contains(t, w.Body.String(), `"likes_count":1`)

		w = f.do(t, http.MethodPost, "/posts/1/like/", other.ID, nil, "")
		assert.JSONEq(t, `{"message":"Unliked"}`, w.Body.String())
	})

	t.Run("my posts", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/my-posts/", other.ID, nil, "")
		assert.JSONEq(t, `[]`, w.Body.String())

		w = f.do(t, http.MethodGet, "/my-posts/", author.ID, nil, "")
		assert.Contains(t, w.Body.String(), `"content":"edited"`)
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/posts/99/", 0, nil, "").Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/posts/abc/", 0, nil, "").Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/posts/1/", other.ID, nil, "").Code)
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/posts/1/", author.ID, nil, "").Code)
	})
}

func TestAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root@example.com", session.RoleAdmin)
	visitor := f.addUser(t, "dana@example.com", session.RoleVisitor)
	shop := f.addUser(t, "shop@example.com", session.RoleBusiness)
	spam := f.addUser(t, "spam@example.com", session.RoleBusiness)

	t.Run("list users", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/admin/users/", admin.ID, nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var users []map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
		assert.Len(t, users, 4)
		assert.NotContains(t, w.Body.String(), "PasswordHash")
	})

	t.Run("ban and unban", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/admin/users/2/ban/", admin.ID, nil, "")
		assert.JSONEq(t, `{"detail":"User banned for 30 days."}`, w.Body.String())

		u, err := f.users.GetByID(context.Background(), visitor.ID)
		require.NoError(t, err)
		assert.Equal(t, 29, u.BannedDaysLeft(f.now.Add(time.Hour)))

		w = f.do(t, http.MethodPost, "/admin/users/2/unban/", admin.ID, nil, "")
		assert.JSONEq(t, `{"detail":"User unbanned successfully."}`, w.Body.String())
		u, err = f.users.GetByID(context.Background(), visitor.ID)
		require.NoError(t, err)
		assert.Nil(t, u.IsBannedUntil)
	})

	t.Run("approve and decline business", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/admin/business/3/approve/", admin.ID, nil, "")
		assert.JSONEq(t, `{"message":"Business account approved"}`, w.Body.String())
		u, err := f.users.GetByID(context.Background(), shop.ID)
		require.NoError(t, err)
		assert.True(t, u.IsApproved)

		w = f.do(t, http.MethodPost, "/admin/business/2/approve/", admin.ID, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = f.do(t, http.MethodPost, "/admin/business/4/decline/", admin.ID, nil, "")
		assert.JSONEq(t, `{"message":"Business account declined and deleted"}`, w.Body.String())
		_, err = f.users.GetByID(context.Background(), spam.ID)
		assert.Error(t, err)
	})

	t.Run("dashboard", func(t *testing.T) {
		require.NoError(t, f.posts.Create(context.Background(), &models.Post{AuthorID: visitor.ID, Content: "hi"}))

		w := f.do(t, http.MethodGet, "/admin-dashboard/", admin.ID, nil, "")
		assert.JSONEq(t, `{"total_users":3,"total_visitors":1,"total_businesses":1,"total_sales":0,"total_favorites":0,"total_posts":1}`, w.Body.String())
	})

	t.Run("delete post and user", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/admin/posts/1/delete/", admin.ID, nil, "")
		assert.JSONEq(t, `{"detail":"Post deleted successfully."}`, w.Body.String())

		w = f.do(t, http.MethodDelete, "/admin/posts/1/delete/", admin.ID, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = f.do(t, http.MethodDelete, "/admin/users/2/delete/", admin.ID, nil, "")
		assert.JSONEq(t, `{"message":"User deleted"}`, w.Body.String())

		w = f.do(t, http.MethodDelete, "/admin/users/2/delete/", admin.ID, nil, "")
		assert.JSONEq(t, `{"detail":"User not found"}`, w.Body.String())
	})
}
