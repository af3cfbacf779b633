package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/utils"
)

// BanDuration is how long an admin ban lasts
const BanDuration = 30 * 24 * time.Hour

// DashboardStats is the body of admin-dashboard/
type DashboardStats struct {
	TotalUsers      int `json:"total_users"`
	TotalVisitors   int `json:"total_visitors"`
	TotalBusinesses int `json:"total_businesses"`
	TotalSales      int `json:"total_sales"`
	TotalFavorites  int `json:"total_favorites"`
	TotalPosts      int `json:"total_posts"`
}

// AdminHandler serves the admin-only user moderation endpoints
type AdminHandler struct {
	users  repositories.UserRepository
	posts  repositories.PostRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminHandler creates a new AdminHandler. now may be nil.
func NewAdminHandler(users repositories.UserRepository, posts repositories.PostRepository, logger *zap.Logger, now func() time.Time) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{users: users, posts: posts, logger: logger, now: now}
}

// HandleListUsers handles GET /admin/users/
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	_ = utils.WriteOK(w, users)
}

// HandleBan handles POST /admin/users/{id}/ban/
func (h *AdminHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "User not found")
		return
	}
	until := h.now().Add(BanDuration)
	user.IsBannedUntil = &until
	if err := h.users.Update(r.Context(), user); err != nil {
		writeRepoError(w, r, h.logger, err, "User not found")
		return
	}

	h.logger.Info("user banned", zap.Int("user_id", id), zap.Time("until", until))
	_ = utils.WriteOK(w, utils.DetailResponse{Detail: "User banned for 30 days."})
}

// HandleUnban handles POST /admin/users/{id}/unban/
func (h *AdminHandler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "User not found")
		return
	}
	user.IsBannedUntil = nil
	if err := h.users.Update(r.Context(), user); err != nil {
		writeRepoError(w, r, h.logger, err, "User not found")
		return
	}
	_ = utils.WriteOK(w, utils.DetailResponse{Detail: "User unbanned successfully."})
}

// HandleDeleteUser handles DELETE /admin/users/{id}/delete/
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeRepoError(w, r, h.logger, err, "User not found")
		return
	}
	_ = utils.WriteMessage(w, "User deleted")
}

// HandleApproveBusiness handles POST /admin/business/{id}/approve/
func (h *AdminHandler) HandleApproveBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil || !user.IsBusiness {
		_ = utils.WriteNotFound(w, "Business not found")
		return
	}
	user.IsApproved = true
	user.IsActive = true
	if err := h.users.Update(r.Context(), user); err != nil {
		writeRepoError(w, r, h.logger, err, "Business not found")
		return
	}
	_ = utils.WriteMessage(w, "Business account approved")
}

// HandleDeclineBusiness handles POST /admin/business/{id}/decline/
func (h *AdminHandler) HandleDeclineBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil || !user.IsBusiness {
		_ = utils.WriteNotFound(w, "Business not found")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeRepoError(w, r, h.logger, err, "Business not found")
		return
	}
	_ = utils.WriteMessage(w, "Business account declined and deleted")
}

// HandleDeletePost handles DELETE /admin/posts/{id}/delete/
func (h *AdminHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		writeRepoError(w, r, h.logger, err, "Post not found.")
		return
	}
	_ = utils.WriteOK(w, utils.DetailResponse{Detail: "Post deleted successfully."})
}

// HandleDashboard handles GET /admin-dashboard/
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.users.List(ctx)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	visitors, err := h.users.CountByRole(ctx, session.RoleVisitor)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	businesses, err := h.users.CountByRole(ctx, session.RoleBusiness)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	posts, err := h.posts.List(ctx)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}

	_ = utils.WriteOK(w, DashboardStats{
		TotalUsers:      len(users),
		TotalVisitors:   visitors,
		TotalBusinesses: businesses,
		TotalPosts:      len(posts),
	})
}
