package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/utils"
)

// PostReward is the token balance a user earns per published post.
const PostReward = 10

// PostHandler serves the public feed and its owner-only mutations
type PostHandler struct {
	posts  repositories.PostRepository
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts repositories.PostRepository, users repositories.UserRepository, logger *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, users: users, logger: logger}
}

// HandleList handles GET /posts/
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	_ = utils.WriteOK(w, views(posts, viewerID(r)))
}

// HandleMine handles GET /my-posts/
func (h *PostHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	id := viewerID(r)
	posts, err := h.posts.ListByAuthor(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	_ = utils.WriteOK(w, views(posts, id))
}

// HandleGet handles GET /posts/{id}/
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	_ = utils.WriteOK(w, post.View(viewerID(r)))
}

// HandleCreate handles POST /posts/ and credits the author PostReward tokens
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	author, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}

	post := &models.Post{AuthorID: author.ID, User: author.Username}
	if !h.bind(w, r, post) {
		return
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}

	author.Tokens += PostReward
	if err := h.users.Update(r.Context(), author); err != nil {
		h.logger.Warn("failed to credit post reward", zap.Int("user_id", author.ID), zap.Error(err))
	}

	_ = utils.WriteCreated(w, post.View(author.ID))
}

// HandleUpdate handles PUT /posts/{id}/ by the author
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	post, ok := h.owned(w, r, "You can't edit this post.")
	if !ok {
		return
	}
	if !h.bind(w, r, post) {
		return
	}
	if err := h.posts.Update(r.Context(), post); err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	_ = utils.WriteOK(w, post.View(post.AuthorID))
}

// HandleDelete handles DELETE /posts/{id}/ by the author
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	post, ok := h.owned(w, r, "You can't delete this post.")
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), post.ID); err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	utils.WriteNoContent(w)
}

// HandleLike handles POST /posts/{id}/like/, toggling the caller's like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}

	liked := post.ToggleLike(viewerID(r))
	if err := h.posts.Update(r.Context(), post); err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return
	}
	if liked {
		_ = utils.WriteMessage(w, "Liked")
		return
	}
	_ = utils.WriteMessage(w, "Unliked")
}

// owned loads the post named in the URL and checks the caller wrote it.
func (h *PostHandler) owned(w http.ResponseWriter, r *http.Request, denied string) (*models.Post, bool) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return nil, false
	}
	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "")
		return nil, false
	}
	if post.AuthorID != viewerID(r) {
		_ = utils.WriteForbidden(w, denied)
		return nil, false
	}
	return post, true
}

// bind copies content and image from the request body into post.
func (h *PostHandler) bind(w http.ResponseWriter, r *http.Request, post *models.Post) bool {
	fields, files, err := utils.ReadForm(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return false
	}
	content := strings.TrimSpace(fields["content"])
	if content == "" {
		_ = utils.WriteFieldErrors(w, map[string][]string{"content": {"This field may not be blank."}})
		return false
	}
	post.Content = content
	if name, ok := files["image"]; ok {
		path := "/media/post_images/" + name
		post.Image = &path
	}
	return true
}

func viewerID(r *http.Request) int {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}

func views(posts []*models.Post, viewer int) []models.PostView {
	out := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.View(viewer))
	}
	return out
}
