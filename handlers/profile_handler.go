package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/utils"
)

// VisitorProfileResponse is the body of profile/visitor/
type VisitorProfileResponse struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	ProfileImage    *string `json:"profile_image"`
	ProfileImageURL *string `json:"profile_image_url"`
	Tokens          int     `json:"tokens"`
}

// ProfileHandler serves the signed-in visitor's profile
type ProfileHandler struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(users repositories.UserRepository, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// HandleGetVisitor handles GET /profile/visitor/
func (h *ProfileHandler) HandleGetVisitor(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}
	_ = utils.WriteOK(w, visitorProfile(r, user))
}

// HandleUpdateVisitor handles PUT /profile/visitor/ (multipart or JSON)
func (h *ProfileHandler) HandleUpdateVisitor(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}

	fields, files, err := utils.ReadForm(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}
	if phone, ok := fields["phone_number"]; ok {
		if len(phone) > 20 {
			_ = utils.WriteFieldErrors(w, map[string][]string{
				"phone_number": {"Ensure this field has no more than 20 characters."},
			})
			return
		}
		user.PhoneNumber = phone
	}
	if name, ok := files["profile_image"]; ok {
		path := "/media/profile_images/" + name
		user.ProfileImage = &path
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		writeRepoError(w, r, h.logger, err, "Profile not found.")
		return
	}
	_ = utils.WriteOK(w, visitorProfile(r, user))
}

func (h *ProfileHandler) load(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeRepoError(w, r, h.logger, err, "Profile not found.")
		return nil, false
	}
	return user, true
}

func visitorProfile(r *http.Request, u *models.User) VisitorProfileResponse {
	resp := VisitorProfileResponse{
		Username:     u.Username,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		ProfileImage: u.ProfileImage,
		Tokens:       u.Tokens,
	}
	if u.ProfileImage != nil {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		url := scheme + "://" + r.Host + *u.ProfileImage
		resp.ProfileImageURL = &url
	}
	return resp
}
