package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/utils"
)

// RegisteredMessage acknowledges a new visitor account
const RegisteredMessage = "User registered successfully. Please check your email to verify your account."

// Handler handles the account flows that issue or need no tokens: role
// logins, token refresh, visitor registration and email verification.
type Handler struct {
	users       repositories.UserRepository
	tokens      *TokenIssuer
	frontendURL string
	logger      *zap.Logger
	now         func() time.Time
}

// NewHandler creates a new auth handler. frontendURL is where email
// verification redirects to.
func NewHandler(users repositories.UserRepository, tokens *TokenIssuer, frontendURL string, logger *zap.Logger) *Handler {
	return &Handler{
		users:       users,
		tokens:      tokens,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		logger:      logger,
		now:         tokens.now,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// HandleLogin handles POST /login/{role}/
func (h *Handler) HandleLogin(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())

		var req loginRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid request body")
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			_ = utils.WriteFieldErrors(w, utils.GetValidationFields(err))
			return
		}

		user, err := h.users.GetByEmail(r.Context(), req.Email)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			h.logger.Error("failed to load user", zap.String("request_id", requestID), zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		if err := models.CanLogin(user, req.Password, role, h.now()); err != nil {
			h.logger.Info("login rejected",
				zap.String("request_id", requestID),
				zap.String("role", role.String()),
				zap.String("reason", err.Error()))
			writeLoginRejection(w, role, err)
			return
		}

		pair, err := h.tokens.Issue(user, role)
		if err != nil {
			h.logger.Error("failed to issue tokens", zap.String("request_id", requestID), zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		resp := loginResponse{Access: pair.Access, Refresh: pair.Refresh}
		if role != session.RoleAdmin {
			resp.Username = user.Username
			resp.Email = user.Email
		}

		h.logger.Info("login succeeded",
			zap.String("request_id", requestID),
			zap.String("role", role.String()),
			zap.Int("user_id", user.ID))
		_ = utils.WriteOK(w, resp)
	}
}

// writeLoginRejection picks the status and body shape each login endpoint
// uses for a rejection.
func writeLoginRejection(w http.ResponseWriter, role session.Role, err error) {
	switch {
	case role == session.RoleAdmin:
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.DetailResponse{Detail: err.Error()})
	case errors.Is(err, models.ErrNoActiveAccount):
		_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.DetailResponse{
			Detail: err.Error(),
			Code:   "no_active_account",
		})
	default:
		_ = utils.WriteBadRequest(w, err.Error())
	}
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// HandleRefresh handles POST /token/refresh/
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteFieldErrors(w, utils.GetValidationFields(err))
		return
	}

	access, claims, err := h.tokens.Refresh(req.Refresh)
	if err != nil {
		h.logger.Debug("refresh rejected",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
		_ = utils.WriteTokenNotValid(w)
		return
	}

	// Deleted accounts cannot refresh.
	if _, err := h.users.GetByID(r.Context(), claims.UserID); err != nil {
		_ = utils.WriteTokenNotValid(w)
		return
	}

	_ = utils.WriteOK(w, map[string]string{"access": access})
}

type visitorRegistration struct {
	Username    string `json:"username" validate:"required,max=150"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Password2   string `json:"password2" validate:"required,eqfield=Password"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
}

// HandleRegisterVisitor handles POST /register/visitor/. The account stays
// inactive until the emailed link is followed.
func (h *Handler) HandleRegisterVisitor(w http.ResponseWriter, r *http.Request) {
	requestID := chimw.GetReqID(r.Context())

	fields, files, err := utils.ReadForm(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	reg := visitorRegistration{
		Username:    fields["username"],
		Email:       fields["email"],
		Password:    fields["password"],
		Password2:   fields["password2"],
		PhoneNumber: fields["phone_number"],
	}
	if err := utils.ValidateStruct(reg); err != nil {
		_ = utils.WriteFieldErrors(w, utils.GetValidationFields(err))
		return
	}

	user, err := models.NewUser(reg.Email, reg.Username, reg.Password, session.RoleVisitor)
	if err != nil {
		h.logger.Error("failed to build user", zap.String("request_id", requestID), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	user.PhoneNumber = reg.PhoneNumber
	user.IsActive = false
	user.VerifyToken = uuid.NewString()
	if name, ok := files["profile_image"]; ok {
		path := "/media/profile_images/" + name
		user.ProfileImage = &path
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			_ = utils.WriteFieldErrors(w, map[string][]string{"email": {"user with this email already exists."}})
			return
		}
		h.logger.Error("failed to create user", zap.String("request_id", requestID), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	h.logger.Info("visitor registered, verification pending",
		zap.String("request_id", requestID),
		zap.Int("user_id", user.ID),
		zap.String("verify_path", VerificationPath(user)))
	_ = utils.WriteCreated(w, utils.MessageResponse{Message: RegisteredMessage})
}

// VerificationPath is the API path that activates user's account
func VerificationPath(user *models.User) string {
	uid := base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(user.ID)))
	return "verify-email/" + uid + "/" + user.VerifyToken + "/"
}

// HandleVerifyEmail handles GET /verify-email/{uid}/{token}/ and redirects
// to the front end's success or failure page.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	failed := h.frontendURL + "/verify-failed"

	raw, err := base64.RawURLEncoding.DecodeString(chi.URLParam(r, "uid"))
	if err != nil {
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}
	id, err := strconv.Atoi(string(raw))
	if err != nil {
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil || user.VerifyToken == "" || user.VerifyToken != chi.URLParam(r, "token") {
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	user.IsActive = true
	user.VerifyToken = ""
	if err := h.users.Update(r.Context(), user); err != nil {
		h.logger.Error("failed to activate user", zap.Int("user_id", id), zap.Error(err))
		http.Redirect(w, r, failed, http.StatusFound)
		return
	}

	h.logger.Info("email verified", zap.Int("user_id", id))
	http.Redirect(w, r, h.frontendURL+"/verify-success", http.StatusFound)
}
