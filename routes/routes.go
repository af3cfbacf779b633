package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/jaffa-explorer/app"
	"github.com/upb/jaffa-explorer/handlers"
	jaffamw "github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/utils"
)

// SetupRoutes configures all dev backend routes and middleware
func SetupRoutes(deps *app.BackendDependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(jaffamw.RequestLogger(deps.Logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.DevBackend.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(map[string]handlers.Check{
		"users": func(ctx context.Context) error {
			_, err := deps.Users.List(ctx)
			return err
		},
	}, deps.Logger)
	profile := handlers.NewProfileHandler(deps.Users, deps.Logger)
	posts := handlers.NewPostHandler(deps.Posts, deps.Users, deps.Logger)
	admin := handlers.NewAdminHandler(deps.Users, deps.Posts, deps.Logger, nil)
	authn := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Account flows
		for _, role := range session.Roles {
			r.Post("/login/"+role.String()+"/", deps.AuthHandler.HandleLogin(role))
		}
		r.Post("/token/refresh/", deps.AuthHandler.HandleRefresh)
		r.Post("/register/visitor/", deps.AuthHandler.HandleRegisterVisitor)
		r.Get("/verify-email/{uid}/{token}/", deps.AuthHandler.HandleVerifyEmail)

		// Feed: public reads, authenticated writes
		r.Group(func(r chi.Router) {
			r.Use(authn.OptionalAuth)
			r.Get("/posts/", posts.HandleList)
			r.Get("/posts/{id}/", posts.HandleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Post("/posts/", posts.HandleCreate)
			r.Put("/posts/{id}/", posts.HandleUpdate)
			r.Delete("/posts/{id}/", posts.HandleDelete)
			r.Post("/posts/{id}/like/", posts.HandleLike)
			r.Get("/my-posts/", posts.HandleMine)
		})

		// Visitor profile
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Use(authn.RequireRole(session.RoleVisitor))
			r.Get("/profile/visitor/", profile.HandleGetVisitor)
			r.Put("/profile/visitor/", profile.HandleUpdateVisitor)
		})

		// Moderation (require admin role)
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Use(authn.RequireRole(session.RoleAdmin))
			r.Get("/admin/users/", admin.HandleListUsers)
			r.Post("/admin/users/{id}/ban/", admin.HandleBan)
			r.Post("/admin/users/{id}/unban/", admin.HandleUnban)
			r.Delete("/admin/users/{id}/delete/", admin.HandleDeleteUser)
			r.Post("/admin/business/{id}/approve/", admin.HandleApproveBusiness)
			r.Post("/admin/business/{id}/decline/", admin.HandleDeclineBusiness)
			r.Delete("/admin/posts/{id}/delete/", admin.HandleDeletePost)
			r.Get("/admin-dashboard/", admin.HandleDashboard)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	return r
}
