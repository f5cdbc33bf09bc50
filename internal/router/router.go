package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/wandertrails/tourism-api/internal/api/admin"
	"github.com/wandertrails/tourism-api/internal/api/auth"
	"github.com/wandertrails/tourism-api/internal/api/mfa"
	"github.com/wandertrails/tourism-api/internal/types"
)

// Config carries the handlers and middleware the router mounts. Server-wide
// middleware (request ID, recoverer, logging) is applied in main.go before
// this router.
type Config struct {
	AuthHandler  *auth.AuthHandler
	MFAHandler   *mfa.MFAHandler
	AdminHandler *admin.AdminHandler

	Authenticate func(http.Handler) http.Handler
	RequireAdmin func(http.Handler) http.Handler

	AllowedOrigins         []string
	LoginRateLimit         int
	LoginRateLimitInterval time.Duration
}

// SetupRouter builds the full API route tree.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	loginLimit := cfg.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 10
	}
	loginWindow := cfg.LoginRateLimitInterval
	if loginWindow <= 0 {
		loginWindow = time.Minute
	}

	r.Route("/api/auth", func(r chi.Router) {
		// Public routes. Credential and recovery endpoints are throttled
		// per client IP.
		r.Group(func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/refresh-token", cfg.AuthHandler.RefreshToken)
			r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
			r.Post("/verify-email", cfg.AuthHandler.VerifyEmail)
			r.Post("/mfa/send-code", cfg.MFAHandler.SendCode)
			r.Post("/mfa/verify", cfg.MFAHandler.Verify)

			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(loginLimit, loginWindow))
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
			})
		})

		// Routes that require a valid access token on an active account.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Post("/logout", cfg.AuthHandler.Logout)
			r.Get("/profile", cfg.AuthHandler.GetProfile)
			r.Put("/profile", cfg.AuthHandler.UpdateProfile)
			r.Post("/change-password", cfg.AuthHandler.ChangePassword)
			r.Post("/mfa/backup-codes", cfg.MFAHandler.GenerateBackupCodes)
		})

		// Administrative user management.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Use(cfg.RequireAdmin)

			r.Get("/admin/users", cfg.AdminHandler.ListUsers)
			r.Patch("/admin/users/{userID}", cfg.AdminHandler.UpdateUser)
			r.Delete("/admin/users/{userID}", cfg.AdminHandler.DeleteUser)
		})
	})

	return r
}

// AdminRoles are the roles granted access to the admin route group.
var AdminRoles = []types.Role{types.RoleAdmin, types.RoleSuperAdmin}
