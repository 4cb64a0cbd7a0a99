package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/store-rating-api/internal/config"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/transport/http/handler"
	appmiddleware "github.com/store-rating-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

const adminOnly = "Access denied. Admin or Super Admin only."

// NewRouter builds and returns the application router. The returned close func
// stops background work owned by the router.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(deps.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Tokens, deps.Lookup, deps.Log)

	// 5 requests/second, burst of 10, applied to public endpoints that send mail or check passwords.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.Registration, deps.Auth)
	userH := handler.NewUserHandler(deps.Users)
	storeH := handler.NewStoreHandler(deps.Stores)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthH.Check)

		r.Route("/auth", func(r chi.Router) {
			r.With(sensitiveRL.Limit).Post("/register", authH.Register)
			r.With(sensitiveRL.Limit).Post("/verify-otp", authH.VerifyOTP)
			r.With(sensitiveRL.Limit).Post("/resend-otp", authH.ResendOTP)
			r.With(sensitiveRL.Limit).Post("/forgot-password", authH.ForgotPassword)
			r.With(sensitiveRL.Limit).Post("/reset-password", authH.ResetPassword)
			r.With(sensitiveRL.Limit).Post("/login", authH.Login)

			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Put("/update-password", authH.UpdatePassword)
				r.Delete("/delete-account", authH.DeleteAccount)
				r.Get("/user-details", authH.UserDetails)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authMw)
			r.Get("/profile", userH.Profile)
			r.Put("/profile", userH.UpdateProfile)
			r.With(appmiddleware.RequirePermission(domain.Role.CanManageUsers, adminOnly)).Get("/", userH.List)
			r.With(appmiddleware.RequirePermission(domain.Role.CanDeleteUsers, "Access denied. Super Admin only.")).Delete("/{id}", userH.Delete)
		})

		r.Route("/super-admin", func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequirePermission(domain.Role.CanManageUsers, adminOnly))
			r.Post("/create-user", userH.Create)
			r.Get("/users", userH.List)
			r.Delete("/users/{id}", userH.Delete)
		})

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", storeH.List)
			r.With(sensitiveRL.Limit).Post("/{id}/rate-anonymous", storeH.RateAnonymous)

			r.Group(func(r chi.Router) {
				r.Use(authMw)
				r.Get("/with-ratings", storeH.ListWithRatings)
				r.Post("/{id}/rate", storeH.Rate)

				r.Group(func(r chi.Router) {
					r.Use(appmiddleware.RequirePermission(domain.Role.CanManageStores, "Only Super Admin can manage stores"))
					r.Post("/create", storeH.Create)
					r.Delete("/{id}", storeH.Delete)
				})
			})
		})
	})

	return r, sensitiveRL.Close
}
