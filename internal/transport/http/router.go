package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phone-auth-api/internal/application/auth"
	"github.com/phone-auth-api/internal/application/session"
	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/phone-auth-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	revocations := deps.Revocations
	if revocations == nil {
		revocations = deps.Store
	}
	sessionSvc := session.NewService(session.ServiceDeps{
		Tokens:      deps.JWTProvider,
		Users:       deps.Store,
		Revocations: revocations,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Store:    deps.Store,
		Users:    deps.Store,
		OTP:      deps.OTP,
		Sessions: sessionSvc,
		Hasher:   deps.Hasher,
		Policy:   deps.Policy,
		Notifier: deps.Notifier,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, sessionSvc)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authH.Signup)
		r.Post("/phone-verification", authH.VerifyPhone)
		r.Post("/resend-phone-verification", authH.ResendPhoneVerification)
		r.Post("/login", authH.Login)
		r.Post("/token/refresh", authH.Refresh)
		r.Post("/logout", authH.Logout)

		// ── Authenticated routes ─────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(sessionSvc))

			r.Get("/user", authH.CurrentUser)
			r.Delete("/user", authH.DeleteAccount)
		})
	})

	return r
}
