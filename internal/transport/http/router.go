package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rizara/luxe-api/internal/application/auth"
	"github.com/rizara/luxe-api/internal/application/otp"
	"github.com/rizara/luxe-api/internal/config"
	"github.com/rizara/luxe-api/internal/domain"
	"github.com/rizara/luxe-api/internal/transport/http/handler"
	appmiddleware "github.com/rizara/luxe-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints,
	// in front of the per-email issuance limiter.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	limiter := otp.NewLimiter(deps.OTPRepo, cfg.OTP.Window, cfg.OTP.FailClosed)
	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:     deps.OTPRepo,
		Limiter:   limiter,
		Mailer:    deps.Mailer,
		Expiry:    cfg.OTP.Expiry,
		SendMax:   cfg.OTP.SendMax,
		ResendMax: cfg.OTP.ResendMax,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:    deps.UserRepo,
		OTPService:  otpSvc,
		JWTProvider: deps.JWTProvider,
		Mailer:      deps.Mailer,
		SMSSender:   deps.SMSSender,
	})

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(otpSvc, deps.UserRepo)
	authH := handler.NewAuthHandler(authSvc)

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Ping)

		r.Route("/otp", func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/send", otpH.Send)
			r.Post("/verify", otpH.Verify)
			r.Post("/resend", otpH.Resend)
			r.Get("/check-verified", otpH.CheckVerified)
		})

		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/register/complete", authH.CompleteRegistration)
		r.With(sensitiveRL.Limit).Post("/auth/forgot-password", authH.ForgotPassword)
		r.With(sensitiveRL.Limit).Post("/auth/reset-password", authH.ResetPassword)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/change-password/request", authH.RequestPasswordChange)
			r.Put("/auth/change-password", authH.ChangePassword)
			r.Post("/auth/change-email/request", authH.RequestEmailChange)
			r.Put("/auth/change-email", authH.ChangeEmail)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/admin/otp/cleanup", otpH.Cleanup)
			})
		})
	})

	return r
}
