// Package httpapi exposes the REST surface: authentication, stockist
// directory and staff management, purchasing-card requests and approvals,
// admin onboarding decisions, and document verification.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/card"
	"meditrap/onboarding"
	"meditrap/purchaser"
	"meditrap/stockist"
	"meditrap/verify"
)

// Server bundles the domain services behind a chi router.
type Server struct {
	auth       *auth.Service
	reset      *auth.ResetService
	stockists  *stockist.Service
	purchasers *purchaser.Service
	cards      *card.Service
	onboarding *onboarding.Service
	verifier   *verify.Service
	logger     *zap.Logger
	registry   *prometheus.Registry
}

// Deps enumerates everything the server needs; all fields are required
// except Verifier, which disables the document endpoints when nil.
type Deps struct {
	Auth       *auth.Service
	Reset      *auth.ResetService
	Stockists  *stockist.Service
	Purchasers *purchaser.Service
	Cards      *card.Service
	Onboarding *onboarding.Service
	Verifier   *verify.Service
	Logger     *zap.Logger
	Registry   *prometheus.Registry
}

func NewServer(deps Deps) *Server {
	return &Server{
		auth:       deps.Auth,
		reset:      deps.Reset,
		stockists:  deps.Stockists,
		purchasers: deps.Purchasers,
		cards:      deps.Cards,
		onboarding: deps.Onboarding,
		verifier:   deps.Verifier,
		logger:     deps.Logger,
		registry:   deps.Registry,
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respond(w, http.StatusOK, "ok", nil)
	})
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Post("/logout", s.handleLogout)
				r.Get("/me", s.handleMe)
			})
		})

		r.Route("/stockists", func(r chi.Router) {
			r.Post("/", s.handleStockistRegister)
			r.Get("/", s.handleStockistList)
			r.Get("/{id}", s.handleStockistGet)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/", s.handleStaffCreate)
			r.Get("/", s.handleStaffList)
			r.Delete("/{id}", s.handleStaffDelete)
		})

		r.Route("/cards", func(r chi.Router) {
			// Email links land here unauthenticated; the token is the
			// credential.
			r.Get("/approve/{token}", s.handleCardApproveByToken)

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Post("/requests", s.handleCardCreate)
				r.Get("/requests/{id}", s.handleCardGet)
				r.Post("/requests/{id}/approve", s.handleCardApprove)
				r.Post("/requests/{id}/cancel", s.handleCardCancel)
				r.Get("/pending", s.handleCardPending)
			})
		})

		r.Route("/purchasers", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/", s.handlePurchaserList)
			r.Get("/{id}", s.handlePurchaserGet)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.requireAdmin)
			r.Get("/pending/{kind}", s.handleAdminPending)
			r.Post("/{kind}/{id}/approve", s.handleAdminApprove)
			r.Post("/{kind}/{id}/decline", s.handleAdminDecline)
			r.Get("/audits/{kind}/{id}", s.handleAdminAudits)
		})

		if s.verifier != nil {
			r.Route("/verify", func(r chi.Router) {
				r.Use(s.authenticate)
				r.Post("/aadhaar", s.handleVerifyAadhaar)
			})
		}
	})

	return r
}
