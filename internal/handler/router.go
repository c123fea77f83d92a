package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/marketplace/internal/middleware"
	"github.com/mmeshcher/marketplace/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if h.opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Content-Encoding", "Accept-Encoding"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	loginLimit := custommiddleware.RateLimit(h.opts.Limiter, h.opts.LoginPolicy, h.logger)
	checkoutLimit := custommiddleware.RateLimit(h.opts.Limiter, h.opts.CheckoutPolicy, h.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/signup", h.Signup)
		r.With(loginLimit).Post("/users/login", h.Login)
		r.Get("/coupons/validate/{code}", h.ValidateCoupon)

		r.With(checkoutLimit, h.session.Middleware).Post("/orders/checkout", h.Checkout)

		r.Group(func(r chi.Router) {
			r.Use(h.session.Middleware)

			r.Get("/users/me", h.Me)
			r.Get("/orders", h.ListOrders)

			r.Get("/notifications", h.Notifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)

			r.Route("/vendor", func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleVendor))
				r.Use(custommiddleware.RequireActiveVendor)

				r.Post("/coupons", h.CreateCoupon)
				r.Get("/orders", h.VendorOrders)
				r.Post("/orders/{id}/status", h.UpdateItemStatus)
				r.Get("/finance", h.VendorFinance)
				r.Post("/withdraw", h.Withdraw)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleAdmin))

				r.Post("/moderation/block/{id}", h.Block)
				r.Post("/moderation/unblock/{id}", h.Unblock)
				r.Post("/moderation/force-logout/{id}", h.ForceLogout)

				r.Post("/vendors/approve/{id}", h.ApproveVendor)
				r.Post("/vendors/reject/{id}", h.RejectVendor)

				r.Get("/payouts", h.ListPayouts)
				r.Post("/payouts/approve/{id}", h.ApprovePayout)
				r.Post("/payouts/reject/{id}", h.RejectPayout)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
