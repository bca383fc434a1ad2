package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/juampidev/pagolink/internal/services/auth"
	checkoutsvc "github.com/juampidev/pagolink/internal/services/checkout"
	linkssvc "github.com/juampidev/pagolink/internal/services/links"
	reconcilesvc "github.com/juampidev/pagolink/internal/services/reconcile"
	salessvc "github.com/juampidev/pagolink/internal/services/sales"
	"github.com/juampidev/pagolink/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	LinksService     *linkssvc.Service
	CheckoutService  *checkoutsvc.Service
	ReconcileService *reconcilesvc.Service
	SalesService     *salessvc.Service
	Logger           *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService, deps.Logger)
	paymentHandler := handlers.NewPaymentHandler(deps.CheckoutService, deps.ReconcileService, deps.Logger)
	salesHandler := handlers.NewSalesHandler(deps.LinksService, deps.SalesService, deps.Logger)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	adminMW := RequireRole(authsvc.RoleAdmin)

	r.Get("/healthz", healthHandler.Get)

	// Public checkout surface, reached straight from the shared link.
	r.Route("/pago", func(r chi.Router) {
		r.Get("/{id}", checkoutHandler.View)
		r.Post("/{id}/payer", checkoutHandler.SubmitPayer)
	})

	r.Route("/api", func(r chi.Router) {
		// Gateway-facing endpoints; the webhook must stay reachable
		// without credentials.
		r.Route("/payments", func(r chi.Router) {
			r.Post("/preference", paymentHandler.CreatePreference)
			r.Post("/subscription", paymentHandler.CreateSubscription)
			r.Post("/verify", paymentHandler.Verify)
			r.Post("/webhook", paymentHandler.Webhook)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.With(authMW).Post("/logout", authHandler.Logout)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Use(authMW, adminMW)
			r.Post("/", salesHandler.Create)
			r.Get("/", salesHandler.List)
			r.Get("/feed", salesHandler.Feed)
			r.Post("/export", salesHandler.Export)
			r.Get("/{id}", salesHandler.Get)
			r.Put("/{id}", salesHandler.Update)
			r.Delete("/{id}", salesHandler.Delete)
		})
	})
}
