package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter assembles the HTTP surface.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Public operational routes
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// OAuth handshake
	r.Get("/api/auth", h.BeginAuth)
	r.Get("/api/shopify/callback", h.AuthCallback)

	// Webhook ingestion. The billing webhook shares the ingestion path but
	// has its own route so Shopify-side subscriptions stay separable.
	r.Post("/api/shopify/webhooks", h.Webhooks)
	r.Post("/api/shopify/billing-webhook", h.Webhooks)

	// Billing lifecycle
	r.Post("/api/shopify/subscribe", h.Subscribe)
	r.Get("/api/shopify/confirm-billing", h.ConfirmBilling)
	r.Post("/api/shopify/uninstall-confirm", h.UninstallConfirm)

	// Storefront widget analytics
	r.Post("/api/analytics/track", h.TrackAnalytics)

	return r
}
