// Package router assembles the chi router for the API server: channel
// webhooks, payment webhooks, job polling, and the JWT-protected admin
// surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/flowline-ai/flowline/internal/api/handlers"
	apimiddleware "github.com/flowline-ai/flowline/internal/api/middleware"
	"github.com/flowline-ai/flowline/internal/channels/whatsapp"
	"github.com/flowline-ai/flowline/internal/payments"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	WhatsAppWebhook *whatsapp.WebhookHandler
	SquareWebhook   *payments.SquareWebhookHandler
	FakePayments    *payments.FakePaymentsHandler
	Jobs            *handlers.JobsHandler
	Availability    *handlers.AvailabilityHandler

	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(apimiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(apimiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, polling, health checks).
	r.Group(func(public chi.Router) {
		public.Get("/healthz", handleHealth)

		if cfg.WhatsAppWebhook != nil {
			public.Get("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleVerification)
			public.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
		}
		if cfg.SquareWebhook != nil {
			public.Post("/webhooks/square", cfg.SquareWebhook.Handle)
		}
		if cfg.FakePayments != nil {
			public.Get("/payments/fake/{quoteID}", cfg.FakePayments.HandleCheckout)
			public.Post("/payments/fake/{quoteID}/complete", cfg.FakePayments.HandleComplete)
			public.Get("/payments/fake/{quoteID}/success", cfg.FakePayments.HandleSuccess)
		}
		if cfg.Jobs != nil {
			public.Get("/conversations/jobs/{jobID}", cfg.Jobs.GetStatus)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin routes (JWT-protected).
	if cfg.AdminAuthSecret != "" && cfg.Availability != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(apimiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/businesses/{businessID}/availability", func(av chi.Router) {
				av.Post("/refresh", cfg.Availability.Refresh)
				av.Get("/slots", cfg.Availability.Slots)
				av.Get("/days", cfg.Availability.Days)
				av.Get("/days/{date}", cfg.Availability.Hours)
			})
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
