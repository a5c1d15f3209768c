package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/tonpay/internal/payment"
	"github.com/frahmantamala/tonpay/internal/transport/middleware"
	"github.com/frahmantamala/tonpay/internal/transport/swagger"
)

type RouterConfig struct {
	AllowedOrigins string
	OpenAPIPath    string
	WebhookToken   string
}

func RegisterAllRoutes(router *chi.Mux, config RouterConfig, healthHandler *HealthHandler, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(config.AllowedOrigins))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if config.OpenAPIPath != "" {
		router.Get(swagger.DocumentPath, swagger.DocumentHandler(config.OpenAPIPath))
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if healthHandler != nil {
			r.Get("/health", healthHandler.healthCheckHandler)
			r.Get("/ping", healthHandler.pingHandler)
		}

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.CreatePayment)
				pr.Post("/verify", paymentHandler.VerifyPayment)
				pr.Get("/{hash}", paymentHandler.GetPayment)
			})
		}

		if webhookHandler != nil {
			r.Group(func(wr chi.Router) {
				wr.Use(middleware.WebhookAuth(config.WebhookToken, logger))
				wr.Post("/webhooks/ton", webhookHandler.HandleTonAPIWebhook)
			})
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"NOT_FOUND","code":"ROUTE_NOT_FOUND","message":"route not found"}}`))
	})
}
