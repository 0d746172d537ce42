package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mehtaarjun/shopsphere-backend/api/controllers"
	webhookcontrollers "github.com/mehtaarjun/shopsphere-backend/api/controllers/webhooks"
	"github.com/mehtaarjun/shopsphere-backend/api/middleware"
	"github.com/mehtaarjun/shopsphere-backend/internal/cart"
	"github.com/mehtaarjun/shopsphere-backend/internal/payments"
	razorpaywebhook "github.com/mehtaarjun/shopsphere-backend/internal/webhooks/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/config"
	"github.com/mehtaarjun/shopsphere-backend/pkg/db"
	"github.com/mehtaarjun/shopsphere-backend/pkg/logger"
	"github.com/mehtaarjun/shopsphere-backend/pkg/razorpay"
	"github.com/mehtaarjun/shopsphere-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	razorpayClient *razorpay.Client,
	cartService cart.Service,
	paymentService payments.Service,
	webhookGuard *razorpaywebhook.DedupGuard,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(paymentService, razorpayClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/orders/cart", controllers.PaymentCreateCartOrder(paymentService, logg))
			r.Post("/orders/single-product", controllers.PaymentCreateProductOrder(paymentService, logg))
			r.Post("/verify", controllers.PaymentVerify(paymentService, logg))
			r.Get("/history", controllers.PaymentList(paymentService, logg))
			r.With(middleware.RequireRole(payments.RoleAdmin, logg)).Get("/stats", controllers.PaymentStats(paymentService, logg))
			r.Get("/details/{paymentId}", controllers.PaymentDetail(paymentService, logg))
			r.Post("/refund/{paymentId}", controllers.PaymentRefund(paymentService, logg))
		})
	})

	return r
}
