package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minsu-cho/commerce-backend/api/controllers"
	ordercontrollers "github.com/minsu-cho/commerce-backend/api/controllers/orders"
	webhookcontrollers "github.com/minsu-cho/commerce-backend/api/controllers/webhooks"
	"github.com/minsu-cho/commerce-backend/api/middleware"
	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/internal/reconcile"
	"github.com/minsu-cho/commerce-backend/pkg/config"
	"github.com/minsu-cho/commerce-backend/pkg/db"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsReg *prometheus.Registry,
	purchaseService purchase.Service,
	reconcileService reconcile.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsReg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	}

	// Gateway callbacks carry no user identity and must bypass auth.
	r.Post("/api/v1/orders/{orderId}/callback", webhookcontrollers.PaymentCallback(reconcileService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(purchaseService, logg))
			r.Get("/", ordercontrollers.List(purchaseService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(purchaseService, logg))
			r.Post("/{orderId}/recover", ordercontrollers.Recover(reconcileService, purchaseService, logg))
		})
	})

	return r
}
