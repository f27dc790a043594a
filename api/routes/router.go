package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alxgalache/kuadrat-backend/api/controllers"
	ordercontrollers "github.com/alxgalache/kuadrat-backend/api/controllers/orders"
	paymentcontrollers "github.com/alxgalache/kuadrat-backend/api/controllers/payments"
	sellercontrollers "github.com/alxgalache/kuadrat-backend/api/controllers/sellers"
	"github.com/alxgalache/kuadrat-backend/api/middleware"
	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/payments"
	"github.com/alxgalache/kuadrat-backend/internal/stats"
	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/redis"
)

// RouterParams groups everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Orders   orders.Service
	Payments payments.Service
	Stats    stats.Service
	Metrics  prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	var redisPinger db.Pinger
	ordersLimit := func(next http.Handler) http.Handler { return next }
	tokenLimit := ordersLimit
	idempotency := ordersLimit
	if p.Redis != nil {
		redisPinger = p.Redis
		ordersPolicy := middleware.NewRateLimitPolicy("orders", cfg.RateLimit.Window, cfg.RateLimit.OrdersIPLimit, cfg.RateLimit.OrdersEmailLimit)
		tokenPolicy := middleware.NewRateLimitPolicy("order-token", cfg.RateLimit.Window, cfg.RateLimit.TokenLookupIPLimit, 0)
		ordersLimit = middleware.RateLimit(ordersPolicy, p.Redis, logg)
		tokenLimit = middleware.RateLimit(tokenPolicy, p.Redis, logg)
		idempotency = middleware.Idempotency(p.Redis, cfg.Idempotency.TTL, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, redisPinger))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Use(idempotency)
			r.With(ordersLimit).Post("/", ordercontrollers.Create(p.Orders, logg))
			r.With(ordersLimit).Post("/placeOrder", ordercontrollers.Place(p.Orders, logg))
			r.Put("/", ordercontrollers.Confirm(p.Payments, logg))
		})
		r.With(tokenLimit).Get("/public/token/{token}", ordercontrollers.GetByToken(p.Orders, logg))
	})

	r.Route("/payments", func(r chi.Router) {
		r.With(ordersLimit).Post("/orders", paymentcontrollers.CreateGatewayOrder(p.Payments, logg))
		r.Get("/orders/{gatewayOrderId}/payments/latest", paymentcontrollers.LatestPayment(p.Payments, logg))
		r.Post("/webhook", paymentcontrollers.Webhook(logg))
	})

	r.Route("/sellers/{sellerId}", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWT, logg))
		r.Get("/stats", sellercontrollers.Stats(p.Stats, logg))
	})

	return r
}
