package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vendorahq/vendora-backend/api/controllers"
	"github.com/vendorahq/vendora-backend/api/middleware"
	checkoutsvc "github.com/vendorahq/vendora-backend/internal/checkout"
	ordersvc "github.com/vendorahq/vendora-backend/internal/orders"
	paymentssvc "github.com/vendorahq/vendora-backend/internal/payments"
	refundssvc "github.com/vendorahq/vendora-backend/internal/refunds"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/metrics"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	pkgredis "github.com/vendorahq/vendora-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *pkgredis.Client
	DBPinger controllers.Pinger
	DLQ      *outbox.DLQRepository
	Metrics  *metrics.PaymentMetrics
	Registry *prometheus.Registry

	Checkout checkoutsvc.Service
	Orders   ordersvc.Service
	Payments paymentssvc.Service
	Refunds  refundssvc.Service
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": deps.DBPinger,
			"redis":    deps.Redis,
		}))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	webhookPolicy := middleware.NewRateLimitPolicy("gateway_webhook", cfg.Gateway.WebhookWindow, cfg.Gateway.WebhookIPLimit)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(webhookPolicy, deps.Redis, logg)).
			Post("/gateway", controllers.GatewayWebhook(deps.Payments, cfg.Gateway, deps.Redis, deps.DLQ, deps.Metrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		buyerOnly := middleware.RequireRole(string(enums.ActorRoleBuyer), logg)
		vendorOnly := middleware.RequireRole(string(enums.ActorRoleVendor), logg)

		r.With(buyerOnly).Post("/checkout", controllers.Checkout(deps.Checkout, logg))
		r.With(buyerOnly).Post("/payments/verify", controllers.VerifyPayment(deps.Payments, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.With(buyerOnly).Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.With(vendorOnly).Post("/{orderId}/status", controllers.AdvanceOrderStatus(deps.Orders, logg))
			r.With(vendorOnly).Post("/{orderId}/delivery-otp", controllers.GenerateDeliveryOTP(deps.Orders, logg))
			r.With(vendorOnly).Post("/{orderId}/deliver", controllers.DeliverOrder(deps.Orders, logg))
			r.With(buyerOnly).Post("/{orderId}/refund-request", controllers.RequestRefund(deps.Refunds, logg))
		})

		r.Post("/refund-requests/{requestId}/decision", controllers.DecideRefund(deps.Refunds, logg))
	})

	return r
}
