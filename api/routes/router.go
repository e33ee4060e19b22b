package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmnhat/platterly-backend/api/controllers"
	"github.com/tmnhat/platterly-backend/api/middleware"
	"github.com/tmnhat/platterly-backend/internal/cart"
	"github.com/tmnhat/platterly-backend/internal/delivery"
	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/internal/orders"
	"github.com/tmnhat/platterly-backend/internal/payments"
	"github.com/tmnhat/platterly-backend/internal/tracking"
	"github.com/tmnhat/platterly-backend/internal/vouchers"
	"github.com/tmnhat/platterly-backend/pkg/config"
	"github.com/tmnhat/platterly-backend/pkg/db"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	"github.com/tmnhat/platterly-backend/pkg/logger"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/redis"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Orders        orders.Service
	Delivery      delivery.Service
	Tracking      tracking.Service
	Payments      payments.Service
	Notifications notifications.Service
	Cart          cart.Service
	Vouchers      vouchers.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gatherer prometheus.Gatherer,
	m *metrics.FulfillmentMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(m),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// The gateway redirects here without credentials; the callback carries
	// its own signature.
	r.Route("/api/v1/payments/callback", func(r chi.Router) {
		r.Get("/", controllers.PaymentCallback(svcs.Payments, logg))
		r.Post("/", controllers.PaymentCallback(svcs.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.RoleCustomer, logg)).Post("/", controllers.CreateOrder(svcs.Orders, logg))
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleSeller, logg)).Post("/confirm", controllers.ConfirmOrder(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleCourier, logg)).Post("/claim", controllers.ClaimOrder(svcs.Delivery, logg))
				r.With(middleware.RequireRole(enums.RoleCourier, logg)).Post("/delivered", controllers.MarkOrderDelivered(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleCustomer, logg)).Post("/receipt", controllers.ConfirmOrderReceipt(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleCustomer, logg)).Post("/dispute", controllers.DisputeOrder(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleCustomer, logg)).Post("/cancel", controllers.CancelOrder(svcs.Orders, logg))
				r.With(middleware.RequireRole(enums.RoleCustomer, logg)).Post("/payment-url", controllers.CreatePaymentURL(svcs.Payments, logg))

				r.Get("/tracking", controllers.GetTracking(svcs.Tracking, logg))
				r.With(middleware.RequireRole(enums.RoleCourier, logg)).Post("/pings", controllers.RecordTrackingPing(svcs.Tracking, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})

		r.With(middleware.RequireRole(enums.RoleCustomer, logg)).
			Post("/vouchers/validate", controllers.PreviewVoucher(svcs.Cart, svcs.Vouchers, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

		r.Post("/payments/{orderId}/reconcile", controllers.ReconcilePayment(svcs.Payments, logg))
	})

	return r
}
