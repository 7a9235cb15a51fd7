package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amourflorals/wishsync/pkg/health"
	"github.com/amourflorals/wishsync/pkg/middleware"
)

const serviceName = "wishsync"

// NewRouter assembles the agent's HTTP surface.
func NewRouter(h *WishlistHandler, healthHandler *health.Handler, log *slog.Logger, allowOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogging(log))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(allowOrigin))
	r.Use(chimw.RealIP)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/wishlist", func(r chi.Router) {
		r.Use(Identity)

		r.Get("/", h.GetState)
		r.Delete("/", h.Clear)
		r.Post("/sync", h.Sync)

		r.Post("/items", h.AddItem)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Post("/items/{productID}/move-to-cart", h.MoveToCart)

		r.Post("/bulk/remove", h.BulkRemove)
		r.Post("/bulk/move-to-cart", h.BulkMoveToCart)

		r.Get("/failed-operations", h.FailedOperations)
		r.Post("/failed-operations/{operationID}/retry", h.RetryFailedOperation)
	})

	return r
}
