package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/ticket-booking/internal/handler"
)

// RegisterRoutes registers the operational endpoints: liveness,
// readiness against the database and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterPublic registers the unauthenticated event listing.  Responses
// go through the Redis cache middleware, so a short TTL bounds how stale
// a RESERVED flag can be.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/events")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("/:eventId/tickets", h.ListTickets)
}
