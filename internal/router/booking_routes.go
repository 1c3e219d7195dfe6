package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/middleware"
)

// RegisterBookings registers the /bookings endpoints.  The webhook is
// registered on e before the JWT group so it stays reachable by the
// payment system, which authenticates with its shared secret instead.
// limiter guards the two write endpoints that touch locks or the gateway.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, w *handler.WebhookHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.POST("/bookings/webhook", w.Handle)

	g := e.Group("/bookings", middleware.JWTAuth(jwtSecret))
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	g.POST("/reserve", b.Reserve, limiter)
	g.POST("/pay", b.StartPayment, limiter)
	g.GET("/:id", b.GetBooking)
}
