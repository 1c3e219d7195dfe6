package handler // handler defines http handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// Reserver creates PENDING bookings.
type Reserver interface {
	Reserve(ctx context.Context, in service.ReserveInput) (*service.ReserveResult, error)
}

// PaymentStarter hands a booking to the payment gateway.
type PaymentStarter interface {
	Start(ctx context.Context, in service.StartPaymentInput) (*gateway.Ack, error)
}

// BookingQuerier is the read side.
type BookingQuerier interface {
	Get(ctx context.Context, bookingID, userID string) (*model.Booking, error)
	ListTickets(ctx context.Context, eventID string) ([]service.TicketAvailability, error)
}

// Confirmer applies payment notifications.
type Confirmer interface {
	Confirm(ctx context.Context, n service.Notification) (service.Outcome, error)
}

// statusFor maps a service error kind to its HTTP status.  InvalidState is
// a 400 because the client asked for something the booking's lifecycle
// no longer allows ("already sold", "not pending").
func statusFor(k service.Kind) int {
	switch k {
	case service.KindBadRequest, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"message": ...} with its mapped status.
func fail(c echo.Context, err error) error {
	kind := service.KindOf(err)
	if kind == service.KindInternal || kind == service.KindUnavailable {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(statusFor(kind), echo.Map{"message": service.MessageOf(err)})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"message": msg})
}

// userID returns the authenticated caller or "" when the route is public.
func userID(c echo.Context) string { return middleware.CurrentUserID(c) }

// number renders a decimal as a JSON number rather than a string.
func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }
