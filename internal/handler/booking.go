package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// BookingHandler serves the buyer-facing booking endpoints.  All routes
// sit behind JWTAuth, so the caller's id is always present.
type BookingHandler struct {
	reservations Reserver
	payments     PaymentStarter
	bookings     BookingQuerier
}

// NewBookingHandler panics if any dependency is nil.
func NewBookingHandler(reservations Reserver, payments PaymentStarter, bookings BookingQuerier) *BookingHandler {
	if reservations == nil || payments == nil || bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{reservations: reservations, payments: payments, bookings: bookings}
}

type reserveRequest struct {
	TicketIDs []string `json:"ticketIds"`
	EventID   string   `json:"eventId"`
}

type reserveResponse struct {
	BookingID string      `json:"bookingId"`
	Status    string      `json:"status"`
	Price     interface{} `json:"price"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Reserve handles POST /bookings/reserve.
func (h *BookingHandler) Reserve(c echo.Context) error {
	if c.Request().ContentLength == 0 {
		return message(c, http.StatusBadRequest, "Request body is required")
	}
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	res, err := h.reservations.Reserve(c.Request().Context(), service.ReserveInput{
		EventID:   body.EventID,
		TicketIDs: body.TicketIDs,
		UserID:    userID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reserveResponse{
		BookingID: res.BookingID,
		Status:    res.Status,
		Price:     number(res.Price),
		ExpiresAt: res.ExpiresAt,
	})
}

// StartPayment handles POST /bookings/pay.  The gateway's reply is
// forwarded as is: 200 when it accepted, 500 otherwise.
func (h *BookingHandler) StartPayment(c echo.Context) error {
	if c.Request().ContentLength == 0 {
		return message(c, http.StatusBadRequest, "Request body is required")
	}
	var body struct {
		BookingID string `json:"bookingId"`
	}
	if err := c.Bind(&body); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request body")
	}
	ack, err := h.payments.Start(c.Request().Context(), service.StartPaymentInput{
		BookingID: body.BookingID,
		UserID:    userID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusOK
	if !ack.OK() {
		status = http.StatusInternalServerError
	}
	return c.JSONBlob(status, ack.Body)
}

type bookingTicketView struct {
	TicketID string      `json:"ticketId"`
	Seat     string      `json:"seat"`
	Price    interface{} `json:"price"`
}

type bookingView struct {
	BookingID     string              `json:"bookingId"`
	EventID       string              `json:"eventId"`
	Status        string              `json:"status"`
	Tickets       []bookingTicketView `json:"tickets"`
	TotalPrice    interface{}         `json:"totalPrice"`
	CreatedAt     time.Time           `json:"createdAt"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
	ConfirmedAt   *time.Time          `json:"confirmedAt,omitempty"`
	TransactionID *string             `json:"transactionId,omitempty"`
}

func viewOf(b *model.Booking) bookingView {
	v := bookingView{
		BookingID:     b.ID,
		EventID:       b.EventID,
		Status:        b.Status,
		Tickets:       make([]bookingTicketView, 0, len(b.Tickets)),
		TotalPrice:    number(b.TotalPrice),
		CreatedAt:     b.CreatedAt,
		ConfirmedAt:   b.ConfirmedAt,
		TransactionID: b.TransactionID,
	}
	if b.Status == model.BookingPending {
		v.ExpiresAt = b.ExpiresAt
	}
	for _, t := range b.Tickets {
		v.Tickets = append(v.Tickets, bookingTicketView{TicketID: t.TicketID, Seat: t.Seat, Price: number(t.Price)})
	}
	return v
}

// GetBooking handles GET /bookings/:id.  Clients poll it after paying
// until the status turns CONFIRMED.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.bookings.Get(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(b))
}
