package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// EventHandler exposes the public ticket listing of an event.
type EventHandler struct {
	bookings BookingQuerier
}

func NewEventHandler(bookings BookingQuerier) *EventHandler {
	return &EventHandler{bookings: bookings}
}

type ticketView struct {
	TicketID string      `json:"ticketId"`
	Seat     string      `json:"seat"`
	Price    interface{} `json:"price"`
	Status   string      `json:"status"`
}

// ListTickets handles GET /events/:eventId/tickets.  Tickets held by a
// live lock are reported as RESERVED.
func (h *EventHandler) ListTickets(c echo.Context) error {
	list, err := h.bookings.ListTickets(c.Request().Context(), c.Param("eventId"))
	if err != nil {
		return fail(c, err)
	}
	out := make([]ticketView, 0, len(list))
	for _, t := range list {
		out = append(out, ticketView{TicketID: t.TicketID, Seat: t.Seat, Price: number(t.Price), Status: t.Status})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
