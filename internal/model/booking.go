package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking status values.  CANCELLED is also what an abandoned pending
// booking reads as once its expiry has passed.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking records one checkout attempt: the tickets it covers, the
// price fixed at reservation time and its lifecycle status.  It is
// created PENDING together with its line items and moves to CONFIRMED
// exactly once when the payment notification is committed.
//
// Fields:
//
//	ID            – booking identifier (UUID).
//	UserID        – buyer, taken from the authenticated principal.
//	EventID       – event the tickets belong to.
//	Tickets       – ordered line items.
//	TotalPrice    – sum of the line item prices.
//	Status        – PENDING, CONFIRMED or CANCELLED.
//	CreatedAt     – creation timestamp.
//	ExpiresAt     – end of the checkout window while pending.
//	ConfirmedAt   – when the sale was committed.
//	TransactionID – payment reference from the gateway.
type Booking struct {
	ID            string          // bookings.booking_id
	UserID        string          // bookings.user_id
	EventID       string          // bookings.event_id
	Tickets       []BookingTicket // booking_tickets rows ordered by position
	TotalPrice    decimal.Decimal // bookings.total_price
	Status        string          // bookings.status
	CreatedAt     time.Time       // bookings.created_at
	ExpiresAt     *time.Time      // bookings.expires_at (nullable)
	ConfirmedAt   *time.Time      // bookings.confirmed_at (nullable)
	TransactionID *string         // bookings.transaction_id (nullable)
}

// BookingTicket is a line item of a booking.  Seat and price are copied
// from the ticket when the booking is created so the booking keeps the
// price the buyer was quoted.
type BookingTicket struct {
	TicketID string          // booking_tickets.ticket_id
	Seat     string          // booking_tickets.seat
	Price    decimal.Decimal // booking_tickets.price
}

// EffectiveStatus returns the status a reader should see at now.  A
// pending booking past its expiry has lost its locks and is reported as
// CANCELLED.
func (b *Booking) EffectiveStatus(now time.Time) string {
	if b.Status == BookingPending && b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
		return BookingCancelled
	}
	return b.Status
}

// TicketIDs returns the ticket ids of the line items in order.
func (b *Booking) TicketIDs() []string {
	ids := make([]string, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		ids = append(ids, t.TicketID)
	}
	return ids
}

// SumPrices adds up the prices of the given line items.
func SumPrices(items []BookingTicket) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}
