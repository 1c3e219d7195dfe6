// Package queue defines the booking.confirmed message and the RabbitMQ
// publisher and consumer that carry it.
package queue

import "time"

// BookingConfirmedQueue is the durable queue confirmed bookings are sent to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published after a booking's sale is committed.
// It carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	EventID       string    `json:"event_id"`
	TicketIDs     []string  `json:"ticket_ids"`
	Seats         []string  `json:"seats"`
	TotalPrice    string    `json:"total_price"` // decimal string, e.g. "150.00"
	TransactionID string    `json:"transaction_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}
