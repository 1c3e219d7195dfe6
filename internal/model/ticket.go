package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticket status values as persisted in tickets.status.  RESERVED is
// never stored; it is derived from a live lock when listing.
const (
	TicketAvailable = "AVAILABLE"
	TicketSold      = "SOLD"
	TicketReserved  = "RESERVED"
)

// Ticket is a single sellable seat of an event.  Identity, seat and
// price are fixed when the catalog is seeded; only the status (and the
// owner fields that go with it) change, and only from AVAILABLE to SOLD.
//
// Fields:
//
//	EventID     – event the ticket belongs to.
//	TicketID    – identifier of the ticket, unique within its event.
//	Seat        – human readable seat label (e.g. "A12").
//	Price       – price of the seat.
//	Status      – AVAILABLE or SOLD.
//	OwnerUserID – buyer once sold (nil while available).
//	SoldAt      – when the sale was committed.
type Ticket struct {
	EventID     string          // tickets.event_id
	TicketID    string          // tickets.ticket_id
	Seat        string          // tickets.seat
	Price       decimal.Decimal // tickets.price
	Status      string          // tickets.status
	OwnerUserID *string         // tickets.owner_user_id (nullable)
	SoldAt      *time.Time      // tickets.sold_at (nullable)
}

// IsSold reports whether the ticket has already been sold.
func (t *Ticket) IsSold() bool { return t.Status == TicketSold }
