package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// TicketLister lists an event's tickets.
type TicketLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error)
}

// LockLister returns the live locks among a set of tickets.
type LockLister interface {
	ListLive(ctx context.Context, ticketIDs []string, now time.Time) (map[string]model.TicketLock, error)
}

// TicketAvailability is one row of the public seat map.
type TicketAvailability struct {
	TicketID string
	Seat     string
	Price    decimal.Decimal
	Status   string // AVAILABLE, RESERVED or SOLD
}

// BookingService is the read side: booking lookup for the buyer's poll
// loop and the per-event seat map.
type BookingService struct {
	bookings BookingReader
	tickets  TicketLister
	locks    LockLister
	base
}

func NewBookingService(bookings BookingReader, tickets TicketLister, locks LockLister, opts ...Option) *BookingService {
	return &BookingService{bookings: bookings, tickets: tickets, locks: locks, base: newBase(opts)}
}

// Get returns the booking as userID may see it.  Bookings of other users
// are reported as not found.  Status is the effective status, so a
// pending booking past its expiry reads as CANCELLED.
func (s *BookingService) Get(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, newError(KindBadRequest, nil, "Booking ID is required")
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && b.UserID != userID) {
		return nil, newError(KindNotFound, err, "Booking not found")
	}
	if err != nil {
		log.Printf("booking-reader: load %s: %v", bookingID, err)
		return nil, newError(KindInternal, err, "Failed to load booking")
	}
	b.Status = b.EffectiveStatus(s.now())
	return b, nil
}

// ListTickets returns an event's tickets with RESERVED derived from live
// locks.  If the lock lookup fails the stored status is returned as is.
func (s *BookingService) ListTickets(ctx context.Context, eventID string) ([]TicketAvailability, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, newError(KindBadRequest, nil, "Event ID is required")
	}
	tickets, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		log.Printf("booking-reader: list tickets of %s: %v", eventID, err)
		return nil, newError(KindInternal, err, "Failed to load tickets")
	}
	if len(tickets) == 0 {
		return nil, newError(KindNotFound, nil, "Event not found")
	}

	var open []string
	for _, t := range tickets {
		if !t.IsSold() {
			open = append(open, t.TicketID)
		}
	}
	locks, err := s.locks.ListLive(ctx, open, s.now())
	if err != nil {
		log.Printf("booking-reader: list locks of %s: %v", eventID, err)
		locks = nil
	}

	out := make([]TicketAvailability, 0, len(tickets))
	for _, t := range tickets {
		status := t.Status
		if _, held := locks[t.TicketID]; held && !t.IsSold() {
			status = model.TicketReserved
		}
		out = append(out, TicketAvailability{TicketID: t.TicketID, Seat: t.Seat, Price: t.Price, Status: status})
	}
	return out, nil
}
