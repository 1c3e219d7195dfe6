package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// LockStore is the lock registry as seen by the reservation flow.
type LockStore interface {
	Acquire(ctx context.Context, ticketID, bookingID string, expiresAt, now time.Time) (repository.AcquireResult, error)
	Release(ctx context.Context, ticketID, bookingID string)
}

// TicketReader loads single tickets of an event.
type TicketReader interface {
	Get(ctx context.Context, eventID, ticketID string) (*model.Ticket, error)
}

// BookingWriter persists a new booking with its line items atomically.
type BookingWriter interface {
	Create(ctx context.Context, b *model.Booking) error
}

// ReserveInput is a request to hold tickets of one event for a user.
type ReserveInput struct {
	EventID   string
	TicketIDs []string
	UserID    string
}

// ReserveResult describes the PENDING booking that now holds the tickets.
type ReserveResult struct {
	BookingID string
	Status    string
	Price     decimal.Decimal
	ExpiresAt time.Time
}

// ReservationService turns a set of ticket ids into a PENDING booking.
// The lock is the serialization point: tickets are locked first and only
// then checked, so two concurrent requests can never both see a ticket
// as free.
type ReservationService struct {
	locks    LockStore
	tickets  TicketReader
	bookings BookingWriter
	ttl      time.Duration
	metrics  *metrics.Metrics
	base
}

// NewReservationService wires the reservation flow.  ttl is how long the
// tickets stay held while the buyer pays.
func NewReservationService(locks LockStore, tickets TicketReader, bookings BookingWriter, ttl time.Duration, m *metrics.Metrics, opts ...Option) *ReservationService {
	return &ReservationService{
		locks:    locks,
		tickets:  tickets,
		bookings: bookings,
		ttl:      ttl,
		metrics:  m,
		base:     newBase(opts),
	}
}

// compensationTimeout bounds lock release after a failed reservation.
// Release runs detached from the request so a cancelled client does not
// leave locks behind.
const compensationTimeout = 5 * time.Second

// Reserve locks every requested ticket, verifies none is sold, and writes
// a PENDING booking priced from the tickets as read now.  Ticket ids are
// de-duplicated and locked in sorted order so that overlapping multi-ticket
// requests always contend on the same first ticket.  Every failure path
// releases all locks taken so far.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*ReserveResult, error) {
	ids := normalizeIDs(in.TicketIDs)
	switch {
	case strings.TrimSpace(in.EventID) == "":
		return nil, s.fail("bad_request", newError(KindBadRequest, nil, "eventId is required"))
	case len(ids) == 0:
		return nil, s.fail("bad_request", newError(KindBadRequest, nil, "At least one ticket is required"))
	case in.UserID == "":
		return nil, s.fail("bad_request", newError(KindBadRequest, nil, "user is required"))
	}

	now := s.now()
	bookingID := s.newID()
	expiresAt := now.Add(s.ttl)

	held := make([]string, 0, len(ids))
	release := func() {
		if len(held) == 0 {
			return
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		defer cancel()
		for _, id := range held {
			s.locks.Release(cctx, id, bookingID)
		}
	}

	for _, id := range ids {
		res, err := s.locks.Acquire(ctx, id, bookingID, expiresAt, now)
		if err != nil {
			log.Printf("reservation: acquire lock ticket=%s booking=%s: %v", id, bookingID, err)
			s.metrics.LockAcquire("error")
			release()
			return nil, s.fail("conflict", newError(KindConflict, err, "Ticket %s already reserved", id))
		}
		s.metrics.LockAcquire(res.String())
		if res == repository.AlreadyHeld {
			release()
			return nil, s.fail("conflict", newError(KindConflict, nil, "Ticket %s already reserved", id))
		}
		held = append(held, id)
	}

	items := make([]model.BookingTicket, 0, len(ids))
	for _, id := range ids {
		t, err := s.tickets.Get(ctx, in.EventID, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			release()
			return nil, s.fail("not_found", newError(KindNotFound, err, "Ticket %s not found", id))
		case err != nil:
			log.Printf("reservation: read ticket %s/%s: %v", in.EventID, id, err)
			release()
			return nil, s.fail("error", newError(KindUnavailable, err, "Ticket %s could not be read", id))
		case t.IsSold():
			release()
			return nil, s.fail("sold", newError(KindInvalidState, nil, "Ticket %s already sold", id))
		}
		items = append(items, model.BookingTicket{TicketID: t.TicketID, Seat: t.Seat, Price: t.Price})
	}

	total := model.SumPrices(items)
	b := &model.Booking{
		ID:         bookingID,
		UserID:     in.UserID,
		EventID:    in.EventID,
		Tickets:    items,
		TotalPrice: total,
		Status:     model.BookingPending,
		CreatedAt:  now,
		ExpiresAt:  &expiresAt,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		log.Printf("reservation: create booking %s: %v", bookingID, err)
		release()
		return nil, s.fail("error", newError(KindInternal, err, "Failed to create booking"))
	}

	s.metrics.Reservation("success")
	return &ReserveResult{
		BookingID: bookingID,
		Status:    model.BookingPending,
		Price:     total,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ReservationService) fail(outcome string, err *Error) error {
	s.metrics.Reservation(outcome)
	return err
}

// normalizeIDs trims, drops empties, de-duplicates and sorts ids.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
