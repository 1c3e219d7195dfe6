package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// world is an in-memory stand-in for the MySQL tables with the same
// lock and confirm rules the repositories enforce.
type world struct {
	mu       sync.Mutex
	now      time.Time
	seq      int
	tickets  map[string]*model.Ticket
	order    []string
	locks    map[string]model.TicketLock
	bookings map[string]*model.Booking

	bookingCalls int // Get and Confirm on the bookings table
}

func newWorld(now time.Time) *world {
	return &world{
		now:      now,
		tickets:  map[string]*model.Ticket{},
		locks:    map[string]model.TicketLock{},
		bookings: map[string]*model.Booking{},
	}
}

func (w *world) clock() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

func (w *world) advance(d time.Duration) {
	w.mu.Lock()
	w.now = w.now.Add(d)
	w.mu.Unlock()
}

func (w *world) nextID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	return fmt.Sprintf("b%d", w.seq)
}

func (w *world) bookingTableCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bookingCalls
}

func (w *world) seed(eventID, ticketID, seat string, price int64) {
	w.tickets[ticketID] = &model.Ticket{
		EventID: eventID, TicketID: ticketID, Seat: seat,
		Price: decimal.NewFromInt(price), Status: model.TicketAvailable,
	}
	w.order = append(w.order, ticketID)
}

type lockTable struct{ *world }

func (l lockTable) Acquire(_ context.Context, ticketID, bookingID string, expiresAt, now time.Time) (repository.AcquireResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.locks[ticketID]; ok && cur.Live(now) {
		return repository.AlreadyHeld, nil
	}
	l.locks[ticketID] = model.TicketLock{TicketID: ticketID, BookingID: bookingID, ExpiresAt: expiresAt}
	return repository.Acquired, nil
}

func (l lockTable) Release(_ context.Context, ticketID, bookingID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.locks[ticketID]; ok && cur.BookingID == bookingID {
		delete(l.locks, ticketID)
	}
}

func (l lockTable) ListLive(_ context.Context, ids []string, now time.Time) (map[string]model.TicketLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]model.TicketLock{}
	for _, id := range ids {
		if cur, ok := l.locks[id]; ok && cur.Live(now) {
			out[id] = cur
		}
	}
	return out, nil
}

type ticketTable struct{ *world }

func (t ticketTable) Get(_ context.Context, eventID, ticketID string) (*model.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tickets[ticketID]
	if !ok || tk.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	cp := *tk
	return &cp, nil
}

func (t ticketTable) ListByEvent(_ context.Context, eventID string) ([]model.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Ticket
	for _, id := range t.order {
		if tk := t.tickets[id]; tk.EventID == eventID {
			out = append(out, *tk)
		}
	}
	return out, nil
}

type bookingTable struct{ *world }

func (b bookingTable) Create(_ context.Context, bk *model.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *bk
	b.bookings[bk.ID] = &cp
	return nil
}

func (b bookingTable) Get(_ context.Context, id string) (*model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookingCalls++
	bk, ok := b.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *bk
	return &cp, nil
}

func (b bookingTable) Confirm(_ context.Context, p repository.ConfirmParams) (*model.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookingCalls++
	bk, ok := b.bookings[p.BookingID]
	switch {
	case !ok:
		return nil, repository.ErrNotFound
	case bk.Status == model.BookingConfirmed:
		return nil, repository.ErrAlreadyConfirmed
	case bk.Status != model.BookingPending:
		return nil, repository.ErrNotPending
	}
	for _, it := range bk.Tickets {
		if cur, held := b.locks[it.TicketID]; held && cur.BookingID != bk.ID && cur.Live(b.now) {
			return nil, repository.ErrConflict
		}
		if b.tickets[it.TicketID].IsSold() {
			return nil, repository.ErrConflict
		}
	}
	for _, it := range bk.Tickets {
		tk := b.tickets[it.TicketID]
		tk.Status = model.TicketSold
		owner, at := bk.UserID, p.ConfirmedAt
		tk.OwnerUserID, tk.SoldAt = &owner, &at
		if cur, held := b.locks[it.TicketID]; held && cur.BookingID == bk.ID {
			delete(b.locks, it.TicketID)
		}
	}
	tx, at := p.TransactionID, p.ConfirmedAt
	bk.Status, bk.TransactionID, bk.ConfirmedAt, bk.ExpiresAt = model.BookingConfirmed, &tx, &at, nil
	cp := *bk
	return &cp, nil
}

// fakeGateway accepts every payment and records what it was asked.
type fakeGateway struct {
	mu   sync.Mutex
	reqs []gateway.PaymentRequest
}

func (g *fakeGateway) StartPayment(_ context.Context, req gateway.PaymentRequest) (*gateway.Ack, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return &gateway.Ack{StatusCode: 202, Body: json.RawMessage(`{"status":"accepted"}`)}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (p *capturePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}
