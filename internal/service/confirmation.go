package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// Payment notification types that mean the buyer was charged.  The
// gateway in use sends the second form; the first is the generic name.
var successTypes = map[string]bool{
	"payment_succeeded":        true,
	"payment_intent.succeeded": true,
}

// maxTransactionIDLen matches bookings.transaction_id.
const maxTransactionIDLen = 128

// IsPaymentSuccess reports whether a notification type confirms a sale.
func IsPaymentSuccess(eventType string) bool { return successTypes[eventType] }

// Notification is a parsed payment result from the gateway.
type Notification struct {
	Type          string
	BookingID     string
	TransactionID string
}

// Outcome is the non-error result of handling a notification.
type Outcome int

const (
	// Confirmed means this call committed the sale.
	Confirmed Outcome = iota
	// AlreadyConfirmed means an earlier delivery committed it.
	AlreadyConfirmed
	// Ignored means the notification does not confirm a payment.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case AlreadyConfirmed:
		return "already_confirmed"
	default:
		return "ignored"
	}
}

// BookingConfirmer loads bookings and commits confirmed sales.
type BookingConfirmer interface {
	Get(ctx context.Context, bookingID string) (*model.Booking, error)
	Confirm(ctx context.Context, p repository.ConfirmParams) (*model.Booking, error)
}

// ConfirmationService commits a paid booking.  The commit is a single
// transaction, and the booking row lock taken inside it makes repeated or
// concurrent deliveries of the same notification land exactly once.
type ConfirmationService struct {
	bookings  BookingConfirmer
	publisher Publisher
	metrics   *metrics.Metrics
	base
}

// NewConfirmationService wires confirmation.  publisher may be nil.
func NewConfirmationService(bookings BookingConfirmer, publisher Publisher, m *metrics.Metrics, opts ...Option) *ConfirmationService {
	return &ConfirmationService{bookings: bookings, publisher: publisher, metrics: m, base: newBase(opts)}
}

const publishTimeout = 5 * time.Second

// Confirm applies n.  Non-success notifications are Ignored without
// reading anything.  A failed commit leaves the booking PENDING so the
// gateway's retry can complete it.
func (s *ConfirmationService) Confirm(ctx context.Context, n Notification) (Outcome, error) {
	if !IsPaymentSuccess(n.Type) {
		s.metrics.Confirmation("ignored")
		return Ignored, nil
	}
	if strings.TrimSpace(n.BookingID) == "" || strings.TrimSpace(n.TransactionID) == "" {
		s.metrics.Confirmation("bad_request")
		return Ignored, newError(KindBadRequest, nil, "bookingId and transactionId are required")
	}
	if len(n.TransactionID) > maxTransactionIDLen {
		s.metrics.Confirmation("bad_request")
		return Ignored, newError(KindBadRequest, nil, "transactionId is too long")
	}

	b, err := s.bookings.Get(ctx, n.BookingID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.Confirmation("not_found")
		return Ignored, newError(KindNotFound, err, "Booking not found")
	}
	if err != nil {
		s.metrics.Confirmation("error")
		return Ignored, newError(KindInternal, err, "Processing error")
	}
	if b.Status == model.BookingConfirmed {
		s.metrics.Confirmation("already_confirmed")
		return AlreadyConfirmed, nil
	}

	confirmed, err := s.bookings.Confirm(ctx, repository.ConfirmParams{
		BookingID:     b.ID,
		TransactionID: n.TransactionID,
		ConfirmedAt:   s.now(),
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyConfirmed):
		s.metrics.Confirmation("already_confirmed")
		return AlreadyConfirmed, nil
	case errors.Is(err, repository.ErrNotPending):
		s.metrics.Confirmation("not_pending")
		return Ignored, newError(KindInvalidState, err, "Booking is not pending")
	case errors.Is(err, repository.ErrNotFound):
		s.metrics.Confirmation("not_found")
		return Ignored, newError(KindNotFound, err, "Booking not found")
	case errors.Is(err, repository.ErrConflict):
		log.Printf("confirmation: booking %s paid (tx=%s) but its tickets are gone: %v", b.ID, n.TransactionID, err)
		s.metrics.Confirmation("conflict")
		return Ignored, newError(KindConflict, err, "Processing error")
	default:
		log.Printf("confirmation: commit booking %s: %v", b.ID, err)
		s.metrics.Confirmation("error")
		return Ignored, newError(KindInternal, err, "Processing error")
	}

	s.metrics.Confirmation("confirmed")
	s.publish(ctx, confirmed)
	return Confirmed, nil
}

func (s *ConfirmationService) publish(ctx context.Context, b *model.Booking) {
	if s.publisher == nil {
		return
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		TicketIDs:   b.TicketIDs(),
		TotalPrice:  b.TotalPrice.StringFixed(2),
		ConfirmedAt: s.now(),
	}
	for _, t := range b.Tickets {
		ev.Seats = append(ev.Seats, t.Seat)
	}
	if b.TransactionID != nil {
		ev.TransactionID = *b.TransactionID
	}
	if b.ConfirmedAt != nil {
		ev.ConfirmedAt = *b.ConfirmedAt
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishBookingConfirmed(pctx, ev); err != nil {
		log.Printf("confirmation: publish booking %s: %v", b.ID, err)
	}
}
