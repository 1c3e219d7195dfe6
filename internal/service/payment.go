package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

// BookingReader loads a booking with its line items.
type BookingReader interface {
	Get(ctx context.Context, bookingID string) (*model.Booking, error)
}

// Gateway starts a payment with the external payment system.
type Gateway interface {
	StartPayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Ack, error)
}

// StartPaymentInput identifies the booking to pay and who is paying.
type StartPaymentInput struct {
	BookingID string
	UserID    string
}

// PaymentService hands PENDING bookings to the payment gateway.  A short
// Redis claim per booking keeps two concurrent starts from charging the
// buyer twice; without Redis the claim is skipped.
type PaymentService struct {
	bookings   BookingReader
	gateway    Gateway
	rdb        *redis.Client
	claimTTL   time.Duration
	webhookURL string
	metrics    *metrics.Metrics
	base
}

// NewPaymentService wires payment start.  rdb may be nil.
func NewPaymentService(bookings BookingReader, gw Gateway, rdb *redis.Client, claimTTL time.Duration, webhookURL string, m *metrics.Metrics, opts ...Option) *PaymentService {
	return &PaymentService{
		bookings:   bookings,
		gateway:    gw,
		rdb:        rdb,
		claimTTL:   claimTTL,
		webhookURL: webhookURL,
		metrics:    m,
		base:       newBase(opts),
	}
}

func paymentClaimKey(bookingID string) string { return "payment:claim:" + bookingID }

// Start validates the booking and asks the gateway to charge its total.
// The gateway's answer is returned unchanged, including non-2xx answers;
// the caller decides how to surface them.
func (s *PaymentService) Start(ctx context.Context, in StartPaymentInput) (*gateway.Ack, error) {
	if strings.TrimSpace(in.BookingID) == "" {
		s.metrics.PaymentStart("bad_request")
		return nil, newError(KindBadRequest, nil, "bookingId is required")
	}

	b, err := s.bookings.Get(ctx, in.BookingID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && b.UserID != in.UserID) {
		s.metrics.PaymentStart("not_found")
		return nil, newError(KindNotFound, err, "Booking not found")
	}
	if err != nil {
		log.Printf("payment: load booking %s: %v", in.BookingID, err)
		s.metrics.PaymentStart("error")
		return nil, newError(KindInternal, err, "Failed to process payment")
	}
	if b.EffectiveStatus(s.now()) != model.BookingPending {
		s.metrics.PaymentStart("not_pending")
		return nil, newError(KindInvalidState, nil, "Booking is not pending")
	}

	claimed, err := s.claim(ctx, b.ID, in.UserID)
	if err != nil {
		// fail open: the confirmation commit is still exactly-once
		log.Printf("payment: claim %s: %v", b.ID, err)
	} else if !claimed {
		s.metrics.PaymentStart("in_progress")
		return nil, newError(KindConflict, nil, "Payment already in progress")
	}

	ack, err := s.gateway.StartPayment(ctx, gateway.PaymentRequest{
		BookingID:  b.ID,
		Amount:     b.TotalPrice,
		WebhookURL: s.webhookURL,
	})
	if err != nil {
		log.Printf("payment: gateway start for %s: %v", b.ID, err)
		s.unclaim(ctx, b.ID)
		s.metrics.PaymentStart("error")
		return nil, newError(KindInternal, err, "Failed to process payment")
	}
	if !ack.OK() {
		s.unclaim(ctx, b.ID)
		s.metrics.PaymentStart("rejected")
		return ack, nil
	}
	s.metrics.PaymentStart("started")
	return ack, nil
}

// claim takes the per-booking payment claim.  It reports true when Redis
// is not configured.
func (s *PaymentService) claim(ctx context.Context, bookingID, userID string) (bool, error) {
	if s.rdb == nil || s.claimTTL <= 0 {
		return true, nil
	}
	return s.rdb.SetNX(ctx, paymentClaimKey(bookingID), userID, s.claimTTL).Result()
}

// unclaim drops the claim so the buyer can retry right away.
func (s *PaymentService) unclaim(ctx context.Context, bookingID string) {
	if s.rdb == nil || s.claimTTL <= 0 {
		return
	}
	if err := s.rdb.Del(context.WithoutCancel(ctx), paymentClaimKey(bookingID)).Err(); err != nil {
		log.Printf("payment: release claim %s: %v", bookingID, err)
	}
}
