package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/service"
)

const (
	claimTTL   = 30 * time.Second
	webhookURL = "https://api.example.com/bookings/webhook"
)

func pendingBooking() *model.Booking {
	exp := fixedNow.Add(5 * time.Minute)
	return &model.Booking{
		ID:         "b1",
		UserID:     "u1",
		EventID:    "e1",
		Tickets:    []model.BookingTicket{{TicketID: "t1", Seat: "A1", Price: decimal.NewFromInt(100)}},
		TotalPrice: decimal.NewFromInt(100),
		Status:     model.BookingPending,
		CreatedAt:  fixedNow.Add(-5 * time.Minute),
		ExpiresAt:  &exp,
	}
}

func newPayment(t *testing.T, rdb *redis.Client) (*service.PaymentService, *bookingStoreMock, *gatewayMock) {
	t.Helper()
	bookings := new(bookingStoreMock)
	gw := new(gatewayMock)
	t.Cleanup(func() {
		bookings.AssertExpectations(t)
		gw.AssertExpectations(t)
	})
	return service.NewPaymentService(bookings, gw, rdb, claimTTL, webhookURL, nil, testOpts()...), bookings, gw
}

var okAck = &gateway.Ack{StatusCode: 200, Body: json.RawMessage(`{"message":"Payment processed"}`)}

func TestStartPayment_Success(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	svc, bookings, gw := newPayment(t, db)
	ctx := context.Background()

	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	rmock.ExpectSetNX("payment:claim:b1", "u1", claimTTL).SetVal(true)
	gw.On("StartPayment", ctx, gateway.PaymentRequest{
		BookingID:  "b1",
		Amount:     decimal.NewFromInt(100),
		WebhookURL: webhookURL,
	}).Return(okAck, nil)

	ack, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	require.NoError(t, err)
	assert.Same(t, okAck, ack)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestStartPayment_DuplicateIsRefused(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	svc, bookings, gw := newPayment(t, db)
	ctx := context.Background()

	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	rmock.ExpectSetNX("payment:claim:b1", "u1", claimTTL).SetVal(false)

	_, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	assert.Equal(t, service.KindConflict, service.KindOf(err))
	gw.AssertNotCalled(t, "StartPayment", mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestStartPayment_RedisDownFailsOpen(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	svc, bookings, gw := newPayment(t, db)
	ctx := context.Background()

	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	rmock.ExpectSetNX("payment:claim:b1", "u1", claimTTL).SetErr(errors.New("connection refused"))
	gw.On("StartPayment", ctx, mock.Anything).Return(okAck, nil)

	_, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	assert.NoError(t, err)
}

func TestStartPayment_WithoutRedis(t *testing.T) {
	svc, bookings, gw := newPayment(t, nil)
	ctx := context.Background()

	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	gw.On("StartPayment", ctx, mock.Anything).Return(okAck, nil)

	_, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	assert.NoError(t, err)
}

func TestStartPayment_GatewayErrorReleasesClaim(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	svc, bookings, gw := newPayment(t, db)
	ctx := context.Background()

	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	rmock.ExpectSetNX("payment:claim:b1", "u1", claimTTL).SetVal(true)
	gw.On("StartPayment", ctx, mock.Anything).Return(nil, gateway.ErrUnavailable)
	rmock.ExpectDel("payment:claim:b1").SetVal(1)

	_, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	assert.Equal(t, service.KindInternal, service.KindOf(err))
	assert.Equal(t, "Failed to process payment", service.MessageOf(err))
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestStartPayment_RejectedAckIsForwardedAndClaimReleased(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	svc, bookings, gw := newPayment(t, db)
	ctx := context.Background()

	rejected := &gateway.Ack{StatusCode: 402, Body: json.RawMessage(`{"message":"card declined"}`)}
	bookings.On("Get", ctx, "b1").Return(pendingBooking(), nil)
	rmock.ExpectSetNX("payment:claim:b1", "u1", claimTTL).SetVal(true)
	gw.On("StartPayment", ctx, mock.Anything).Return(rejected, nil)
	rmock.ExpectDel("payment:claim:b1").SetVal(1)

	ack, err := svc.Start(ctx, service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 402, ack.StatusCode)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestStartPayment_BookingStates(t *testing.T) {
	confirmed := pendingBooking()
	confirmed.Status = model.BookingConfirmed

	expired := pendingBooking()
	past := fixedNow.Add(-time.Second)
	expired.ExpiresAt = &past

	foreign := pendingBooking()
	foreign.UserID = "someone-else"

	cases := []struct {
		name    string
		booking *model.Booking
		err     error
		kind    service.Kind
		message string
	}{
		{"confirmed", confirmed, nil, service.KindInvalidState, "Booking is not pending"},
		{"expired", expired, nil, service.KindInvalidState, "Booking is not pending"},
		{"other user", foreign, nil, service.KindNotFound, "Booking not found"},
		{"missing", nil, repository.ErrNotFound, service.KindNotFound, "Booking not found"},
		{"store down", nil, errors.New("bad connection"), service.KindInternal, "Failed to process payment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, bookings, _ := newPayment(t, nil)
			bookings.On("Get", mock.Anything, "b1").Return(tc.booking, tc.err)

			_, err := svc.Start(context.Background(), service.StartPaymentInput{BookingID: "b1", UserID: "u1"})
			assert.Equal(t, tc.kind, service.KindOf(err))
			assert.Equal(t, tc.message, service.MessageOf(err))
		})
	}
}

func TestStartPayment_RequiresBookingID(t *testing.T) {
	svc, _, _ := newPayment(t, nil)
	_, err := svc.Start(context.Background(), service.StartPaymentInput{UserID: "u1"})
	assert.Equal(t, service.KindBadRequest, service.KindOf(err))
}
