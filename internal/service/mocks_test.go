package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/service"
)

var fixedNow = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

func testOpts() []service.Option {
	return []service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithIDGenerator(func() string { return "b-fixed" }),
	}
}

type lockStoreMock struct{ mock.Mock }

func (m *lockStoreMock) Acquire(ctx context.Context, ticketID, bookingID string, expiresAt, now time.Time) (repository.AcquireResult, error) {
	args := m.Called(ctx, ticketID, bookingID, expiresAt, now)
	return args.Get(0).(repository.AcquireResult), args.Error(1)
}

func (m *lockStoreMock) Release(ctx context.Context, ticketID, bookingID string) {
	m.Called(ctx, ticketID, bookingID)
}

func (m *lockStoreMock) ListLive(ctx context.Context, ticketIDs []string, now time.Time) (map[string]model.TicketLock, error) {
	args := m.Called(ctx, ticketIDs, now)
	locks, _ := args.Get(0).(map[string]model.TicketLock)
	return locks, args.Error(1)
}

func (m *lockStoreMock) PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).(int64), args.Error(1)
}

type ticketStoreMock struct{ mock.Mock }

func (m *ticketStoreMock) Get(ctx context.Context, eventID, ticketID string) (*model.Ticket, error) {
	args := m.Called(ctx, eventID, ticketID)
	t, _ := args.Get(0).(*model.Ticket)
	return t, args.Error(1)
}

func (m *ticketStoreMock) ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error) {
	args := m.Called(ctx, eventID)
	ts, _ := args.Get(0).([]model.Ticket)
	return ts, args.Error(1)
}

type bookingStoreMock struct{ mock.Mock }

func (m *bookingStoreMock) Create(ctx context.Context, b *model.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *bookingStoreMock) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	args := m.Called(ctx, bookingID)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *bookingStoreMock) Confirm(ctx context.Context, p repository.ConfirmParams) (*model.Booking, error) {
	args := m.Called(ctx, p)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) StartPayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Ack, error) {
	args := m.Called(ctx, req)
	a, _ := args.Get(0).(*gateway.Ack)
	return a, args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	return m.Called(ctx, ev).Error(0)
}
