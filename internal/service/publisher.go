package service

import (
	"context"
	"errors"

	"github.com/iliyamo/ticket-booking/internal/queue"
)

// Publisher announces committed sales.  Publishing is best effort: the
// sale is already durable when it runs.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// MultiPublisher fans an event out to every publisher and joins their
// errors.  One failing sink does not stop the others.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishBookingConfirmed(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
