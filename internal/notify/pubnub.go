// Package notify pushes booking updates to the buyer's browser over
// PubNub so the client can stop polling once a sale is committed.
package notify

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"

	"github.com/iliyamo/ticket-booking/internal/queue"
)

// UserChannel is the PubNub channel a user's client subscribes to.
func UserChannel(userID string) string { return fmt.Sprintf("user-%s", userID) }

type publishFunc func(ctx context.Context, channel string, message interface{}) error

// PubNubNotifier publishes a booking_confirmed message to the buyer's
// channel.  It satisfies service.Publisher.
type PubNubNotifier struct {
	publish publishFunc
}

// NewPubNubNotifier builds a notifier from the service's PubNub keys.
func NewPubNubNotifier(publishKey, subscribeKey, userID string) *PubNubNotifier {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	pn := pubnub.NewPubNub(cfg)

	return &PubNubNotifier{publish: func(ctx context.Context, channel string, message interface{}) error {
		_, st, err := pn.PublishWithContext(ctx).
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			return fmt.Errorf("pubnub publish to %s: %w", channel, err)
		}
		if st.StatusCode >= 300 {
			return fmt.Errorf("pubnub publish to %s: status %d", channel, st.StatusCode)
		}
		return nil
	}}
}

// PublishBookingConfirmed tells the buyer their booking is confirmed.
func (n *PubNubNotifier) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	return n.publish(ctx, UserChannel(ev.UserID), map[string]any{
		"type":        "booking_confirmed",
		"booking_id":  ev.BookingID,
		"event_id":    ev.EventID,
		"status":      "CONFIRMED",
		"seats":       ev.Seats,
		"total_price": ev.TotalPrice,
	})
}
