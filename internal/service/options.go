package service

import (
	"time"

	"github.com/google/uuid"
)

// Option customises a service's clock and id source.  Production code
// uses the defaults; tests pin both.
type Option func(*base)

type base struct {
	now   func() time.Time
	newID func() string
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *base) { r.now = now }
}

// WithIDGenerator replaces the UUID generator used for booking ids.
func WithIDGenerator(f func() string) Option {
	return func(r *base) { r.newID = f }
}

func newBase(opts []Option) base {
	r := base{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}
