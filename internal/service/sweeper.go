package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/ticket-booking/internal/metrics"
)

// LockPurger deletes expired lock rows in batches.
type LockPurger interface {
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

const sweepBatch = 500

// LockSweeper periodically removes expired lock rows.  Expired rows are
// already ignored by every lock query; the sweeper only keeps the table
// small.  Bookings are never touched.
type LockSweeper struct {
	locks    LockPurger
	interval time.Duration
	metrics  *metrics.Metrics
	base
}

func NewLockSweeper(locks LockPurger, interval time.Duration, m *metrics.Metrics, opts ...Option) *LockSweeper {
	return &LockSweeper{locks: locks, interval: interval, metrics: m, base: newBase(opts)}
}

// Run sweeps every interval until ctx is cancelled.  A non-positive
// interval disables the sweeper.
func (s *LockSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		log.Println("lock-sweeper: disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("lock-sweeper: started, interval=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("lock-sweeper: stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep purges batches until a batch comes back short.
func (s *LockSweeper) Sweep(ctx context.Context) int64 {
	var total int64
	for {
		n, err := s.locks.PurgeExpired(ctx, s.now(), sweepBatch)
		if err != nil {
			log.Printf("lock-sweeper: purge failed: %v", err)
			break
		}
		total += n
		if n < sweepBatch {
			break
		}
	}
	s.metrics.LocksPurged(total)
	if total > 0 {
		log.Printf("lock-sweeper: purged %d expired locks", total)
	}
	return total
}
