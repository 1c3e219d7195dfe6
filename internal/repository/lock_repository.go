package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// AcquireResult is the outcome of a lock acquisition attempt.  Losing
// the race is an ordinary result, not an error.
type AcquireResult int

const (
	// Acquired means the caller now holds the ticket.
	Acquired AcquireResult = iota
	// AlreadyHeld means another booking holds a live lock on the ticket.
	AlreadyHeld
)

func (r AcquireResult) String() string {
	if r == Acquired {
		return "acquired"
	}
	return "already_held"
}

// LockRepo provides data access to the ticket_locks table.  There is at
// most one row per ticket.  A row whose expires_at is not in the future
// is treated as absent by every method, so an abandoned checkout frees
// its tickets without any cleanup having to run.  All timestamps are UTC.
type LockRepo struct {
	db *sql.DB
}

// NewLockRepo returns a new LockRepo bound to the provided database.
func NewLockRepo(db *sql.DB) *LockRepo { return &LockRepo{db: db} }

// Acquire claims ticketID for bookingID until expiresAt in a single
// conditional write.  A fresh row is inserted when none exists; an
// existing row is taken over only when it has expired at now.  MySQL
// reports 1 affected row for an insert, 2 for an update that changed
// the row and 0 when the live row was left untouched.
//
// booking_id must be assigned before expires_at: assignments run left
// to right and the second IF has to see the old expiry.
func (r *LockRepo) Acquire(ctx context.Context, ticketID, bookingID string, expiresAt, now time.Time) (AcquireResult, error) {
	const q = `INSERT INTO ticket_locks (ticket_id, booking_id, expires_at) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             booking_id = IF(expires_at <= ?, VALUES(booking_id), booking_id),
	             expires_at = IF(expires_at <= ?, VALUES(expires_at), expires_at)`
	res, err := r.db.ExecContext(ctx, q, ticketID, bookingID, expiresAt.UTC(), now.UTC(), now.UTC())
	if err != nil {
		return AlreadyHeld, fmt.Errorf("acquire lock %s: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadyHeld, fmt.Errorf("acquire lock %s: %w", ticketID, err)
	}
	if n == 0 {
		return AlreadyHeld, nil
	}
	return Acquired, nil
}

// Release deletes the lock on ticketID if it is still owned by
// bookingID.  It is best effort: a failure is logged and swallowed
// because a leaked lock expires on its own.
func (r *LockRepo) Release(ctx context.Context, ticketID, bookingID string) {
	const q = `DELETE FROM ticket_locks WHERE ticket_id = ? AND booking_id = ?`
	if _, err := r.db.ExecContext(ctx, q, ticketID, bookingID); err != nil {
		log.Printf("lock-registry: failed to release lock ticket=%s booking=%s: %v", ticketID, bookingID, err)
	}
}

// ReleaseAllTx removes the locks bookingID holds on ticketIDs inside
// the caller's transaction.  Rows owned by other bookings are kept.
func (r *LockRepo) ReleaseAllTx(ctx context.Context, tx *sql.Tx, bookingID string, ticketIDs []string) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	q := `DELETE FROM ticket_locks WHERE booking_id = ? AND ticket_id IN (` + placeholders(len(ticketIDs)) + `)`
	args := append([]interface{}{bookingID}, stringArgs(ticketIDs)...)
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("release locks: %w", err)
	}
	return nil
}

// CountForeignLiveTx counts live locks on ticketIDs that belong to a
// booking other than bookingID.  A non-zero count means the seat moved
// on to another buyer after bookingID's hold lapsed.
//
// The rows are read FOR UPDATE so a concurrent Acquire taking over an
// expired lock waits for tx to finish and then finds the ticket SOLD.
func (r *LockRepo) CountForeignLiveTx(ctx context.Context, tx *sql.Tx, bookingID string, ticketIDs []string, now time.Time) (int, error) {
	if len(ticketIDs) == 0 {
		return 0, nil
	}
	q := `SELECT ticket_id, booking_id, expires_at FROM ticket_locks
	      WHERE ticket_id IN (` + placeholders(len(ticketIDs)) + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, stringArgs(ticketIDs)...)
	if err != nil {
		return 0, fmt.Errorf("lock foreign locks: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var l model.TicketLock
		if err := rows.Scan(&l.TicketID, &l.BookingID, &l.ExpiresAt); err != nil {
			return 0, fmt.Errorf("scan lock: %w", err)
		}
		if l.BookingID != bookingID && l.Live(now) {
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("lock foreign locks: %w", err)
	}
	return n, nil
}

// ListLive returns the live locks among ticketIDs keyed by ticket id.
func (r *LockRepo) ListLive(ctx context.Context, ticketIDs []string, now time.Time) (map[string]model.TicketLock, error) {
	out := make(map[string]model.TicketLock)
	if len(ticketIDs) == 0 {
		return out, nil
	}
	q := `SELECT ticket_id, booking_id, expires_at FROM ticket_locks
	      WHERE ticket_id IN (` + placeholders(len(ticketIDs)) + `) AND expires_at > ?`
	args := append(stringArgs(ticketIDs), now.UTC())
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l model.TicketLock
		if err := rows.Scan(&l.TicketID, &l.BookingID, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		out[l.TicketID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	return out, nil
}

// PurgeExpired deletes up to limit lock rows that expired at or before
// now and returns how many were removed.  Nothing depends on this for
// correctness; it only keeps the table small.
func (r *LockRepo) PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	const q = `DELETE FROM ticket_locks WHERE expires_at <= ? LIMIT ?`
	res, err := r.db.ExecContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("purge locks: %w", err)
	}
	return res.RowsAffected()
}
