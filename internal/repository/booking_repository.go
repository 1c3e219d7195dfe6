package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// BookingRepo persists bookings and their line items.  A booking row
// lives in the bookings table and its ticket line items in
// booking_tickets, ordered by position.  Both are always written in the
// same transaction.  Confirmation also touches tickets and ticket_locks,
// so the repo is built with the ticket and lock repos it coordinates.
type BookingRepo struct {
	db      *sql.DB
	tickets *TicketRepo
	locks   *LockRepo
}

// NewBookingRepo returns a BookingRepo bound to db.  tickets and locks
// must use the same database so the confirmation commit is atomic.
func NewBookingRepo(db *sql.DB, tickets *TicketRepo, locks *LockRepo) *BookingRepo {
	return &BookingRepo{db: db, tickets: tickets, locks: locks}
}

// ConfirmParams carries what the confirmation commit records.
type ConfirmParams struct {
	BookingID     string
	TransactionID string
	ConfirmedAt   time.Time
}

// withTx runs fn inside a transaction and commits when fn returns nil.
// Any error, including a failed commit, leaves the database untouched.
func (r *BookingRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Create inserts the booking and all its line items atomically.
// Passing a booking without tickets is rejected.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	if len(b.Tickets) == 0 {
		return errors.New("booking has no tickets")
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		const q = `INSERT INTO bookings (booking_id, user_id, event_id, total_price, status, created_at, expires_at)
		           VALUES (?, ?, ?, ?, ?, ?, ?)`
		var expires interface{}
		if b.ExpiresAt != nil {
			expires = b.ExpiresAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, q, b.ID, b.UserID, b.EventID, b.TotalPrice, b.Status, b.CreatedAt.UTC(), expires); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		query := `INSERT INTO booking_tickets (booking_id, position, ticket_id, seat, price) VALUES `
		args := make([]interface{}, 0, len(b.Tickets)*5)
		for i, t := range b.Tickets {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, b.ID, i, t.TicketID, t.Seat, t.Price)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert booking tickets: %w", err)
		}
		return nil
	})
}

// Get loads a booking with its line items.  ErrNotFound is returned
// when no booking has the given id.
func (r *BookingRepo) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	const q = `SELECT booking_id, user_id, event_id, total_price, status, created_at, expires_at, confirmed_at, transaction_id
	           FROM bookings WHERE booking_id = ?`
	var (
		b         model.Booking
		expiresAt sql.NullTime
		confirmed sql.NullTime
		txID      sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.UserID, &b.EventID, &b.TotalPrice, &b.Status, &b.CreatedAt,
		&expiresAt, &confirmed, &txID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		b.ExpiresAt = &t
	}
	if confirmed.Valid {
		t := confirmed.Time.UTC()
		b.ConfirmedAt = &t
	}
	if txID.Valid {
		s := txID.String
		b.TransactionID = &s
	}

	const items = `SELECT ticket_id, seat, price FROM booking_tickets WHERE booking_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, items, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking tickets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.BookingTicket
		if err := rows.Scan(&t.TicketID, &t.Seat, &t.Price); err != nil {
			return nil, fmt.Errorf("scan booking ticket: %w", err)
		}
		b.Tickets = append(b.Tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get booking tickets: %w", err)
	}
	return &b, nil
}

// Confirm commits a paid booking in one transaction: the booking
// becomes CONFIRMED with its transaction id, every ticket becomes SOLD
// to the booking's user and the booking's locks are deleted.  Either all
// of it is applied or none of it is.
//
// The booking row is read FOR UPDATE so concurrent deliveries of the
// same notification serialize; the loser sees CONFIRMED and gets
// ErrAlreadyConfirmed.  ErrConflict means a ticket is no longer ours to
// sell (sold elsewhere, or held by another live booking).
func (r *BookingRepo) Confirm(ctx context.Context, p ConfirmParams) (*model.Booking, error) {
	var out *model.Booking
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var b model.Booking
		const sel = `SELECT booking_id, user_id, event_id, status FROM bookings WHERE booking_id = ? FOR UPDATE`
		err := tx.QueryRowContext(ctx, sel, p.BookingID).Scan(&b.ID, &b.UserID, &b.EventID, &b.Status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		switch b.Status {
		case model.BookingConfirmed:
			return ErrAlreadyConfirmed
		case model.BookingPending:
		default:
			return ErrNotPending
		}

		const items = `SELECT ticket_id, seat, price FROM booking_tickets WHERE booking_id = ? ORDER BY position`
		rows, err := tx.QueryContext(ctx, items, b.ID)
		if err != nil {
			return fmt.Errorf("load booking tickets: %w", err)
		}
		for rows.Next() {
			var t model.BookingTicket
			if err := rows.Scan(&t.TicketID, &t.Seat, &t.Price); err != nil {
				rows.Close()
				return fmt.Errorf("scan booking ticket: %w", err)
			}
			b.Tickets = append(b.Tickets, t)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("load booking tickets: %w", err)
		}
		ids := b.TicketIDs()

		foreign, err := r.locks.CountForeignLiveTx(ctx, tx, b.ID, ids, p.ConfirmedAt)
		if err != nil {
			return err
		}
		if foreign > 0 {
			return fmt.Errorf("%d ticket(s) held by another booking: %w", foreign, ErrConflict)
		}

		const upd = `UPDATE bookings SET status = ?, transaction_id = ?, confirmed_at = ?, expires_at = NULL
		             WHERE booking_id = ? AND status = ?`
		if _, err := tx.ExecContext(ctx, upd, model.BookingConfirmed, p.TransactionID, p.ConfirmedAt.UTC(), b.ID, model.BookingPending); err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}
		if err := r.tickets.MarkSoldTx(ctx, tx, b.EventID, ids, b.UserID, p.ConfirmedAt.UTC()); err != nil {
			return err
		}
		if err := r.locks.ReleaseAllTx(ctx, tx, b.ID, ids); err != nil {
			return err
		}

		at := p.ConfirmedAt.UTC()
		txID := p.TransactionID
		b.Status = model.BookingConfirmed
		b.ConfirmedAt = &at
		b.TransactionID = &txID
		b.TotalPrice = model.SumPrices(b.Tickets)
		out = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
