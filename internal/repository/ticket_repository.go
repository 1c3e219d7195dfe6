package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-booking/internal/model"
)

// TicketRepo provides access to the tickets table.  Tickets are seeded
// with the catalog and are only ever moved from AVAILABLE to SOLD by
// the confirmation transaction.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `event_id, ticket_id, seat, price, status, owner_user_id, sold_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
	var (
		t     model.Ticket
		owner sql.NullString
		sold  sql.NullTime
	)
	if err := row.Scan(&t.EventID, &t.TicketID, &t.Seat, &t.Price, &t.Status, &owner, &sold); err != nil {
		return nil, err
	}
	if owner.Valid {
		o := owner.String
		t.OwnerUserID = &o
	}
	if sold.Valid {
		s := sold.Time.UTC()
		t.SoldAt = &s
	}
	return &t, nil
}

// Get loads a single ticket of an event.  ErrNotFound is returned when
// the ticket does not exist for that event.
func (r *TicketRepo) Get(ctx context.Context, eventID, ticketID string) (*model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = ? AND ticket_id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, eventID, ticketID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", ticketID, err)
	}
	return t, nil
}

// ListByEvent returns every ticket of an event ordered by seat.
func (r *TicketRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE event_id = ? ORDER BY seat, ticket_id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

// MarkSoldTx moves each ticket from AVAILABLE to SOLD inside the
// caller's transaction.  A ticket that is not AVAILABLE any more makes
// the whole call fail with ErrConflict so the caller rolls back; the
// same ticket is never sold twice.
func (r *TicketRepo) MarkSoldTx(ctx context.Context, tx *sql.Tx, eventID string, ticketIDs []string, userID string, at time.Time) error {
	const q = `UPDATE tickets SET status = ?, owner_user_id = ?, sold_at = ?
	           WHERE event_id = ? AND ticket_id = ? AND status = ?`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare mark sold: %w", err)
	}
	defer stmt.Close()
	for _, id := range ticketIDs {
		res, err := stmt.ExecContext(ctx, model.TicketSold, userID, at, eventID, id, model.TicketAvailable)
		if err != nil {
			return fmt.Errorf("mark ticket %s sold: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark ticket %s sold: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("ticket %s is not available: %w", id, ErrConflict)
		}
	}
	return nil
}
