package model

import "time"

// TicketLock is a time bounded exclusive claim on a ticket held by a
// booking attempt while the buyer is in checkout.  A lock whose
// ExpiresAt is not after the current time is treated as absent.
//
// Fields:
//
//	TicketID  – ticket being held (primary key, so one row per ticket).
//	BookingID – booking attempt that holds the ticket.
//	ExpiresAt – when the claim lapses.
type TicketLock struct {
	TicketID  string    // ticket_locks.ticket_id
	BookingID string    // ticket_locks.booking_id
	ExpiresAt time.Time // ticket_locks.expires_at
}

// Live reports whether the lock is still in force at now.
func (l TicketLock) Live(now time.Time) bool { return l.ExpiresAt.After(now) }
