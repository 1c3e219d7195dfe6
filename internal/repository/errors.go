// Package repository defines error types that are reused across the
// ticket, lock and booking repositories.  These sentinel values allow
// higher layers such as services and handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a ticket or booking row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be applied because the
// row is in a conflicting state, such as a ticket that is no longer
// AVAILABLE or a seat held by another booking.
var ErrConflict = errors.New("conflict")

// ErrAlreadyConfirmed is returned by BookingRepo.Confirm when the
// booking was committed by an earlier (or concurrent) delivery.
var ErrAlreadyConfirmed = errors.New("booking already confirmed")

// ErrNotPending is returned by BookingRepo.Confirm when the booking is
// neither PENDING nor CONFIRMED.
var ErrNotPending = errors.New("booking not pending")

// placeholders returns "?, ?, ?" with n markers for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringArgs converts ids into the []interface{} form ExecContext wants.
func stringArgs(ids []string) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
