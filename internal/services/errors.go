package services

import "errors"

// User-visible error kinds. Handlers map these to HTTP statuses; everything
// else is treated as a transient store failure and is safe to retry.
var (
	ErrRideNotFound      = errors.New("ride not found")
	ErrRideNotActive     = errors.New("ride is no longer active")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrSelfBooking       = errors.New("drivers cannot book their own ride")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingConflict   = errors.New("idempotency key already used for a different request")
	ErrInvalidTransition = errors.New("booking status transition not allowed")
	ErrNotAllowed        = errors.New("caller is not allowed to perform this operation")
	ErrInvalidSeats      = errors.New("seats requested must be at least 1")
	ErrInvalidPrice      = errors.New("price per seat must not be negative")
)
